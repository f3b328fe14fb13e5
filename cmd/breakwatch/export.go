package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/goodtune/breakwatch/internal/config"
	"github.com/goodtune/breakwatch/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportPeriod string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export completed break records as CSV",
	Long:  `Export the completed break records for a calendar-month period as CSV.`,
	Example: `  breakwatch -c config.yaml export --period this_month
  breakwatch export --period last_month --output last_month.csv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportPeriod, "period", "this_month", "Export period (this_month or last_month)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (defaults to stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	from, to, err := breaks.PeriodRange(exportPeriod, time.Now())
	if err != nil {
		return err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := store.Audit().QueryRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := export.WriteCSV(out, records); err != nil {
		return err
	}

	overtime := 0
	for _, rec := range records {
		if rec.Overtime {
			overtime++
		}
	}

	if exportOutput != "" {
		green := color.New(color.FgGreen)
		_, _ = green.Fprintf(os.Stderr, "Exported %d records (%d overtime) for %s to %s\n",
			len(records), overtime, exportPeriod, exportOutput)
	}
	return nil
}
