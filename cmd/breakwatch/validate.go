package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/goodtune/breakwatch/internal/config"
	"github.com/spf13/cobra"
)

var validatePolicies bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the breakwatch configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validatePolicies, "policies", false, "Print the effective break policy table")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if validatePolicies {
		policies, err := cfg.Policies()
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		_, _ = bold.Fprintln(os.Stdout, "\nBreak policies:")
		for _, bt := range breaks.All() {
			policy := policies[bt]
			fmt.Fprintf(os.Stdout, "  %-10s max %d/day, max duration %s\n",
				bt, policy.MaxPerDay, policy.MaxDuration)
		}
		fmt.Fprintf(os.Stdout, "\nStorage: %s\nRegistry snapshot: %s\n",
			cfg.Storage.Type, cfg.Registry.Path)
	}

	return nil
}
