// Package export renders completed break records as CSV. The column order
// is stable: downstream spreadsheets key on it.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/goodtune/breakwatch/internal/storage"
)

const timestampLayout = "2006-01-02 15:04:05"

var header = []string{"employee_id", "break_type", "start_time", "end_time", "overtime"}

// WriteCSV writes the records to w with a header row.
func WriteCSV(w io.Writer, records []storage.CompletedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.EmployeeID,
			rec.BreakType,
			rec.StartTime.Format(timestampLayout),
			rec.EndTime.Format(timestampLayout),
			overtimeFlag(rec.Overtime),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Filename returns the attachment filename for a period export.
func Filename(period string, now time.Time) string {
	return fmt.Sprintf("%s_logs_%s.csv", period, now.Format("2006-01-02_15-04-05"))
}

func overtimeFlag(overtime bool) string {
	if overtime {
		return "yes"
	}
	return "no"
}
