package storage

import "time"

// DateLayout is the calendar-date key format used for daily counters.
const DateLayout = "2006-01-02"

// CompletedRecord is one finished break session. Append-only: created
// exactly once per completed session and never rewritten.
type CompletedRecord struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	BreakType  string    `json:"break_type"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Overtime   bool      `json:"overtime"`
}

// StartDate returns the local calendar date the session started on.
// Sessions spanning midnight count against their start date.
func (r CompletedRecord) StartDate() string {
	return r.StartTime.Format(DateLayout)
}

// Employee is a registered employee. Registration is an existence gate for
// session operations, nothing more.
type Employee struct {
	ID           string    `json:"id"`
	RegisteredAt time.Time `json:"registered_at"`
}
