package breaks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BreakType is a category of tracked absence. The set is closed: labels
// outside it are rejected at the boundary instead of falling through to a
// policy-table miss.
type BreakType string

const (
	BreakTakeout  BreakType = "TAKEOUT"
	BreakSmoking  BreakType = "SMOKING"
	BreakRestroom BreakType = "RESTROOM"
)

// Business-rule failures. All of these are expected and recoverable; only
// storage faults are surfaced as anything else.
var (
	ErrUnknownBreakType     = errors.New("unknown break type")
	ErrUnknownEmployee      = errors.New("unknown employee")
	ErrDailyLimitExceeded   = errors.New("daily limit exceeded")
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrNoSessionToStop      = errors.New("no session to stop")
	ErrAlreadyRegistered    = errors.New("employee already registered")
	ErrInvalidPeriod        = errors.New("invalid export period")
)

// ParseBreakType normalizes a label to a known break type.
func ParseBreakType(s string) (BreakType, error) {
	normalized := BreakType(strings.ToUpper(strings.TrimSpace(s)))
	switch normalized {
	case BreakTakeout, BreakSmoking, BreakRestroom:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBreakType, s)
	}
}

// All returns every known break type in stable order.
func All() []BreakType {
	return []BreakType{BreakTakeout, BreakSmoking, BreakRestroom}
}

// UnmarshalJSON implements json.Unmarshaler to normalize and validate labels.
func (b *BreakType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBreakType(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (b BreakType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(b))
}

// Policy is the immutable per-type limit configuration, read-only after
// startup.
type Policy struct {
	MaxPerDay   int
	MaxDuration time.Duration
}

// PolicyTable maps every break type to its policy.
type PolicyTable map[BreakType]Policy

// DefaultPolicies returns the built-in limit table.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		BreakTakeout:  {MaxPerDay: 2, MaxDuration: 1 * time.Minute},
		BreakSmoking:  {MaxPerDay: 8, MaxDuration: 5 * time.Minute},
		BreakRestroom: {MaxPerDay: 2, MaxDuration: 15 * time.Minute},
	}
}

// Completion is the outcome of a successful EndSession.
type Completion struct {
	EmployeeID      string    `json:"employee_id"`
	BreakType       BreakType `json:"break_type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Overtime        bool      `json:"overtime"`
}
