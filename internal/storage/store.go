package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrDuplicate is returned when a unique record already exists.
var ErrDuplicate = errors.New("storage: record already exists")

// Store represents the root storage interface. The audit log owns the
// append operation exclusively; completed records are never mutated or
// deleted by callers.
type Store interface {
	Close() error
	Audit() AuditStore
	Employees() EmployeeStore
}

// AuditStore manages the append-only log of completed break sessions.
type AuditStore interface {
	// Append writes one completed record and bumps the per-day counter for
	// its start date atomically.
	Append(ctx context.Context, rec CompletedRecord) error
	// CountByDay returns the number of completed records for the employee
	// and break type whose start time falls on the given local calendar
	// date (YYYY-MM-DD).
	CountByDay(ctx context.Context, employeeID, breakType, date string) (int, error)
	// QueryRange returns records with from <= start_time < to, ordered by
	// start time.
	QueryRange(ctx context.Context, from, to time.Time) ([]CompletedRecord, error)
	// DeleteBefore removes records that started before the cutoff.
	// Retention only; the engine never calls this.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// EmployeeStore manages the employee registry.
type EmployeeStore interface {
	Register(ctx context.Context, emp Employee) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]Employee, error)
}
