package breaks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goodtune/breakwatch/internal/metrics"
	"github.com/goodtune/breakwatch/internal/registry"
	"github.com/goodtune/breakwatch/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultEmployeeCacheSize bounds the employee existence cache.
const DefaultEmployeeCacheSize = 1024

// Registry is the durable record of in-flight sessions the engine
// orchestrates against.
type Registry interface {
	Begin(employeeID, breakType string, startedAt time.Time) error
	End(employeeID, breakType string) (time.Time, error)
	Lookup(employeeID, breakType string) (time.Time, bool)
	List() []registry.ActiveSession
}

// Engine enforces per-type daily count and duration limits and emits
// completed records to the audit log. Operations for the same
// (employee, break type) key are serialized by a per-key mutex so the
// daily-count check and the registry mutation cannot interleave.
type Engine struct {
	policies  PolicyTable
	registry  Registry
	audit     storage.AuditStore
	employees storage.EmployeeStore
	empCache  *lru.Cache[string, struct{}]
	clock     Clock
	logger    zerolog.Logger

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewEngine creates a limit and completion engine.
func NewEngine(policies PolicyTable, reg Registry, audit storage.AuditStore, employees storage.EmployeeStore, clock Clock, logger zerolog.Logger) (*Engine, error) {
	if clock == nil {
		clock = RealClock{}
	}
	cache, err := lru.New[string, struct{}](DefaultEmployeeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create employee cache: %w", err)
	}

	e := &Engine{
		policies:  policies,
		registry:  reg,
		audit:     audit,
		employees: employees,
		empCache:  cache,
		clock:     clock,
		logger:    logger.With().Str("component", "break-engine").Logger(),
		keyLocks:  make(map[string]*sync.Mutex),
	}

	metrics.ActiveSessions.Set(float64(len(reg.List())))
	return e, nil
}

// StartSession begins a break session. The daily-count gate runs strictly
// before the duplicate-active gate: an employee at the daily limit is
// rejected even when no session is active.
func (e *Engine) StartSession(ctx context.Context, employeeID, breakType string) error {
	bt, err := ParseBreakType(breakType)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues(breakType, "unknown_type").Inc()
		return err
	}
	if err := e.requireEmployee(ctx, employeeID); err != nil {
		metrics.SessionsRejected.WithLabelValues(string(bt), "unknown_employee").Inc()
		return err
	}

	unlock := e.lockKey(employeeID, bt)
	defer unlock()

	now := e.clock.Now()
	count, err := e.audit.CountByDay(ctx, employeeID, string(bt), now.Format(storage.DateLayout))
	if err != nil {
		return fmt.Errorf("count today's sessions: %w", err)
	}
	policy := e.policies[bt]
	if count >= policy.MaxPerDay {
		metrics.SessionsRejected.WithLabelValues(string(bt), "daily_limit").Inc()
		e.logger.Info().
			Str("employee_id", employeeID).
			Str("break_type", string(bt)).
			Int("count_today", count).
			Int("max_per_day", policy.MaxPerDay).
			Msg("Start rejected, daily limit reached")
		return fmt.Errorf("%w: %s has had %d %s breaks today", ErrDailyLimitExceeded, employeeID, count, bt)
	}

	if err := e.registry.Begin(employeeID, string(bt), now); err != nil {
		if errors.Is(err, registry.ErrActiveExists) {
			metrics.SessionsRejected.WithLabelValues(string(bt), "already_active").Inc()
			return fmt.Errorf("%w: %s/%s", ErrSessionAlreadyActive, employeeID, bt)
		}
		return fmt.Errorf("begin session: %w", err)
	}

	metrics.SessionsStarted.WithLabelValues(string(bt)).Inc()
	metrics.ActiveSessions.Inc()
	e.logger.Info().
		Str("employee_id", employeeID).
		Str("break_type", string(bt)).
		Time("started_at", now).
		Msg("Session started")
	return nil
}

// EndSession completes a break session: computes the duration, classifies
// overtime, appends the completed record, then removes the registry entry.
// The append happens first so a storage fault leaves the session active
// rather than losing the record.
func (e *Engine) EndSession(ctx context.Context, employeeID, breakType string) (Completion, error) {
	bt, err := ParseBreakType(breakType)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues(breakType, "unknown_type").Inc()
		return Completion{}, err
	}
	if err := e.requireEmployee(ctx, employeeID); err != nil {
		metrics.SessionsRejected.WithLabelValues(string(bt), "unknown_employee").Inc()
		return Completion{}, err
	}

	unlock := e.lockKey(employeeID, bt)
	defer unlock()

	started, active := e.registry.Lookup(employeeID, string(bt))
	if !active {
		metrics.SessionsRejected.WithLabelValues(string(bt), "not_active").Inc()
		return Completion{}, fmt.Errorf("%w: %s/%s", ErrNoSessionToStop, employeeID, bt)
	}

	now := e.clock.Now()
	duration := now.Sub(started)
	// Exclusive boundary: a session of exactly MaxDuration is not overtime.
	overtime := duration > e.policies[bt].MaxDuration

	rec := storage.CompletedRecord{
		EmployeeID: employeeID,
		BreakType:  string(bt),
		StartTime:  started,
		EndTime:    now,
		Overtime:   overtime,
	}
	if err := e.audit.Append(ctx, rec); err != nil {
		return Completion{}, fmt.Errorf("append completed record: %w", err)
	}

	if _, err := e.registry.End(employeeID, string(bt)); err != nil {
		// The record is already durable; surface the registry fault.
		return Completion{}, fmt.Errorf("end session: %w", err)
	}

	// Minutes are truncated, not rounded: seconds are discarded.
	minutes := int(duration / time.Minute)

	metrics.SessionsCompleted.WithLabelValues(string(bt), strconv.FormatBool(overtime)).Inc()
	metrics.BreakMinutesConsumed.WithLabelValues(string(bt)).Add(float64(minutes))
	metrics.ActiveSessions.Dec()
	e.logger.Info().
		Str("employee_id", employeeID).
		Str("break_type", string(bt)).
		Int("duration_minutes", minutes).
		Bool("overtime", overtime).
		Msg("Session completed")

	return Completion{
		EmployeeID:      employeeID,
		BreakType:       bt,
		StartTime:       started,
		EndTime:         now,
		DurationMinutes: minutes,
		Overtime:        overtime,
	}, nil
}

// CountToday returns the number of completed sessions for the employee and
// break type that started on today's local calendar date.
func (e *Engine) CountToday(ctx context.Context, employeeID, breakType string) (int, error) {
	bt, err := ParseBreakType(breakType)
	if err != nil {
		return 0, err
	}
	count, err := e.audit.CountByDay(ctx, employeeID, string(bt), e.clock.Now().Format(storage.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("count today's sessions: %w", err)
	}
	return count, nil
}

// ActiveSessions lists all in-flight sessions.
func (e *Engine) ActiveSessions() []registry.ActiveSession {
	return e.registry.List()
}

// Policy returns the policy for a break type label.
func (e *Engine) Policy(breakType string) (Policy, error) {
	bt, err := ParseBreakType(breakType)
	if err != nil {
		return Policy{}, err
	}
	return e.policies[bt], nil
}

// RegisterEmployee adds an employee to the registry.
func (e *Engine) RegisterEmployee(ctx context.Context, employeeID string) error {
	if employeeID == "" {
		return fmt.Errorf("%w: empty employee id", ErrUnknownEmployee)
	}
	err := e.employees.Register(ctx, storage.Employee{
		ID:           employeeID,
		RegisteredAt: e.clock.Now(),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, employeeID)
	}
	if err != nil {
		return fmt.Errorf("register employee: %w", err)
	}
	e.empCache.Add(employeeID, struct{}{})
	e.logger.Info().Str("employee_id", employeeID).Msg("Employee registered")
	return nil
}

// EmployeeExists reports whether the employee is registered.
func (e *Engine) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	if employeeID == "" {
		return false, nil
	}
	if _, ok := e.empCache.Get(employeeID); ok {
		return true, nil
	}
	exists, err := e.employees.Exists(ctx, employeeID)
	if err != nil {
		return false, fmt.Errorf("check employee: %w", err)
	}
	if exists {
		// Registration is permanent, so positive results cache forever.
		e.empCache.Add(employeeID, struct{}{})
	}
	return exists, nil
}

// ExportCompletedRecords returns completed records for the period, ordered
// by start time. Periods are local calendar months; records are selected
// by start date.
func (e *Engine) ExportCompletedRecords(ctx context.Context, period string) ([]storage.CompletedRecord, error) {
	from, to, err := PeriodRange(period, e.clock.Now())
	if err != nil {
		return nil, err
	}
	records, err := e.audit.QueryRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query completed records: %w", err)
	}
	return records, nil
}

// PeriodRange resolves an export period name to a half-open [from, to)
// local time range.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	switch period {
	case "this_month":
		return firstOfMonth, firstOfMonth.AddDate(0, 1, 0), nil
	case "last_month":
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}

func (e *Engine) requireEmployee(ctx context.Context, employeeID string) error {
	exists, err := e.EmployeeExists(ctx, employeeID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownEmployee, employeeID)
	}
	return nil
}

// lockKey serializes operations per (employee, break type) key. Locks are
// never reclaimed; the key space is bounded by employees x break types.
func (e *Engine) lockKey(employeeID string, bt BreakType) func() {
	key := employeeID + ":" + string(bt)

	e.mu.Lock()
	lock, ok := e.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.keyLocks[key] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
