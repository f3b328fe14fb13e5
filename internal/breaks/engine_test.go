package breaks_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/goodtune/breakwatch/internal/registry"
	"github.com/goodtune/breakwatch/internal/storage"
	"github.com/goodtune/breakwatch/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine   *breaks.Engine
	clock    *breaks.TestClock
	registry *registry.Registry
	store    *bolt.Store
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	dir := t.TempDir()
	store, err := bolt.Open(filepath.Join(dir, "breakwatch.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg, err := registry.Load(filepath.Join(dir, "active_sessions.json"))
	require.NoError(t, err)

	clock := &breaks.TestClock{
		CurrentTime: time.Date(2024, 6, 3, 9, 0, 0, 0, time.Local),
	}

	engine, err := breaks.NewEngine(breaks.DefaultPolicies(), reg, store.Audit(), store.Employees(), clock, zerolog.Nop())
	require.NoError(t, err)

	return &engineFixture{engine: engine, clock: clock, registry: reg, store: store}
}

func (f *engineFixture) register(t *testing.T, employeeID string) {
	t.Helper()
	require.NoError(t, f.engine.RegisterEmployee(context.Background(), employeeID))
}

func TestStartSessionUnknownBreakType(t *testing.T) {
	f := newEngineFixture(t)
	f.register(t, "E1")

	err := f.engine.StartSession(context.Background(), "E1", "NAP")
	require.ErrorIs(t, err, breaks.ErrUnknownBreakType)

	// No state mutation happened.
	_, active := f.registry.Lookup("E1", "NAP")
	require.False(t, active)
}

func TestStartSessionUnknownEmployee(t *testing.T) {
	f := newEngineFixture(t)

	err := f.engine.StartSession(context.Background(), "ghost", "SMOKING")
	require.ErrorIs(t, err, breaks.ErrUnknownEmployee)
}

func TestRestroomLifecycleScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	// First session: 10 minutes, within the 15 minute limit.
	require.NoError(t, f.engine.StartSession(ctx, "E1", "RESTROOM"))
	f.clock.Advance(10 * time.Minute)
	completion, err := f.engine.EndSession(ctx, "E1", "RESTROOM")
	require.NoError(t, err)
	require.False(t, completion.Overtime)
	require.Equal(t, 10, completion.DurationMinutes)

	// Second session: 16 minutes, over the limit.
	require.NoError(t, f.engine.StartSession(ctx, "E1", "RESTROOM"))
	f.clock.Advance(16 * time.Minute)
	completion, err = f.engine.EndSession(ctx, "E1", "RESTROOM")
	require.NoError(t, err)
	require.True(t, completion.Overtime)

	// Third start on the same day exceeds max_per_day=2.
	err = f.engine.StartSession(ctx, "E1", "RESTROOM")
	require.ErrorIs(t, err, breaks.ErrDailyLimitExceeded)

	count, err := f.engine.CountToday(ctx, "E1", "RESTROOM")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestOvertimeBoundaryIsExclusive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	// Exactly at the 5 minute smoking limit: not overtime.
	require.NoError(t, f.engine.StartSession(ctx, "E1", "SMOKING"))
	f.clock.Advance(5 * time.Minute)
	completion, err := f.engine.EndSession(ctx, "E1", "SMOKING")
	require.NoError(t, err)
	require.False(t, completion.Overtime)

	// One microsecond longer: overtime.
	require.NoError(t, f.engine.StartSession(ctx, "E1", "SMOKING"))
	f.clock.Advance(5*time.Minute + time.Microsecond)
	completion, err = f.engine.EndSession(ctx, "E1", "SMOKING")
	require.NoError(t, err)
	require.True(t, completion.Overtime)
}

func TestDurationMinutesTruncated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	require.NoError(t, f.engine.StartSession(ctx, "E1", "SMOKING"))
	f.clock.Advance(1*time.Minute + 59*time.Second)
	completion, err := f.engine.EndSession(ctx, "E1", "SMOKING")
	require.NoError(t, err)
	require.Equal(t, 1, completion.DurationMinutes)
}

func TestDuplicateStartRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E2")

	require.NoError(t, f.engine.StartSession(ctx, "E2", "SMOKING"))
	err := f.engine.StartSession(ctx, "E2", "SMOKING")
	require.ErrorIs(t, err, breaks.ErrSessionAlreadyActive)

	// A different break type for the same employee is its own key.
	require.NoError(t, f.engine.StartSession(ctx, "E2", "RESTROOM"))
}

func TestEndWithoutStart(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	_, err := f.engine.EndSession(ctx, "E1", "RESTROOM")
	require.ErrorIs(t, err, breaks.ErrNoSessionToStop)

	// No record was produced.
	count, err := f.engine.CountToday(ctx, "E1", "RESTROOM")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestDailyLimitCheckedBeforeDuplicateActive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	// Exhaust the daily restroom limit.
	for i := 0; i < 2; i++ {
		require.NoError(t, f.engine.StartSession(ctx, "E1", "RESTROOM"))
		f.clock.Advance(time.Minute)
		_, err := f.engine.EndSession(ctx, "E1", "RESTROOM")
		require.NoError(t, err)
	}

	// Plant an active session behind the engine's back: the limit check
	// must still win over the duplicate-active check.
	require.NoError(t, f.registry.Begin("E1", "RESTROOM", f.clock.Now()))

	err := f.engine.StartSession(ctx, "E1", "RESTROOM")
	require.ErrorIs(t, err, breaks.ErrDailyLimitExceeded)
}

func TestEndSessionRemovesRegistryEntryAndAppendsOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	require.NoError(t, f.engine.StartSession(ctx, "E1", "TAKEOUT"))
	f.clock.Advance(30 * time.Second)
	_, err := f.engine.EndSession(ctx, "E1", "TAKEOUT")
	require.NoError(t, err)

	_, active := f.registry.Lookup("E1", "TAKEOUT")
	require.False(t, active)

	count, err := f.engine.CountToday(ctx, "E1", "TAKEOUT")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMidnightSpanCountsByStartDate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	f.clock.CurrentTime = time.Date(2024, 6, 3, 23, 55, 0, 0, time.Local)
	require.NoError(t, f.engine.StartSession(ctx, "E1", "SMOKING"))

	// The session ends after midnight; it counts against June 3rd.
	f.clock.Advance(10 * time.Minute)
	completion, err := f.engine.EndSession(ctx, "E1", "SMOKING")
	require.NoError(t, err)
	require.True(t, completion.Overtime)

	count, err := f.engine.CountToday(ctx, "E1", "SMOKING")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	yesterday, err := f.store.Audit().CountByDay(ctx, "E1", "SMOKING", "2024-06-03")
	require.NoError(t, err)
	require.Equal(t, 1, yesterday)
}

func TestConcurrentStartsSingleWinner(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	const workers = 8
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.engine.StartSession(ctx, "E1", "SMOKING")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, breaks.ErrSessionAlreadyActive)
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestRegisterEmployeeDuplicate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.RegisterEmployee(ctx, "E9"))
	err := f.engine.RegisterEmployee(ctx, "E9")
	require.ErrorIs(t, err, breaks.ErrAlreadyRegistered)

	exists, err := f.engine.EmployeeExists(ctx, "E9")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestExportCompletedRecords(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.register(t, "E1")

	require.NoError(t, f.engine.StartSession(ctx, "E1", "TAKEOUT"))
	f.clock.Advance(45 * time.Second)
	_, err := f.engine.EndSession(ctx, "E1", "TAKEOUT")
	require.NoError(t, err)

	records, err := f.engine.ExportCompletedRecords(ctx, "this_month")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "E1", records[0].EmployeeID)
	require.Equal(t, "TAKEOUT", records[0].BreakType)

	records, err = f.engine.ExportCompletedRecords(ctx, "last_month")
	require.NoError(t, err)
	require.Empty(t, records)

	_, err = f.engine.ExportCompletedRecords(ctx, "this_week")
	require.ErrorIs(t, err, breaks.ErrInvalidPeriod)
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.Local)

	from, to, err := breaks.PeriodRange("this_month", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), from)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local), to)

	from, to, err = breaks.PeriodRange("last_month", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local), from)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), to)

	_, _, err = breaks.PeriodRange("yesterday", now)
	require.ErrorIs(t, err, breaks.ErrInvalidPeriod)
}

var _ storage.AuditStore = (*noopAudit)(nil)

// noopAudit fails every append, for exercising the storage-fault path.
type noopAudit struct {
	storage.AuditStore
	failAppend bool
}

func (a *noopAudit) Append(ctx context.Context, rec storage.CompletedRecord) error {
	if a.failAppend {
		return context.DeadlineExceeded
	}
	return a.AuditStore.Append(ctx, rec)
}

func TestEndSessionAppendFailureLeavesSessionActive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	audit := &noopAudit{AuditStore: f.store.Audit(), failAppend: true}
	engine, err := breaks.NewEngine(breaks.DefaultPolicies(), f.registry, audit, f.store.Employees(), f.clock, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, engine.RegisterEmployee(ctx, "E1"))
	require.NoError(t, engine.StartSession(ctx, "E1", "SMOKING"))
	f.clock.Advance(time.Minute)

	_, err = engine.EndSession(ctx, "E1", "SMOKING")
	require.Error(t, err)
	require.NotErrorIs(t, err, breaks.ErrNoSessionToStop)

	// The session is still active and can be ended once storage recovers.
	audit.failAppend = false
	completion, err := engine.EndSession(ctx, "E1", "SMOKING")
	require.NoError(t, err)
	require.Equal(t, 1, completion.DurationMinutes)
}
