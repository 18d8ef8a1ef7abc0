package manager

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/cuemby/autoscaler/pkg/schedule"
	"github.com/cuemby/autoscaler/pkg/storage"
	"github.com/cuemby/autoscaler/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrReloadInProgress is returned when Reload is called while another
// reload is still running
var ErrReloadInProgress = errors.New("reload already in progress")

// ConfigurationError aborts a reload. The previous snapshot stays active.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CompiledApp pairs an app with its schedule for the snapshot's day
type CompiledApp struct {
	App      *types.ManagedApp
	Schedule *schedule.Schedule
}

// Snapshot is an immutable compiled roster. A new one is built on every
// reload and swapped in atomically.
type Snapshot struct {
	Version    string
	LoadedAt   time.Time
	Date       string
	Weekday    types.Weekday
	Holiday    bool
	Apps       []CompiledApp
	Formations map[string]*types.Formation

	// Errors are the dangling references skipped during compilation
	Errors []error
}

// Target returns the formation planned for app at minute
func (s *Snapshot) Target(app CompiledApp, minute int) (*types.Formation, bool) {
	f, ok := s.Formations[app.Schedule.At(minute)]
	return f, ok
}

// Config holds configuration for creating a Manager
type Config struct {
	// Open returns a fresh store handle for each reload
	Open storage.Opener

	// Location is used for the weekday and date of a reload
	Location *time.Location

	// Readiness, when set, receives the store component state
	Readiness *metrics.Readiness
}

// Manager owns the active snapshot and the reload guard
type Manager struct {
	open      storage.Opener
	location  *time.Location
	readiness *metrics.Readiness

	snapshot  atomic.Pointer[Snapshot]
	reloading atomic.Bool

	logger zerolog.Logger
}

// NewManager creates a Manager with no snapshot loaded
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Open == nil {
		return nil, errors.New("manager: store opener is required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Manager{
		open:      cfg.Open,
		location:  loc,
		readiness: cfg.Readiness,
		logger:    log.WithComponent("manager"),
	}, nil
}

// Location returns the timezone schedules are compiled in
func (m *Manager) Location() *time.Location {
	return m.location
}

// Reloading reports whether a reload is currently running
func (m *Manager) Reloading() bool {
	return m.reloading.Load()
}

// Snapshot returns the active snapshot, nil before the first successful reload
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Reload reads the store, compiles today's schedules and swaps in the
// new snapshot. On error the previous snapshot is kept.
func (m *Manager) Reload(ctx context.Context, now time.Time) (*Snapshot, error) {
	if !m.reloading.CompareAndSwap(false, true) {
		return nil, ErrReloadInProgress
	}
	defer m.reloading.Store(false)

	timer := metrics.NewTimer()

	snap, err := m.load(ctx, now.In(m.location))
	metrics.ReloadsTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		m.logger.Error().Err(err).Msg("Reload failed, keeping previous snapshot")
		m.reportStore(err)
		return nil, err
	}

	m.snapshot.Store(snap)
	metrics.ManagedApps.Set(float64(len(snap.Apps)))
	m.reportStore(nil)

	for _, refErr := range snap.Errors {
		m.logger.Warn().Err(refErr).Str("version", snap.Version).Msg("Skipped dangling reference")
	}
	m.logger.Info().
		Str("version", snap.Version).
		Str("date", snap.Date).
		Str("weekday", string(snap.Weekday)).
		Bool("holiday", snap.Holiday).
		Int("apps", len(snap.Apps)).
		Dur("duration", timer.Duration()).
		Msg("Reloaded schedules")

	return snap, nil
}

func (m *Manager) load(ctx context.Context, now time.Time) (*Snapshot, error) {
	store, err := m.open()
	if err != nil {
		return nil, &ConfigurationError{Op: "open store", Err: err}
	}
	defer store.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(store, now)
}

// Load compiles the snapshot for the day of now from store
func Load(store storage.Store, now time.Time) (*Snapshot, error) {
	plans, err := store.ListPlans()
	if err != nil {
		return nil, &ConfigurationError{Op: "list plans", Err: err}
	}
	formations, err := store.ListFormations()
	if err != nil {
		return nil, &ConfigurationError{Op: "list formations", Err: err}
	}
	apps, err := store.ListEnabledApps()
	if err != nil {
		return nil, &ConfigurationError{Op: "list apps", Err: err}
	}
	holidays, err := store.GetHolidays(now.Year())
	if err != nil {
		if storage.IsNotFound(err) {
			err = fmt.Errorf("no market holiday record for %d", now.Year())
		}
		return nil, &ConfigurationError{Op: "load holidays", Err: err}
	}

	snap := &Snapshot{
		Version:    uuid.New().String(),
		LoadedAt:   time.Now(),
		Date:       types.DateString(now),
		Weekday:    types.WeekdayOf(now.Weekday()),
		Formations: make(map[string]*types.Formation, len(formations)),
	}
	for _, f := range formations {
		snap.Formations[f.ID] = f
	}

	result := schedule.Compile(schedule.Input{
		Plans:      plans,
		Formations: formations,
		Apps:       apps,
		Holidays:   holidays,
		Weekday:    snap.Weekday,
		Date:       snap.Date,
	})
	snap.Holiday = result.Holiday
	snap.Errors = result.Errors

	for _, app := range apps {
		sched, ok := result.Schedules[app.AppName]
		if !ok {
			continue
		}
		snap.Apps = append(snap.Apps, CompiledApp{App: app, Schedule: sched})
	}

	return snap, nil
}

func (m *Manager) reportStore(err error) {
	if m.readiness == nil {
		return
	}
	switch {
	case err == nil:
		m.readiness.Update(metrics.ComponentStore, true, "")
	case m.snapshot.Load() != nil:
		// stale but valid data keeps the process serving
		m.readiness.Update(metrics.ComponentStore, true, "last reload failed: "+err.Error())
	default:
		m.readiness.Update(metrics.ComponentStore, false, err.Error())
	}
}
