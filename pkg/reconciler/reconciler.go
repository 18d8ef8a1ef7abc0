package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/cuemby/autoscaler/pkg/manager"
	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/cuemby/autoscaler/pkg/platform"
	"github.com/cuemby/autoscaler/pkg/types"
	"github.com/cuemby/autoscaler/pkg/watchdog"
	"github.com/rs/zerolog"
)

// SnapshotSource supplies the compiled roster and the reload guard
type SnapshotSource interface {
	Reloading() bool
	Snapshot() *manager.Snapshot
	Location() *time.Location
}

// RestartChecker runs the restart watchdog for one app
type RestartChecker interface {
	Check(ctx context.Context, app *types.ManagedApp, p platform.Platform) watchdog.Observation
	Reset()
}

// Publisher receives the restart observations of a tick
type Publisher interface {
	Publish(ctx context.Context, minute int, at time.Time, observations map[string]float64) (bool, error)
}

// Config wires a Reconciler
type Config struct {
	Source   SnapshotSource
	Factory  platform.Factory
	Watchdog RestartChecker
	Sink     Publisher
}

// Reconciler drives every managed app toward its planned formation
type Reconciler struct {
	source   SnapshotSource
	factory  platform.Factory
	watchdog RestartChecker
	sink     Publisher

	mu      sync.Mutex
	version string
	clients map[string]platform.Platform

	writes sync.WaitGroup
	logger zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(cfg Config) *Reconciler {
	wd := cfg.Watchdog
	if wd == nil {
		wd = watchdog.New(nil)
	}
	return &Reconciler{
		source:   cfg.Source,
		factory:  cfg.Factory,
		watchdog: wd,
		sink:     cfg.Sink,
		clients:  make(map[string]platform.Platform),
		logger:   log.WithComponent("reconciler"),
	}
}

// Tick performs one reconciliation pass for the minute of now. It never
// fails; per-app errors are logged and counted.
func (r *Reconciler) Tick(ctx context.Context, now time.Time) {
	if r.source.Reloading() {
		metrics.ReconciliationTicksSkipped.Inc()
		r.logger.Info().Msg("Reload in progress, skipping tick")
		return
	}

	snap := r.source.Snapshot()
	if snap == nil {
		metrics.ReconciliationTicksSkipped.Inc()
		r.logger.Warn().Msg("No schedule loaded yet, skipping tick")
		return
	}

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationTicksTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.syncVersion(snap.Version)

	now = now.In(r.source.Location())
	minute := types.MinuteOfDay(now)

	observations := make(map[string]float64)
	for _, app := range snap.Apps {
		if err := ctx.Err(); err != nil {
			r.logger.Warn().Err(err).Msg("Tick cancelled")
			return
		}
		if obs, ok := r.reconcileApp(ctx, snap, app, minute); ok {
			observations[obs.Key] = obs.Value
		}
	}

	if r.sink != nil {
		if _, err := r.sink.Publish(ctx, minute, now, observations); err != nil {
			r.logger.Error().Err(err).Int("minute", minute).Msg("Failed to push metrics")
		}
	}

	r.logger.Debug().
		Str("version", snap.Version).
		Int("minute", minute).
		Int("apps", len(snap.Apps)).
		Dur("duration", timer.Duration()).
		Msg("Tick complete")
}

// Wait blocks until every dispatched formation write has finished
func (r *Reconciler) Wait() {
	r.writes.Wait()
}

// syncVersion drops cached clients when a new snapshot is observed
func (r *Reconciler) syncVersion(version string) {
	if r.version == version {
		return
	}
	if r.version != "" {
		r.logger.Info().
			Str("previous", r.version).
			Str("version", version).
			Msg("New schedule snapshot, resetting platform clients")
	}
	r.version = version
	r.clients = make(map[string]platform.Platform)
	r.watchdog.Reset()
}

// client returns the cached adapter for app, building it on first use
func (r *Reconciler) client(app *types.ManagedApp) (platform.Platform, error) {
	if p, ok := r.clients[app.AppName]; ok {
		return p, nil
	}
	p, err := r.factory(app)
	if err != nil {
		return nil, err
	}
	r.clients[app.AppName] = p
	return p, nil
}

// reconcileApp applies the planned formation and runs the watchdog for
// one app. A panic is contained to the app.
func (r *Reconciler) reconcileApp(ctx context.Context, snap *manager.Snapshot, app manager.CompiledApp, minute int) (obs watchdog.Observation, ok bool) {
	logger := log.WithApp(r.logger, app.App.AppName, app.App.Platform.String())

	defer func() {
		if rec := recover(); rec != nil {
			metrics.AppErrorsTotal.WithLabelValues(app.App.AppName).Inc()
			logger.Error().Interface("panic", rec).Msg("Recovered from panic while reconciling app")
			ok = false
		}
	}()

	p, err := r.client(app.App)
	if err != nil {
		metrics.AppErrorsTotal.WithLabelValues(app.App.AppName).Inc()
		if errors.Is(err, platform.ErrUnknownPlatform) {
			logger.Warn().Err(err).Msg("Skipping app with unsupported platform")
		} else {
			logger.Error().Err(err).Msg("Failed to create platform client")
		}
		return obs, false
	}

	target, found := snap.Target(app, minute)
	if !found {
		metrics.AppErrorsTotal.WithLabelValues(app.App.AppName).Inc()
		logger.Error().Int("minute", minute).Msg("No formation planned for minute")
		return obs, false
	}

	if err := r.apply(ctx, logger, app.App.AppName, p, target); err != nil {
		metrics.AppErrorsTotal.WithLabelValues(app.App.AppName).Inc()
		logger.Error().Err(err).Str("formation", target.ID).Msg("Failed to reconcile formation")
	}

	if !app.App.RestartEnabled() {
		return obs, false
	}
	return r.watchdog.Check(ctx, app.App, p), true
}

// apply moves the live app toward target
func (r *Reconciler) apply(ctx context.Context, logger zerolog.Logger, appName string, p platform.Platform, target *types.Formation) error {
	switch adapter := p.(type) {
	case platform.Lifecycler:
		return r.applyLifecycle(ctx, logger, appName, adapter, target)

	case platform.Resizer:
		want := target.State()
		live, err := adapter.State(ctx, appName, want.Type)
		if err != nil {
			return fmt.Errorf("failed to read formation: %w", err)
		}
		if live.Equal(want) {
			return nil
		}

		logger.Info().
			Str("from", live.String()).
			Str("to", want.String()).
			Str("formation", target.ID).
			Msg("Updating formation")
		r.dispatch(logger, appName, func() error {
			return adapter.SetState(context.WithoutCancel(ctx), appName, want)
		})
		return nil

	default:
		return fmt.Errorf("platform %s cannot apply formations", p.Name())
	}
}

func (r *Reconciler) applyLifecycle(ctx context.Context, logger zerolog.Logger, appName string, p platform.Lifecycler, target *types.Formation) error {
	exists, err := p.Exists(ctx, appName)
	if err != nil {
		return fmt.Errorf("failed to look up app: %w", err)
	}

	var action string
	switch {
	case target.Quantity == 0 && exists:
		action = "delete"
		err = p.Delete(ctx, appName)
	case target.Quantity > 0 && !exists:
		action = "create"
		err = p.Create(ctx, appName)
	default:
		return nil
	}

	metrics.LifecycleActionsTotal.WithLabelValues(appName, action, metrics.ResultLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to %s app: %w", action, err)
	}
	logger.Info().Str("action", action).Str("formation", target.ID).Msg("Applied lifecycle action")
	return nil
}

// dispatch runs a formation write on a tracked goroutine
func (r *Reconciler) dispatch(logger zerolog.Logger, appName string, write func() error) {
	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		defer func() {
			if rec := recover(); rec != nil {
				metrics.FormationWritesTotal.WithLabelValues(appName, metrics.ResultFailure).Inc()
				logger.Error().Interface("panic", rec).Msg("Recovered from panic in formation write")
			}
		}()

		err := write()
		metrics.FormationWritesTotal.WithLabelValues(appName, metrics.ResultLabel(err)).Inc()
		if err != nil {
			logger.Error().Err(err).Msg("Formation write failed")
			return
		}
		logger.Info().Msg("Formation updated")
	}()
}
