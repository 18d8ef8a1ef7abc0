package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/cuemby/autoscaler/pkg/manager"
	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Default trigger specs
const (
	DefaultReloadSpec = "3 0 * * *"
	DefaultTickSpec   = "* * * * *"
)

// Reloader rebuilds the active snapshot
type Reloader interface {
	Reload(ctx context.Context, now time.Time) (*manager.Snapshot, error)
}

// Ticker runs one reconciliation pass and drains its writes
type Ticker interface {
	Tick(ctx context.Context, now time.Time)
	Wait()
}

// Config wires a Scheduler
type Config struct {
	ReloadSpec string
	TickSpec   string
	Location   *time.Location

	Reloader  Reloader
	Ticker    Ticker
	Readiness *metrics.Readiness
}

// Scheduler fires the daily reload and the per-minute tick
type Scheduler struct {
	cron     *cron.Cron
	reloader Reloader
	ticker   Ticker

	readiness *metrics.Readiness
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool

	logger zerolog.Logger
}

// NewScheduler registers both triggers. Specs use the standard five
// cron fields and are evaluated in cfg.Location.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Reloader == nil || cfg.Ticker == nil {
		return nil, errors.New("scheduler: reloader and ticker are required")
	}
	if cfg.ReloadSpec == "" {
		cfg.ReloadSpec = DefaultReloadSpec
	}
	if cfg.TickSpec == "" {
		cfg.TickSpec = DefaultTickSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	logger := log.WithComponent("scheduler")
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		reloader:  cfg.Reloader,
		ticker:    cfg.Ticker,
		readiness: cfg.Readiness,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(cfg.ReloadSpec, s.runReload); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reload schedule %q: %w", cfg.ReloadSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.TickSpec, s.runTick); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid tick schedule %q: %w", cfg.TickSpec, err)
	}

	return s, nil
}

// Start performs one reload, then starts the triggers. A failed eager
// reload is logged; ticks are skipped until a snapshot exists.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.runReload()
	s.cron.Start()

	if s.readiness != nil {
		s.readiness.Update(metrics.ComponentScheduler, true, "")
	}
	for _, e := range s.cron.Entries() {
		s.logger.Info().Time("next", e.Next).Msg("Trigger scheduled")
	}
}

// Stop halts both triggers, waits for running jobs and then for
// outstanding formation writes, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.readiness != nil {
		s.readiness.Update(metrics.ComponentScheduler, false, "stopped")
	}

	select {
	case <-s.cron.Stop().Done():
		s.cancel()
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("timed out waiting for scheduled jobs: %w", ctx.Err())
	}

	drained := make(chan struct{})
	go func() {
		s.ticker.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for formation writes: %w", ctx.Err())
	}
}

func (s *Scheduler) runReload() {
	if _, err := s.reloader.Reload(s.ctx, s.now()); err != nil {
		if errors.Is(err, manager.ErrReloadInProgress) {
			s.logger.Warn().Msg("Reload already running, skipping trigger")
			return
		}
		s.logger.Error().Err(err).Msg("Scheduled reload failed")
	}
}

func (s *Scheduler) runTick() {
	if s.ctx.Err() != nil {
		return
	}
	now := s.now()
	s.logger.Debug().
		Str("tick_id", uuid.New().String()).
		Time("at", now).
		Msg("Tick")
	s.ticker.Tick(s.ctx, now)
}

// cronLogger routes cron's internal logging through zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
