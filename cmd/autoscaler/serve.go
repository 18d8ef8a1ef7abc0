package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/autoscaler/pkg/api"
	"github.com/cuemby/autoscaler/pkg/config"
	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/cuemby/autoscaler/pkg/manager"
	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/cuemby/autoscaler/pkg/platform"
	"github.com/cuemby/autoscaler/pkg/reconciler"
	"github.com/cuemby/autoscaler/pkg/scheduler"
	"github.com/cuemby/autoscaler/pkg/storage"
	"github.com/cuemby/autoscaler/pkg/watchdog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, reconciler and health server",
	Long: `Run the autoscaler until interrupted.

The plan store is reloaded once at startup and then daily; every minute
each enabled app is reconciled toward its planned formation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		return serve(cfg, shutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Time to wait for in-flight ticks and formation writes")
}

func openStore(cfg *config.Config) storage.Opener {
	return func() (storage.Store, error) {
		return storage.NewBoltStore(cfg.DatabaseURL, cfg.DatabaseName, storage.Options{ReadOnly: true})
	}
}

// daemon is the wired server process: manager, reconciler, triggers and
// the health endpoint
type daemon struct {
	cfg       *config.Config
	readiness *metrics.Readiness
	manager   *manager.Manager
	scheduler *scheduler.Scheduler
	server    *api.HealthServer
	collector *manager.MetricsCollector
	cache     *metrics.RedisCache
	remote    bool
	errCh     chan error
}

// newDaemon wires every component without touching the plan store. An
// unreachable store surfaces in the first reload and is retried by the
// daily trigger.
func newDaemon(cfg *config.Config) (*daemon, error) {
	d := &daemon{
		cfg:       cfg,
		readiness: metrics.NewReadiness(Version, metrics.ComponentStore, metrics.ComponentScheduler),
		errCh:     make(chan error, 1),
	}

	mgr, err := manager.NewManager(&manager.Config{
		Open:      openStore(cfg),
		Location:  cfg.Location,
		Readiness: d.readiness,
	})
	if err != nil {
		return nil, err
	}
	d.manager = mgr

	var pusher metrics.Pusher
	if cfg.PrometheusEndpoint != "" {
		pusher = metrics.NewRemoteWriter(cfg.PrometheusEndpoint, cfg.PrometheusUsername, cfg.PrometheusPassword)
		d.remote = true
	}
	var cache metrics.MetricCache
	if cfg.RedisAddr != "" {
		d.cache = metrics.NewRedisCache(metrics.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cache = d.cache
	}
	sink := metrics.NewSink(metrics.MarketWindow{Open: cfg.MarketOpenMinute, Close: cfg.MarketCloseMinute}, pusher, cache)

	recon := reconciler.NewReconciler(reconciler.Config{
		Source:   mgr,
		Factory:  platform.NewFactory(platform.Options{}),
		Watchdog: watchdog.New(nil),
		Sink:     sink,
	})

	d.scheduler, err = scheduler.NewScheduler(scheduler.Config{
		ReloadSpec: cfg.ReloadSchedule,
		TickSpec:   cfg.TickSchedule,
		Location:   cfg.Location,
		Reloader:   mgr,
		Ticker:     recon,
		Readiness:  d.readiness,
	})
	if err != nil {
		d.closeCache()
		return nil, err
	}

	d.server = api.NewHealthServer(d.readiness)
	d.collector = manager.NewMetricsCollector(mgr)
	return d, nil
}

// start runs the health server, the triggers (with the eager reload) and
// the metrics collector
func (d *daemon) start() {
	go func() {
		if err := d.server.Start(d.cfg.ListenAddr()); err != nil {
			d.errCh <- fmt.Errorf("health server error: %w", err)
		}
	}()

	logger := log.WithComponent("main")
	logger.Info().
		Str("version", Version).
		Str("timezone", d.cfg.Location.String()).
		Str("database", d.cfg.DatabaseName).
		Bool("remote_write", d.remote).
		Bool("metric_cache", d.cache != nil).
		Msg("Starting autoscaler")

	d.scheduler.Start()
	d.collector.Start()
}

// stop drains in-flight work until ctx is done
func (d *daemon) stop(ctx context.Context) {
	logger := log.WithComponent("main")

	d.collector.Stop()
	if err := d.scheduler.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
	}
	if err := d.server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Health server did not stop cleanly")
	}
	d.closeCache()
}

func (d *daemon) closeCache() {
	if d.cache != nil {
		_ = d.cache.Close()
	}
}

func serve(cfg *config.Config, shutdownTimeout time.Duration) error {
	logger := log.WithComponent("main")

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	d.start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-d.errCh:
		logger.Error().Err(runErr).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.stop(ctx)

	logger.Info().Msg("Shutdown complete")
	return runErr
}
