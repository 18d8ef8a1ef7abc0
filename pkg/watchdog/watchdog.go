package watchdog

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/autoscaler/pkg/health"
	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/cuemby/autoscaler/pkg/platform"
	"github.com/cuemby/autoscaler/pkg/types"
	"github.com/rs/zerolog"
)

// Observation is the restart-flag sample produced by one check
type Observation struct {
	Key   string
	Value float64
}

// ProberFactory builds the restart probe for an app
type ProberFactory func(cfg *types.RestartConfig) health.Prober

// DefaultProber probes GET {app_domain}/restart with the app's API key
func DefaultProber(cfg *types.RestartConfig) health.Prober {
	return health.NewRestartProbe(cfg.AppDomain, cfg.APIKey)
}

// Watchdog polls each app's restart endpoint and restarts it on request
type Watchdog struct {
	mu        sync.Mutex
	probes    map[string]health.Prober
	newProber ProberFactory
	logger    zerolog.Logger
}

// New creates a watchdog. A nil factory uses DefaultProber.
func New(newProber ProberFactory) *Watchdog {
	if newProber == nil {
		newProber = DefaultProber
	}
	return &Watchdog{
		probes:    make(map[string]health.Prober),
		newProber: newProber,
		logger:    log.WithComponent("watchdog"),
	}
}

// Reset drops every cached probe. Probes are rebuilt on the next check.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.probes = make(map[string]health.Prober)
}

// ObservationKey is the exported metric name for an app's restart flag
func ObservationKey(appName string) string {
	return metrics.SanitizeName(appName) + "_restart"
}

// Check probes app and, when the flag is set, restarts it through p.
// It never fails: probe and restart errors are logged and the
// observation is still returned.
func (w *Watchdog) Check(ctx context.Context, app *types.ManagedApp, p platform.Platform) Observation {
	obs := Observation{Key: ObservationKey(app.AppName)}
	if !app.RestartEnabled() {
		return obs
	}

	logger := log.WithApp(w.logger, app.AppName, app.Platform.String())

	result := w.prober(app).Check(ctx)
	if !result.Reachable {
		logger.Debug().
			Str("message", result.Message).
			Dur("duration", result.Duration).
			Msg("Restart probe failed")
	}
	if result.Restart {
		obs.Value = 1
	}
	metrics.RestartFlag.WithLabelValues(app.AppName).Set(obs.Value)

	if !result.Restart {
		return obs
	}

	logger.Info().Msg("Restart requested")
	err := p.Restart(ctx, app.AppName)
	switch {
	case errors.Is(err, platform.ErrDeploymentInProgress):
		metrics.RestartsTotal.WithLabelValues(app.AppName, metrics.ResultSkipped).Inc()
		logger.Info().Err(err).Msg("Skipping restart")
	case err != nil:
		metrics.RestartsTotal.WithLabelValues(app.AppName, metrics.ResultFailure).Inc()
		logger.Error().Err(err).Msg("Restart failed")
	default:
		metrics.RestartsTotal.WithLabelValues(app.AppName, metrics.ResultSuccess).Inc()
		logger.Info().Msg("Restarted app")
	}

	return obs
}

func (w *Watchdog) prober(app *types.ManagedApp) health.Prober {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.probes[app.AppName]; ok {
		return p
	}
	p := w.newProber(app.Restart)
	w.probes[app.AppName] = p
	return p
}
