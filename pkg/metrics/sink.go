package metrics

import (
	"context"
	"time"

	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/rs/zerolog"
)

// Sink forwards per-tick observations to the remote-write backend during
// the market window
type Sink struct {
	window MarketWindow
	pusher Pusher
	cache  MetricCache
	logger zerolog.Logger
}

// NewSink creates a sink. A nil pusher disables export; a nil cache
// skips the merge.
func NewSink(window MarketWindow, pusher Pusher, cache MetricCache) *Sink {
	return &Sink{
		window: window,
		pusher: pusher,
		cache:  cache,
		logger: log.WithComponent("metrics"),
	}
}

// Publish pushes observations (merged with cached values) when minute is
// inside the window. It reports whether a push was attempted.
func (s *Sink) Publish(ctx context.Context, minute int, at time.Time, observations map[string]float64) (bool, error) {
	if s.pusher == nil || !s.window.IsOpen(minute) {
		return false, nil
	}

	samples := make(map[string]float64, len(observations))
	if s.cache != nil {
		cached, err := s.cache.Load(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Metric cache unavailable, pushing observations only")
		}
		for k, v := range cached {
			samples[k] = v
		}
	}
	for k, v := range observations {
		samples[k] = v
	}
	if len(samples) == 0 {
		return false, nil
	}

	err := s.pusher.Push(ctx, samples, at)
	RemoteWritesTotal.WithLabelValues(ResultLabel(err)).Inc()
	if err != nil {
		return true, err
	}

	s.logger.Debug().
		Int("minute", minute).
		Int("samples", len(samples)).
		Msg("Pushed metrics")
	return true, nil
}
