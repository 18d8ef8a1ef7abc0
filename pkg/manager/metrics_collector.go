package manager

import (
	"time"

	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/cuemby/autoscaler/pkg/types"
)

// MetricsCollector publishes the planned capacity of the active snapshot
type MetricsCollector struct {
	manager  *Manager
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewMetricsCollector creates a collector sampling every 15 seconds
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager:  mgr,
		interval: 15 * time.Second,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	snap := c.manager.Snapshot()
	if snap == nil {
		return
	}

	metrics.ManagedApps.Set(float64(len(snap.Apps)))

	minute := types.MinuteOfDay(c.now().In(c.manager.Location()))
	for _, app := range snap.Apps {
		f, ok := snap.Target(app, minute)
		if !ok {
			continue
		}
		metrics.PlannedQuantity.WithLabelValues(app.App.AppName).Set(float64(f.Quantity))
	}
}
