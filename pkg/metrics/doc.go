/*
Package metrics provides Prometheus instrumentation and metric export for
the autoscaler.

Two independent paths live here:

	┌──────────────── local exposition ────────────────┐
	│ collectors (metrics.go) ──▶ promhttp /metrics    │
	│ Readiness (health.go)   ──▶ /ready               │
	└──────────────────────────────────────────────────┘

	┌──────────────── remote export ───────────────────┐
	│ watchdog observations ──┐                        │
	│ Redis "metrics" key ────┼─▶ Sink ─▶ RemoteWriter │
	│                         │   (market window gate) │
	└──────────────────────────────────────────────────┘

# Collectors

All collectors are registered on the default registry at init:

  - autoscaler_reconciliation_duration_seconds, _ticks_total, _ticks_skipped_total
  - autoscaler_formation_writes_total{app,result}
  - autoscaler_lifecycle_actions_total{app,action,result}
  - autoscaler_app_errors_total{app}
  - autoscaler_planned_quantity{app}
  - autoscaler_restart_flag{app}, autoscaler_restarts_total{app,result}
  - autoscaler_reloads_total{result}, autoscaler_managed_apps
  - autoscaler_remote_writes_total{result}

Use Timer for durations:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

# Remote write

RemoteWriter encodes a Prometheus remote-write WriteRequest directly with
protowire, compresses it with snappy and posts it with basic auth. Every
sample in a push shares one timestamp.

Sink only pushes while the minute of day lies in the inclusive
MarketWindow (09:15-15:30 by default). When a MetricCache is configured
the JSON object stored at the Redis key "metrics" is merged in first, so
values observed during the tick take precedence. The "t" field of that
object is a producer timestamp and is never exported.

# Readiness

Readiness answers /ready once the store has produced a snapshot and the
scheduler is running. /health stays a plain liveness check.
*/
package metrics
