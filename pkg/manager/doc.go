/*
Package manager owns the compiled roster the reconciler works from.

A reload opens a fresh store handle, reads plans, formations, enabled app
plans and the market holiday calendar for the current year, compiles one
per-minute schedule per app for today's date and weekday, and publishes
the result as an immutable Snapshot:

	       store (read-only handle, closed after use)
	         │
	         ▼
	  ┌──────────────┐   schedule.Compile   ┌────────────────┐
	  │ Manager.load │ ───────────────────▶ │ Snapshot v<id> │
	  └──────────────┘                      └───────┬────────┘
	                                                │ atomic swap
	                                                ▼
	                                   reconciler reads Snapshot()

# Reload guard

Reloading reports true for the whole duration of a reload. The reconciler
checks it before touching any provider and skips the tick when set. Only
one reload runs at a time; a second caller gets ErrReloadInProgress.

# Failure handling

Store errors and a missing holiday record for the year are returned as
*ConfigurationError. The previous snapshot stays active, so ticks keep
running on stale but valid data. Dangling plan or formation references
do not fail a reload; they are recorded on Snapshot.Errors and logged.

Every snapshot carries a fresh uuid Version. Consumers that cache
per-app clients drop them when the version changes.

# Metrics

MetricsCollector samples the active snapshot every 15 seconds and sets
autoscaler_managed_apps and autoscaler_planned_quantity{app}.
*/
package manager
