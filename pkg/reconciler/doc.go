/*
Package reconciler moves every managed app toward the formation planned
for the current minute.

Tick is invoked once a minute by the scheduler:

	Tick(now)
	  ├─ Reloading()? ──yes──▶ skip (no provider calls)
	  ├─ snapshot version changed? ─▶ drop cached clients and probes
	  ├─ for each app (sequential, panics recovered per app):
	  │    ├─ client from cache or platform.Factory
	  │    ├─ target = snapshot formation at now's minute (configured timezone)
	  │    ├─ Resizer:    State != target ─▶ one SetState on a tracked goroutine
	  │    ├─ Lifecycler: quantity 0 & exists ─▶ Delete
	  │    │              quantity ≥1 & absent ─▶ Create
	  │    └─ restart enabled ─▶ watchdog.Check ─▶ observation
	  └─ sink.Publish(minute, observations)

Failures are logged with the app and platform name and counted on
autoscaler_app_errors_total. Nothing is retried within a tick; the next
tick compares live state again. Wait drains outstanding writes on
shutdown.
*/
package reconciler
