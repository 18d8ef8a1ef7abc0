/*
Package scheduler fires the autoscaler's two recurring triggers.

	daily   "3 0 * * *"   ─▶ Reloader.Reload   (rebuild snapshot)
	minute  "* * * * *"   ─▶ Ticker.Tick       (reconcile + watchdog)

Both run on a robfig/cron instance evaluated in the configured timezone.
Start performs one reload before the triggers are armed so the first tick
already has a snapshot. A job that is still running when its next
activation comes due is skipped, and panics inside a job are recovered.

The two triggers are independent goroutines; they coordinate through the
manager's reload guard, not through the scheduler.

Stop waits for running jobs and then for the reconciler's outstanding
formation writes, bounded by the caller's context.
*/
package scheduler
