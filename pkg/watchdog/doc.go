// Package watchdog restarts managed apps that ask for it.
//
// Each tick the reconciler hands every restart-enabled app to
// Watchdog.Check. The check calls GET {app_domain}/restart and, when the
// app answers {"flag": true}, issues exactly one Platform.Restart.
// Probe and restart failures are logged and never propagated, and the
// check always yields an Observation ("<app>_restart" = 0 or 1) for the
// metrics sink.
package watchdog
