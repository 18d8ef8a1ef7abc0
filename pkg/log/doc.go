/*
Package log provides structured logging for the autoscaler using zerolog.

The package wraps a single global zerolog.Logger. It is initialised once by
the CLI from LOG_LEVEL / LOG_JSON (or the --log-level / --log-json flags) and
every long-running component derives a child logger from it.

# Component Loggers

	logger := log.WithComponent("reconciler")
	appLog := log.WithApp(logger, app.AppName, app.Platform.String())
	appLog.Warn().Err(err).Msg("failed to fetch formation")

Fields used across the code base:

	component   reconciler, watchdog, manager, scheduler, metrics, api
	app         managed application name
	platform    provider name (heroku, digitalocean); never the token
	minute      schedule index of the tick (0-1439)
	version     configuration snapshot id

# Log Levels

  - debug: per-app "formation already matches" lines, probe results
  - info: reloads, formation writes, restarts, metric pushes
  - warn: skipped ticks, data reference errors, probe failures
  - error: platform failures, configuration errors

# Output

Console output is the default and is meant for a terminal or a PaaS log
drain. JSON output (LOG_JSON=true) is one object per line:

	{"level":"info","component":"reconciler","app":"billing-api","platform":"heroku","time":"2026-03-02T09:15:00+05:30","message":"formation updated"}
*/
package log
