/*
Package health implements the restart probe used by the restart watchdog.

A managed app may expose GET {app_domain}/restart, protected by an
X-API-KEY header, answering {"flag": true} when it wants to be restarted.
RestartProbe calls that endpoint and reports a Result:

	probe := health.NewRestartProbe(app.Restart.AppDomain, app.Restart.APIKey)
	result := probe.Check(ctx)
	if result.Restart {
		// restart the app on its platform
	}

Probes are best effort. Transport errors, timeouts, non-2xx statuses and
malformed bodies all yield Restart=false with Reachable=false and a
human-readable Message; Check never returns an error. The default client
timeout is 10 seconds so a hung endpoint cannot stall a reconciliation tick
for long.
*/
package health
