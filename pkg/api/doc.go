/*
Package api serves the autoscaler's HTTP surface.

	GET /health   {"health":"OK"} while the process is up; other verbs 405
	GET /ready    component readiness (store snapshot loaded, scheduler running)
	GET /metrics  Prometheus exposition of the local collectors

There is no control API; schedules are changed by importing documents
into the plan store and waiting for the next reload.
*/
package api
