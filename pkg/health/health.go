package health

import (
	"context"
	"time"
)

// Result represents the outcome of a restart probe
type Result struct {
	// Restart is true only when the endpoint answered 2xx with {"flag": true}
	Restart bool

	// Reachable is false when the probe failed (network, status, body)
	Reachable bool

	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Prober is the interface restart probes implement
type Prober interface {
	// Check performs the probe. It never returns an error: failures are
	// reported as an unreachable result with Restart=false.
	Check(ctx context.Context) Result
}
