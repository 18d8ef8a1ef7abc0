package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Component names tracked for readiness
const (
	ComponentStore     = "store"
	ComponentScheduler = "scheduler"
)

// ReadinessStatus is the body served on /ready
type ReadinessStatus struct {
	Status     string            `json:"status"` // "ready" or "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last reported state of one component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// Readiness aggregates component reports into a ready/not-ready answer
type Readiness struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	required   []string
	startTime  time.Time
	version    string
}

// NewReadiness creates a tracker that is ready once every required
// component has reported healthy
func NewReadiness(version string, required ...string) *Readiness {
	return &Readiness{
		components: make(map[string]ComponentHealth),
		required:   required,
		startTime:  time.Now(),
		version:    version,
	}
}

// Update records the state of a component
func (r *Readiness) Update(name string, healthy bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// Component returns the last report for name
func (r *Readiness) Component(name string) (ComponentHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Status evaluates the required components
func (r *Readiness) Status() ReadinessStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := ReadinessStatus{
		Status:     "ready",
		Timestamp:  time.Now(),
		Components: make(map[string]string),
		Version:    r.version,
		Uptime:     time.Since(r.startTime).Round(time.Second).String(),
	}

	names := append([]string(nil), r.required...)
	sort.Strings(names)
	for _, name := range names {
		comp, ok := r.components[name]
		switch {
		case !ok:
			status.Components[name] = "not registered"
			if status.Message == "" {
				status.Message = "waiting for " + name + " initialization"
			}
			status.Status = "not_ready"
		case !comp.Healthy:
			status.Components[name] = "not ready: " + comp.Message
			if status.Message == "" {
				status.Message = "waiting for " + name
			}
			status.Status = "not_ready"
		default:
			status.Components[name] = "ready"
		}
	}

	return status
}

// ReadyHandler serves the readiness status, 503 while not ready
func (r *Readiness) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := r.Status()

		w.Header().Set("Content-Type", "application/json")
		code := http.StatusOK
		if status.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)

		_ = json.NewEncoder(w).Encode(status)
	}
}
