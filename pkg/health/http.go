package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIKeyHeader carries the per-app key expected by the restart endpoint
const APIKeyHeader = "X-API-KEY"

// RestartProbe asks an application whether it wants to be restarted
type RestartProbe struct {
	// URL is the full restart endpoint (e.g., "https://app.example.com/restart")
	URL string

	// Headers are sent with every probe
	Headers map[string]string

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

type restartFlag struct {
	Flag *bool `json:"flag"`
}

// NewRestartProbe builds a probe for GET {appDomain}/restart. A domain
// without a scheme is assumed to be https.
func NewRestartProbe(appDomain, apiKey string) *RestartProbe {
	base := strings.TrimRight(strings.TrimSpace(appDomain), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	p := &RestartProbe{
		URL:     base + "/restart",
		Headers: make(map[string]string),
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if apiKey != "" {
		p.Headers[APIKeyHeader] = apiKey
	}
	return p
}

// Check performs the restart probe
func (p *RestartProbe) Check(ctx context.Context) Result {
	start := time.Now()
	fail := func(format string, args ...any) Result {
		return Result{
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fail("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range p.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body restartFlag
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return fail("malformed body: %v", err)
	}
	if body.Flag == nil {
		return fail("malformed body: missing flag")
	}

	return Result{
		Restart:   *body.Flag,
		Reachable: true,
		Message:   fmt.Sprintf("flag=%t", *body.Flag),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// WithHeader adds a custom HTTP header
func (p *RestartProbe) WithHeader(key, value string) *RestartProbe {
	p.Headers[key] = value
	return p
}

// WithTimeout sets the HTTP client timeout
func (p *RestartProbe) WithTimeout(timeout time.Duration) *RestartProbe {
	p.Client.Timeout = timeout
	return p
}
