package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/autoscaler/pkg/types"
)

var (
	// ErrUnknownPlatform is returned for a descriptor with no adapter
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrDeploymentInProgress is returned by a lifecycle restart while a
	// deployment of the app is still running
	ErrDeploymentInProgress = errors.New("deployment in progress")
)

// Platform is implemented by every provider adapter
type Platform interface {
	// Name returns the provider this adapter talks to
	Name() types.PlatformName

	// Restart recycles the app's instances (formation platforms) or
	// rolls out a new deployment (lifecycle platforms)
	Restart(ctx context.Context, appName string) error
}

// Resizer is implemented by formation-based platforms, where capacity is a
// {type, size, quantity} triple on a long-lived app.
type Resizer interface {
	// State reads the live formation of the app's processType
	State(ctx context.Context, appName, processType string) (types.FormationState, error)

	SetState(ctx context.Context, appName string, state types.FormationState) error
}

// Lifecycler is implemented by existence-based platforms, where zero
// capacity means the app is deleted and any capacity means it exists.
type Lifecycler interface {
	Exists(ctx context.Context, appName string) (bool, error)
	Create(ctx context.Context, appName string) error
	Delete(ctx context.Context, appName string) error
	ActiveDeployments(ctx context.Context, appName string) (int, error)
}

// Factory builds the adapter for one managed app
type Factory func(app *types.ManagedApp) (Platform, error)

// Options tune the adapters built by NewFactory
type Options struct {
	// HerokuBaseURL overrides https://api.heroku.com
	HerokuBaseURL string

	// DigitalOceanBaseURL overrides https://api.digitalocean.com/
	DigitalOceanBaseURL string

	// HTTPClient is shared by the REST adapters (default 30s timeout)
	HTTPClient *http.Client
}

// NewFactory returns a Factory that selects the adapter by platform name
func NewFactory(opts Options) Factory {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return func(app *types.ManagedApp) (Platform, error) {
		if app.Platform.Token == "" && app.Platform.Name != "" {
			return nil, fmt.Errorf("platform %s: missing token", app.Platform.Name)
		}

		switch app.Platform.Name {
		case types.PlatformHeroku:
			h := NewHeroku(app.Platform.Token, opts.HTTPClient)
			if opts.HerokuBaseURL != "" {
				h.WithBaseURL(opts.HerokuBaseURL)
			}
			return h, nil

		case types.PlatformDigitalOcean:
			return NewDigitalOcean(app.Platform.Token, app.AppSpec, opts.DigitalOceanBaseURL)

		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, app.Platform.Name)
		}
	}
}
