package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cuemby/autoscaler/pkg/types"
	"github.com/digitalocean/godo"
)

// In-flight deployment phases; ACTIVE, SUPERSEDED, ERROR and CANCELED are terminal
var activeDeploymentPhases = map[string]bool{
	"PENDING_BUILD":  true,
	"BUILDING":       true,
	"PENDING_DEPLOY": true,
	"DEPLOYING":      true,
}

// DigitalOcean manages App Platform apps. Capacity is existence based:
// the app is created from its stored spec when it should run and deleted
// when its planned quantity drops to zero.
type DigitalOcean struct {
	client *godo.Client
	spec   json.RawMessage
}

// NewDigitalOcean creates an App Platform adapter. spec is the app_spec
// document used by Create; it may be empty for apps that are never created
// by the autoscaler.
func NewDigitalOcean(token string, spec json.RawMessage, baseURL string) (*DigitalOcean, error) {
	client := godo.NewFromToken(token)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid digitalocean base url: %w", err)
		}
		client.BaseURL = u
	}
	return &DigitalOcean{client: client, spec: spec}, nil
}

// Name returns the platform name
func (d *DigitalOcean) Name() types.PlatformName {
	return types.PlatformDigitalOcean
}

// findApp looks the app up by spec name across all pages
func (d *DigitalOcean) findApp(ctx context.Context, appName string) (*godo.App, error) {
	opt := &godo.ListOptions{PerPage: 100}
	for {
		apps, resp, err := d.client.Apps.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list apps: %w", err)
		}
		for _, app := range apps {
			if app.Spec != nil && app.Spec.Name == appName {
				return app, nil
			}
		}
		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			return nil, nil
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, fmt.Errorf("list apps: %w", err)
		}
		opt.Page = page + 1
	}
}

// Exists reports whether an app with this name is deployed
func (d *DigitalOcean) Exists(ctx context.Context, appName string) (bool, error) {
	app, err := d.findApp(ctx, appName)
	if err != nil {
		return false, err
	}
	return app != nil, nil
}

// Create creates the app from the stored spec
func (d *DigitalOcean) Create(ctx context.Context, appName string) error {
	if len(d.spec) == 0 {
		return fmt.Errorf("create app %s: no app_spec configured", appName)
	}

	var spec godo.AppSpec
	if err := json.Unmarshal(d.spec, &spec); err != nil {
		return fmt.Errorf("create app %s: decode app_spec: %w", appName, err)
	}
	if spec.Name == "" {
		spec.Name = appName
	}

	if _, _, err := d.client.Apps.Create(ctx, &godo.AppCreateRequest{Spec: &spec}); err != nil {
		return fmt.Errorf("create app %s: %w", appName, err)
	}
	return nil
}

// Delete deletes the app; deleting an absent app is a no-op
func (d *DigitalOcean) Delete(ctx context.Context, appName string) error {
	app, err := d.findApp(ctx, appName)
	if err != nil {
		return err
	}
	if app == nil {
		return nil
	}
	if _, err := d.client.Apps.Delete(ctx, app.ID); err != nil {
		return fmt.Errorf("delete app %s: %w", appName, err)
	}
	return nil
}

// ActiveDeployments counts deployments that have not reached a terminal phase
func (d *DigitalOcean) ActiveDeployments(ctx context.Context, appName string) (int, error) {
	app, err := d.findApp(ctx, appName)
	if err != nil {
		return 0, err
	}
	if app == nil {
		return 0, nil
	}
	return d.countActive(ctx, app.ID)
}

func (d *DigitalOcean) countActive(ctx context.Context, appID string) (int, error) {
	deployments, _, err := d.client.Apps.ListDeployments(ctx, appID, &godo.ListOptions{PerPage: 100})
	if err != nil {
		return 0, fmt.Errorf("list deployments: %w", err)
	}

	active := 0
	for _, dep := range deployments {
		if activeDeploymentPhases[string(dep.Phase)] {
			active++
		}
	}
	return active, nil
}

// Restart rolls out a new deployment by updating the app with its live
// spec. It refuses while another deployment is in flight.
func (d *DigitalOcean) Restart(ctx context.Context, appName string) error {
	app, err := d.findApp(ctx, appName)
	if err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("restart app %s: app not found", appName)
	}

	active, err := d.countActive(ctx, app.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("restart app %s: %w (%d active)", appName, ErrDeploymentInProgress, active)
	}

	if _, _, err := d.client.Apps.Update(ctx, app.ID, &godo.AppUpdateRequest{Spec: app.Spec}); err != nil {
		return fmt.Errorf("restart app %s: %w", appName, err)
	}
	return nil
}
