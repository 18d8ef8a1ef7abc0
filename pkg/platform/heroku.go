package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	heroku "github.com/heroku/heroku-go/v5"

	"github.com/cuemby/autoscaler/pkg/types"
)

// Heroku resizes dyno formations through the Heroku Platform API
type Heroku struct {
	svc *heroku.Service
}

// NewHeroku creates a Heroku adapter authenticated with an API token
func NewHeroku(token string, client *http.Client) *Heroku {
	base := http.DefaultTransport
	httpClient := &http.Client{}
	if client != nil {
		if client.Transport != nil {
			base = client.Transport
		}
		httpClient.Timeout = client.Timeout
	}
	httpClient.Transport = &heroku.Transport{
		Password:  token,
		Transport: base,
	}
	return &Heroku{svc: heroku.NewService(httpClient)}
}

// WithBaseURL points the adapter at another API root
func (h *Heroku) WithBaseURL(base string) *Heroku {
	h.svc.URL = strings.TrimRight(base, "/")
	return h
}

// Name returns the platform name
func (h *Heroku) Name() types.PlatformName {
	return types.PlatformHeroku
}

// State returns the formation of processType. An empty processType selects
// the first process type of the app.
func (h *Heroku) State(ctx context.Context, appName, processType string) (types.FormationState, error) {
	formations, err := h.svc.FormationList(ctx, appName, nil)
	if err != nil {
		return types.FormationState{}, fmt.Errorf("get formation: %w", err)
	}
	if len(formations) == 0 {
		return types.FormationState{}, fmt.Errorf("get formation: app %s has no process types", appName)
	}

	f := formations[0]
	if processType != "" {
		found := false
		for _, candidate := range formations {
			if candidate.Type == processType {
				f, found = candidate, true
				break
			}
		}
		if !found {
			// SetState will scale the missing type up from zero
			return types.FormationState{Type: processType}, nil
		}
	}
	return types.FormationState{Type: f.Type, Size: f.Size, Quantity: f.Quantity}, nil
}

// SetState batch-updates the formation with the full triple
func (h *Heroku) SetState(ctx context.Context, appName string, state types.FormationState) error {
	opts, err := formationUpdate(state)
	if err != nil {
		return fmt.Errorf("update formation: %w", err)
	}
	if _, err := h.svc.FormationBatchUpdate(ctx, appName, opts); err != nil {
		return fmt.Errorf("update formation: %w", err)
	}
	return nil
}

// Restart restarts every dyno of the app
func (h *Heroku) Restart(ctx context.Context, appName string) error {
	if _, err := h.svc.DynoRestartAll(ctx, appName); err != nil {
		return fmt.Errorf("restart dynos: %w", err)
	}
	return nil
}

type formationTriple struct {
	Type     string `json:"type"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// formationUpdate builds the batch body from its JSON form; the element type
// of Updates is generated from the API schema and has no stable name.
func formationUpdate(state types.FormationState) (heroku.FormationBatchUpdateOpts, error) {
	var opts heroku.FormationBatchUpdateOpts
	body := struct {
		Updates []formationTriple `json:"updates"`
	}{Updates: []formationTriple{{Type: state.Type, Size: state.Size, Quantity: state.Quantity}}}

	data, err := json.Marshal(body)
	if err != nil {
		return opts, err
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}
