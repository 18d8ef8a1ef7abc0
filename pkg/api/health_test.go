package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer(nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request succeeds", http.MethodGet, http.StatusOK},
		{"POST request fails", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request fails", http.MethodPut, http.StatusMethodNotAllowed},
		{"DELETE request fails", http.MethodDelete, http.StatusMethodNotAllowed},
		{"PATCH request fails", http.MethodPatch, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, hs.Handler(), tt.method, "/health")
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.JSONEq(t, `{"health":"OK"}`, rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.ReconciliationTicksTotal.Inc()

	rec := serve(t, NewHealthServer(nil).Handler(), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "autoscaler_reconciliation_ticks_total"))
}

func TestReadyEndpoint(t *testing.T) {
	readiness := metrics.NewReadiness("test", metrics.ComponentStore, metrics.ComponentScheduler)
	hs := NewHealthServer(readiness)

	rec := serve(t, hs.Handler(), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	readiness.Update(metrics.ComponentStore, true, "")
	readiness.Update(metrics.ComponentScheduler, true, "")

	rec = serve(t, hs.Handler(), http.MethodGet, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	var body metrics.ReadinessStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestReadyNotServedWithoutTracker(t *testing.T) {
	rec := serve(t, NewHealthServer(nil).Handler(), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownPath(t *testing.T) {
	rec := serve(t, NewHealthServer(nil).Handler(), http.MethodGet, "/apps")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
