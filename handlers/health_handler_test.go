package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHealthChecker struct {
	err error
}

func (f fakeHealthChecker) HealthCheck(context.Context) error {
	return f.err
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, zap.NewNop())
	handler.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "2026-03-01T10:00:00Z", response.Timestamp)
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		wantStatus int
		wantCheck  string
	}{
		{name: "no database configured", db: nil, wantStatus: http.StatusOK, wantCheck: "not_configured"},
		{name: "database healthy", db: fakeHealthChecker{}, wantStatus: http.StatusOK, wantCheck: "healthy"},
		{name: "database down", db: fakeHealthChecker{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable, wantCheck: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.db, zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var response HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantCheck, response.Checks["database"])
		})
	}
}

func TestHandleRoot(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil, zap.NewNop()).HandleRoot(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, Version, response["version"])
	assert.Equal(t, "running", response["status"])
	assert.NotEmpty(t, response["message"])
}
