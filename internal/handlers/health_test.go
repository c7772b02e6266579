package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_HealthCheck(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: connection refused") }

	tests := []struct {
		name       string
		url        string
		checks     map[string]CheckFunc
		wantStatus int
		wantHealth string
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			url:        "/healthz",
			checks:     map[string]CheckFunc{"database": down},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name:       "extended all healthy",
			url:        "/healthz?mode=extended",
			checks:     map[string]CheckFunc{"database": ok, "redis": ok, "queue": ok},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy", "queue": "healthy"},
		},
		{
			name:       "extended with failure",
			url:        "/healthz?mode=extended",
			checks:     map[string]CheckFunc{"database": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "unhealthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker()
			for name, check := range tt.checks {
				h.AddCheck(name, check)
			}

			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("status field = %q, want %q", resp.Status, tt.wantHealth)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if resp.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, resp.Checks[name], want)
				}
			}
		})
	}
}

func TestHealthChecker_AddCheckReplaces(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker().
		AddCheck("database", func(context.Context) error { return errors.New("down") }).
		AddCheck("database", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz?mode=extended", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 after replacing the failing check", rec.Code)
	}
}

func TestHealthChecker_CheckGetsDeadline(t *testing.T) {
	t.Parallel()

	var hadDeadline bool
	h := NewHealthChecker().AddCheck("queue", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	h.HealthCheck(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz?mode=extended", nil))
	if !hadDeadline {
		t.Error("expected dependency check to run with a deadline")
	}
}
