package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMux(t *testing.T) {
	ready := false
	mux := NewMux(func() bool { return ready })

	tests := []struct {
		name   string
		path   string
		ready  bool
		status int
		body   string
	}{
		{"liveness", "/healthz", false, http.StatusOK, "ok"},
		{"not ready", "/readyz", false, http.StatusServiceUnavailable, "not ready"},
		{"ready", "/readyz", true, http.StatusOK, "ready"},
		{"metrics", "/metrics", true, http.StatusOK, "ai_session_insights_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready = tt.ready
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("expected body to contain %q", tt.body)
			}
		})
	}
}

func TestNewMux_NilReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMux(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with nil ready func, got %d", rec.Code)
	}
}
