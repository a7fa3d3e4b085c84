package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	return r
}

func readiness(t *testing.T, r *gin.Engine) (int, ReadinessResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var resp ReadinessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w.Code, resp
}

func TestReadiness(t *testing.T) {
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	failing := Check{Name: "rate_limiter", Run: func(context.Context) (string, error) {
		return "redis", errors.New("timeout")
	}}
	passing := Check{Name: "event_stream", Run: func(context.Context) (string, error) {
		return "2 subscribers", nil
	}}

	cases := []struct {
		name    string
		storage Pinger
		extra   []Check
		code    int
		status  string
	}{
		{"all healthy", up, []Check{passing}, http.StatusOK, "healthy"},
		{"optional check fails", up, []Check{failing, passing}, http.StatusOK, "degraded"},
		{"storage down", down, []Check{passing}, http.StatusServiceUnavailable, "unhealthy"},
		{"storage down and optional fails", down, []Check{failing}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := healthRouter(NewHealthHandler(StorageCheck(tc.storage, "memory"), "test", tc.extra...))
			code, resp := readiness(t, r)
			if code != tc.code || resp.Status != tc.status {
				t.Fatalf("got %d %q, want %d %q", code, resp.Status, tc.code, tc.status)
			}
			if got := resp.Checks["storage"].Detail; got != "memory" {
				t.Fatalf("storage detail = %q", got)
			}
			if len(resp.Checks) != len(tc.extra)+1 {
				t.Fatalf("checks = %+v", resp.Checks)
			}
		})
	}
}

func TestHealthPingsStorageOnly(t *testing.T) {
	calls := 0
	extra := Check{Name: "slow", Run: func(context.Context) (string, error) {
		calls++
		return "", nil
	}}
	down := pingerFunc(func(context.Context) error { return errors.New("down") })

	r := healthRouter(NewHealthHandler(StorageCheck(down, "postgres"), "test", extra))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health: expected 503 got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200 got %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("extra checks ran %d times on /health", calls)
	}
}
