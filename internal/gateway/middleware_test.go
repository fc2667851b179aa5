package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %f, want 5", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 10 {
		t.Errorf("Burst = %d, want 10", cfg.Burst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestRateLimiterStore_GetLimiter(t *testing.T) {
	store := newRateLimiterStore(RateLimiterConfig{RequestsPerSecond: 10, Burst: 20})

	limiter1 := store.getLimiter("10.0.0.1")
	if limiter1 == nil {
		t.Fatal("expected limiter to be created")
	}
	if limiter2 := store.getLimiter("10.0.0.1"); limiter1 != limiter2 {
		t.Error("expected same limiter to be returned")
	}
	if limiter3 := store.getLimiter("10.0.0.2"); limiter1 == limiter3 {
		t.Error("expected different limiter for different key")
	}
}

func TestRateLimiterStore_EvictIdle(t *testing.T) {
	now := time.Now()
	store := newRateLimiterStore(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Minute})
	store.now = func() time.Time { return now }

	store.getLimiter("old")
	now = now.Add(2 * time.Minute)
	store.getLimiter("fresh")

	if evicted := store.evictIdle(); evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if store.size() != 1 {
		t.Errorf("size = %d, want 1", store.size())
	}
}

func TestRateLimiter_AllowsRequests(t *testing.T) {
	e := echo.New()
	done := make(chan struct{})
	defer close(done)

	middleware := RateLimiter(RateLimiterConfig{RequestsPerSecond: 100, Burst: 100, CleanupInterval: time.Hour}, done)
	handler := middleware(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_BlocksExcessRequests(t *testing.T) {
	e := echo.New()
	done := make(chan struct{})
	defer close(done)

	middleware := RateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1, CleanupInterval: time.Hour}, done)
	handler := middleware(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	call := func() error {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := call(); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	err := call()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusTooManyRequests {
		t.Errorf("code = %d, want 429", he.Code)
	}
}
