package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return NewStore(redisClient), mr
}

func newTestHandler(t *testing.T) (*Handler, *Store, *miniredis.Miniredis) {
	store, mr := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, logger), store, mr
}

func TestMetricsRedisKey(t *testing.T) {
	key := MetricsRedisKey("2024-01-15", 14)
	expected := "calls:metrics:2024-01-15:14"
	if key != expected {
		t.Errorf("expected '%s', got '%s'", expected, key)
	}
}

func TestStore_IncrementMetrics(t *testing.T) {
	store, mr := newTestStore(t)
	fixed := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	store.IncrementCalls(ctx)
	store.IncrementCalls(ctx)
	store.IncrementRejected(ctx)
	store.IncrementReconnects(ctx)
	store.IncrementUpstreamFailures(ctx)

	key := MetricsRedisKey("2024-01-15", 14)
	if got := mr.HGet(key, FieldCalls); got != "2" {
		t.Errorf("expected calls 2, got %s", got)
	}
	if got := mr.HGet(key, FieldRejected); got != "1" {
		t.Errorf("expected rejected 1, got %s", got)
	}
	if ttl := mr.TTL(key); ttl != metricsTTL {
		t.Errorf("expected ttl %v, got %v", metricsTTL, ttl)
	}
}

func TestStore_RecordLatency(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordLatency(ctx, 900*time.Microsecond, 3); err != nil {
		t.Fatalf("RecordLatency error: %v", err)
	}
	if err := store.RecordLatency(ctx, time.Second, 0); err != nil {
		t.Fatalf("RecordLatency with zero count error: %v", err)
	}

	metrics, err := store.GetMetrics(ctx, 1)
	if err != nil {
		t.Fatalf("GetMetrics error: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metrics bucket, got %d", len(metrics))
	}
	if metrics[0].AvgLatencyUs != 300 {
		t.Errorf("expected avg latency 300us, got %d", metrics[0].AvgLatencyUs)
	}
}

func TestStore_GetMetrics_SkipsEmptyHours(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	metrics, err := store.GetMetrics(ctx, 24)
	if err != nil {
		t.Fatalf("GetMetrics error: %v", err)
	}
	if len(metrics) != 0 {
		t.Errorf("expected no metrics, got %d", len(metrics))
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()
	h.RegisterRoutes(e.Group("/v1/metrics"))

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Path] = true
	}

	for _, path := range []string{"/v1/metrics/calls", "/v1/metrics/calls/summary"} {
		if !routePaths[path] {
			t.Errorf("expected route %s to be registered", path)
		}
	}
}

func TestHandler_GetMetrics(t *testing.T) {
	tests := []struct {
		name  string
		query string
		hours int
	}{
		{"default", "", 24},
		{"custom", "?hours=48", 48},
		{"invalid", "?hours=invalid", 24},
		{"exceeds max", "?hours=500", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store, _ := newTestHandler(t)
			store.IncrementCalls(context.Background())

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/v1/metrics/calls"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := h.GetMetrics(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
			}

			var response MetricsList
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.Hours != tt.hours {
				t.Errorf("expected Hours %d, got %d", tt.hours, response.Hours)
			}
			if len(response.Metrics) != 1 || response.Metrics[0].Calls != 1 {
				t.Errorf("expected one bucket with 1 call, got %+v", response.Metrics)
			}
		})
	}
}

func TestHandler_GetMetrics_RedisDown(t *testing.T) {
	h, _, mr := newTestHandler(t)
	mr.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/calls", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GetMetrics(c)
	if err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 error, got %v", err)
	}
}

func TestHandler_GetSummary(t *testing.T) {
	h, store, _ := newTestHandler(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		store.IncrementCalls(ctx)
	}
	store.IncrementUpstreamFailures(ctx)
	store.RecordLatency(ctx, 200*time.Microsecond, 2)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/calls/summary", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetSummary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var summary Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if summary.Period != "7d" {
		t.Errorf("expected period 7d, got %s", summary.Period)
	}
	if summary.TotalCalls != 4 {
		t.Errorf("expected 4 calls, got %d", summary.TotalCalls)
	}
	if summary.FailureRate != 25 {
		t.Errorf("expected failure rate 25, got %f", summary.FailureRate)
	}
	if summary.AvgLatencyUs != 100 {
		t.Errorf("expected avg latency 100us, got %d", summary.AvgLatencyUs)
	}
}
