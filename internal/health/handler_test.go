package health

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/voice-bridge/internal/audiocodes"
	"github.com/eleven-am/voice-bridge/internal/gateway"
	"github.com/eleven-am/voice-bridge/internal/realtime"
	"github.com/eleven-am/voice-bridge/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type idleUpstream struct{ closed atomic.Bool }

func (u *idleUpstream) Connect(context.Context) bool                 { return true }
func (u *idleUpstream) SendAudioChunk(context.Context, []byte) bool  { return true }
func (u *idleUpstream) ReceiveAudioChunk(ctx context.Context) []byte { <-ctx.Done(); return nil }
func (u *idleUpstream) SetObserver(realtime.ConnectionObserver)      {}
func (u *idleUpstream) Active() bool                                 { return !u.closed.Load() }
func (u *idleUpstream) Terminated() bool                             { return u.closed.Load() }
func (u *idleUpstream) Closing() bool                                { return u.closed.Load() }
func (u *idleUpstream) Close()                                       { u.closed.Store(true) }

type nopSender struct{}

func (nopSender) Send(context.Context, any) error { return nil }

func newTestBridge(t *testing.T) *gateway.Bridge {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := gateway.NewBridge(gateway.BridgeConfig{APIKey: "sk-test"}, func(id, model string) (gateway.Upstream, error) {
		return &idleUpstream{}, nil
	}, nil, nil, logger)
	t.Cleanup(func() { b.Close() })
	return b
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func get(t *testing.T, h *Handler, fn echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := fn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestLiveness(t *testing.T) {
	h := NewHandler(nil, nil, session.NewRegistry(), newTestBridge(t), true, "test")
	rec := get(t, h, h.Liveness)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadiness_Healthy(t *testing.T) {
	rdb, _ := newTestRedis(t)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	h := NewHandler(db, rdb, session.NewRegistry(), newTestBridge(t), true, "test")
	h.IncrementRequests()

	rec := get(t, h, h.Readiness)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy: %+v", resp.Status, resp.Components)
	}
	if resp.Stats.Requests.TotalRequests != 1 {
		t.Errorf("total requests = %d, want 1", resp.Stats.Requests.TotalRequests)
	}
}

func TestReadiness_DatabaseDisabled(t *testing.T) {
	rdb, _ := newTestRedis(t)
	h := NewHandler(nil, rdb, session.NewRegistry(), newTestBridge(t), true, "test")

	var resp HealthResponse
	json.Unmarshal(get(t, h, h.Readiness).Body.Bytes(), &resp)

	if resp.Components["database"].Status != StatusDisabled {
		t.Errorf("database status = %s, want disabled", resp.Components["database"].Status)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("overall = %s, want healthy", resp.Status)
	}
}

func TestReadiness_RedisDown(t *testing.T) {
	rdb, mr := newTestRedis(t)
	mr.Close()

	h := NewHandler(nil, rdb, session.NewRegistry(), newTestBridge(t), true, "test")
	rec := get(t, h, h.Readiness)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReadiness_MissingAPIKeyDegrades(t *testing.T) {
	rdb, _ := newTestRedis(t)
	h := NewHandler(nil, rdb, session.NewRegistry(), newTestBridge(t), false, "test")

	var resp HealthResponse
	json.Unmarshal(get(t, h, h.Readiness).Body.Bytes(), &resp)
	if resp.Status != StatusDegraded {
		t.Errorf("overall = %s, want degraded", resp.Status)
	}
}

func TestConversations(t *testing.T) {
	registry := session.NewRegistry()
	bridge := newTestBridge(t)

	registry.Add(session.Conversation{ID: "c1", ConnID: "conn-1", MediaFormat: audiocodes.FormatRawLPCM16, Caller: "+15550100"})
	if err := bridge.CreateClient(context.Background(), "c1", nopSender{}, audiocodes.FormatRawLPCM16, ""); err != nil {
		t.Fatalf("CreateClient error: %v", err)
	}

	h := NewHandler(nil, nil, registry, bridge, true, "test")
	var resp ConversationsResponse
	if err := json.Unmarshal(get(t, h, h.Conversations).Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	got := resp.Conversations[0]
	if got.ConversationID != "c1" || got.ConnID != "conn-1" || !got.UpstreamActive || got.MediaFormat != "raw/lpcm16" {
		t.Errorf("unexpected conversation %+v", got)
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{"all healthy", map[string]ComponentStatus{"redis": {Status: StatusHealthy}, "database": {Status: StatusDisabled}}, StatusHealthy},
		{"redis down", map[string]ComponentStatus{"redis": {Status: StatusUnhealthy}}, StatusUnhealthy},
		{"database down", map[string]ComponentStatus{"redis": {Status: StatusHealthy}, "database": {Status: StatusUnhealthy}}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallStatus(tt.components); got != tt.want {
				t.Errorf("computeOverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
