package health

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/voice-bridge/internal/gateway"
	"github.com/eleven-am/voice-bridge/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusDisabled  Status = "disabled"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type ConversationStats struct {
	Registered     int `json:"registered"`
	UpstreamActive int `json:"upstream_active"`
}

type RequestStats struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

type Stats struct {
	Conversations ConversationStats `json:"conversations"`
	Requests      RequestStats      `json:"requests"`
	Runtime       RuntimeStats      `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

type ConversationDetail struct {
	ConversationID string    `json:"conversation_id"`
	ConnID         string    `json:"conn_id"`
	MediaFormat    string    `json:"media_format"`
	BotName        string    `json:"bot_name,omitempty"`
	Caller         string    `json:"caller,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	StreamID       string    `json:"stream_id,omitempty"`
	UpstreamActive bool      `json:"upstream_active"`
	ChunksSent     int64     `json:"chunks_sent"`
}

type ConversationsResponse struct {
	Total         int                  `json:"total"`
	Conversations []ConversationDetail `json:"conversations"`
}

type Handler struct {
	db        *gorm.DB
	redis     *redis.Client
	registry  *session.Registry
	bridge    *gateway.Bridge
	hasAPIKey bool
	version   string
	startTime time.Time

	totalRequests     uint64
	activeConnections int64
}

// NewHandler builds the health endpoints. db may be nil when call records
// are disabled.
func NewHandler(
	db *gorm.DB,
	redis *redis.Client,
	registry *session.Registry,
	bridge *gateway.Bridge,
	hasAPIKey bool,
	version string,
) *Handler {
	return &Handler{
		db:        db,
		redis:     redis,
		registry:  registry,
		bridge:    bridge,
		hasAPIKey: hasAPIKey,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
	e.GET("/health/conversations", h.Conversations)
}

func (h *Handler) IncrementRequests() {
	atomic.AddUint64(&h.totalRequests, 1)
}

func (h *Handler) IncrementConnections() {
	atomic.AddInt64(&h.activeConnections, 1)
}

func (h *Handler) DecrementConnections() {
	atomic.AddInt64(&h.activeConnections, -1)
}

// @Summary      Liveness check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// @Summary      Readiness check
// @Description  Checks the database, redis and upstream configuration
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.HealthResponse
// @Failure      503  {object}  health.HealthResponse
// @Router       /health/ready [get]
func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{
		{"database", h.checkDatabase},
		{"redis", h.checkRedis},
		{"upstream", h.checkUpstream},
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overallStatus := computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats: Stats{
			Conversations: h.conversationStats(),
			Requests: RequestStats{
				TotalRequests:     atomic.LoadUint64(&h.totalRequests),
				ActiveConnections: atomic.LoadInt64(&h.activeConnections),
			},
			Runtime: RuntimeStats{
				Goroutines:         runtime.NumGoroutine(),
				MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
				MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
				MemorySysMB:        memStats.Sys / 1024 / 1024,
				NumGC:              memStats.NumGC,
			},
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

// @Summary      Active conversations
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.ConversationsResponse
// @Router       /health/conversations [get]
func (h *Handler) Conversations(c echo.Context) error {
	bridged := make(map[string]gateway.ConversationInfo)
	for _, info := range h.bridge.Conversations() {
		bridged[info.ConversationID] = info
	}

	convs := h.registry.List()
	details := make([]ConversationDetail, len(convs))
	for i, conv := range convs {
		details[i] = ConversationDetail{
			ConversationID: conv.ID,
			ConnID:         conv.ConnID,
			MediaFormat:    conv.MediaFormat.String(),
			BotName:        conv.BotName,
			Caller:         conv.Caller,
			StartedAt:      conv.StartedAt,
		}
		if info, ok := bridged[conv.ID]; ok {
			details[i].StreamID = info.StreamID
			details[i].UpstreamActive = info.UpstreamActive
			details[i].ChunksSent = info.Chunks
		}
	}

	return c.JSON(http.StatusOK, ConversationsResponse{
		Total:         len(details),
		Conversations: details,
	})
}

func (h *Handler) conversationStats() ConversationStats {
	stats := ConversationStats{Registered: h.registry.Count()}
	for _, info := range h.bridge.Conversations() {
		if info.UpstreamActive {
			stats.UpstreamActive++
		}
	}
	return stats
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.db == nil {
		return ComponentStatus{Status: StatusDisabled}
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "failed to get underlying db",
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    evaluateDBStats(sqlDB.Stats()),
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func evaluateDBStats(stats sql.DBStats) Status {
	if stats.OpenConnections >= stats.MaxOpenConnections && stats.MaxOpenConnections > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.redis == nil {
		return ComponentStatus{
			Status: StatusUnhealthy,
			Error:  "redis not configured",
		}
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

// checkUpstream only verifies configuration.
func (h *Handler) checkUpstream(context.Context) ComponentStatus {
	if !h.hasAPIKey {
		return ComponentStatus{
			Status: StatusDegraded,
			Error:  "openai api key not configured",
		}
	}
	return ComponentStatus{Status: StatusHealthy}
}

func computeOverallStatus(components map[string]ComponentStatus) Status {
	if status, ok := components["redis"]; ok && status.Status == StatusUnhealthy {
		return StatusUnhealthy
	}

	for _, status := range components {
		if status.Status == StatusUnhealthy || status.Status == StatusDegraded {
			return StatusDegraded
		}
	}
	return StatusHealthy
}
