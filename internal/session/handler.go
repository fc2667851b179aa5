package session

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eleven-am/voice-bridge/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/calls", h.GetMetrics)
	g.GET("/calls/summary", h.GetSummary)
}

// @Summary      Hourly call metrics
// @Description  Returns per-hour call counters for the last N hours
// @Tags         metrics
// @Produce      json
// @Param        hours  query     int  false  "Hours to return (1-168)"  default(24)
// @Success      200    {object}  session.MetricsList
// @Failure      500    {object}  shared.APIError
// @Router       /v1/metrics/calls [get]
func (h *Handler) GetMetrics(c echo.Context) error {
	hours := 24
	if hoursStr := c.QueryParam("hours"); hoursStr != "" {
		if hr, err := strconv.Atoi(hoursStr); err == nil && hr > 0 && hr <= 168 {
			hours = hr
		}
	}

	metrics, err := h.store.GetMetrics(c.Request().Context(), hours)
	if err != nil {
		h.logger.Error("failed to get call metrics", "error", err)
		return shared.InternalError("get_metrics_failed", "failed to get metrics")
	}
	if metrics == nil {
		metrics = []*Metrics{}
	}

	return c.JSON(http.StatusOK, MetricsList{
		Hours:   hours,
		Metrics: metrics,
	})
}

// @Summary      Call metrics summary
// @Description  Aggregates call counters over the last 7 days
// @Tags         metrics
// @Produce      json
// @Success      200  {object}  session.Summary
// @Failure      500  {object}  shared.APIError
// @Router       /v1/metrics/calls/summary [get]
func (h *Handler) GetSummary(c echo.Context) error {
	metrics, err := h.store.GetMetricsForLast7Days(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to get call metrics summary", "error", err)
		return shared.InternalError("get_metrics_failed", "failed to get metrics")
	}

	summary := Summary{Period: "7d"}
	var totalLatency, latencyHours int64

	for _, m := range metrics {
		summary.TotalCalls += m.Calls
		summary.TotalRejected += m.Rejected
		summary.TotalReconnects += m.Reconnects
		summary.UpstreamFailures += m.UpstreamFailures
		if m.AvgLatencyUs > 0 {
			totalLatency += m.AvgLatencyUs
			latencyHours++
		}
	}

	if latencyHours > 0 {
		summary.AvgLatencyUs = totalLatency / latencyHours
	}
	if summary.TotalCalls > 0 {
		summary.FailureRate = float64(summary.UpstreamFailures) / float64(summary.TotalCalls) * 100
	}

	return c.JSON(http.StatusOK, summary)
}
