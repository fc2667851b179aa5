package gateway

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// Handler accepts VoiceAI Connect websocket connections.
type Handler struct {
	router    *Router
	rateLimit RateLimiterConfig
	logger    *slog.Logger
	done      chan struct{}
}

func NewHandler(router *Router, rateLimit RateLimiterConfig, logger *slog.Logger) *Handler {
	return &Handler{
		router:    router,
		rateLimit: rateLimit,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, path string) {
	e.GET(path, h.HandleConnection, RateLimiter(h.rateLimit, h.done))
}

func (h *Handler) HandleConnection(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "remote", c.RealIP())
		return err
	}

	conn := NewDownstreamConn(ws, h.logger)
	h.logger.Info("downstream connected", "conn_id", conn.ID(), "remote", c.RealIP())

	h.router.ServeConn(c.Request().Context(), conn)

	h.logger.Info("downstream disconnected", "conn_id", conn.ID())
	return nil
}

// Stop ends the rate limiter's background cleanup.
func (h *Handler) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
