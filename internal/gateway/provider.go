package gateway

import (
	"context"
	"log/slog"

	"github.com/eleven-am/voice-bridge/internal/callrecord"
	"github.com/eleven-am/voice-bridge/internal/observability"
	"github.com/eleven-am/voice-bridge/internal/session"
	"go.uber.org/fx"
)

type Config struct {
	Bridge    BridgeConfig
	Router    RouterConfig
	RateLimit RateLimiterConfig
	Path      string
}

func ProvideBridge(
	lc fx.Lifecycle,
	cfg Config,
	factory UpstreamFactory,
	metrics *observability.Metrics,
	stats *session.Store,
	logger *slog.Logger,
) *Bridge {
	bridge := NewBridge(cfg.Bridge, factory, metrics, stats, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return bridge.Close()
		},
	})
	return bridge
}

func ProvideRouter(
	cfg Config,
	registry *session.Registry,
	bridge *Bridge,
	records *callrecord.Store,
	stats *session.Store,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Router {
	return NewRouter(cfg.Router, registry, bridge, records, stats, metrics, logger)
}

func ProvideHandler(lc fx.Lifecycle, cfg Config, router *Router, logger *slog.Logger) *Handler {
	h := NewHandler(router, cfg.RateLimit, logger.With("handler", "gateway"))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			h.Stop()
			return nil
		},
	})
	return h
}

var Module = fx.Options(
	fx.Provide(
		session.NewRegistry,
		ProvideBridge,
		ProvideRouter,
		ProvideHandler,
	),
)
