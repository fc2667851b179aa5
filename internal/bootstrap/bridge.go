package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/voice-bridge/internal/gateway"
	"github.com/eleven-am/voice-bridge/internal/realtime"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func ProvideRealtimeConfig(cfg *Config) realtime.Config {
	return realtime.Config{
		URL:                  cfg.RealtimeURL,
		APIKey:               cfg.OpenAIAPIKey,
		Model:                cfg.RealtimeModel,
		ConnectTimeout:       cfg.UpstreamConnectTimeout,
		SendTimeout:          cfg.UpstreamSendTimeout,
		ReceiveWait:          cfg.UpstreamReceiveWait,
		PingTimeout:          cfg.UpstreamPingTimeout,
		HeartbeatInterval:    cfg.UpstreamHeartbeatInterval,
		KeepaliveInterval:    cfg.UpstreamHeartbeatInterval,
		IdleThreshold:        cfg.UpstreamIdleThreshold,
		MaxReconnectAttempts: cfg.UpstreamMaxReconnects,
		ReconnectDelay:       cfg.UpstreamReconnectDelay,
		QueueSize:            cfg.UpstreamQueueSize,
	}
}

func ProvideUpstreamFactory(rtCfg realtime.Config, logger *slog.Logger) gateway.UpstreamFactory {
	return gateway.RealtimeFactory(rtCfg, logger)
}

func ProvideGatewayConfig(cfg *Config) gateway.Config {
	return gateway.Config{
		Bridge: gateway.BridgeConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.RealtimeModel,
		},
		Router: gateway.RouterConfig{
			AcceptedFormats: cfg.AcceptedMediaFormats,
			HangupOnFailure: cfg.HangupOnUpstreamFailure,
			Model:           cfg.RealtimeModel,
		},
		RateLimit: gateway.RateLimiterConfig{
			RequestsPerSecond: cfg.WSRateLimitRPS,
			Burst:             cfg.WSRateLimitBurst,
			CleanupInterval:   gateway.DefaultRateLimiterConfig().CleanupInterval,
		},
		Path: cfg.WSPath,
	}
}

func RegisterBridgeRoutes(e *echo.Echo, h *gateway.Handler, cfg gateway.Config, logger *slog.Logger) {
	h.RegisterRoutes(e, cfg.Path)
	logger.Info("voiceai connect endpoint registered", "path", cfg.Path)
}

var BridgeModule = fx.Options(
	fx.Provide(
		ProvideRealtimeConfig,
		ProvideUpstreamFactory,
		ProvideGatewayConfig,
	),
	gateway.Module,
	fx.Invoke(RegisterBridgeRoutes),
)
