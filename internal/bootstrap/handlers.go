package bootstrap

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/eleven-am/voice-bridge/docs"
	"github.com/eleven-am/voice-bridge/internal/callrecord"
	"github.com/eleven-am/voice-bridge/internal/observability"
	"github.com/eleven-am/voice-bridge/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	SessionHandler    *session.Handler
	CallRecordHandler *callrecord.Handler
	Registry          *prometheus.Registry
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")
	params.SessionHandler.RegisterRoutes(api.Group("/metrics"))
	params.CallRecordHandler.RegisterRoutes(api.Group("/calls"))

	e.GET("/metrics", echo.WrapHandler(observability.Handler(params.Registry)))
	RegisterDocsRoutes(e)
}

func RegisterDocsRoutes(e *echo.Echo) {
	e.GET("/swagger/*", echoSwagger.EchoWrapHandler())
	e.GET("/asyncapi.yaml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", docs.AsyncAPISpec)
	})
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return logger
}

func ProvideCallRecordHandler(store *callrecord.Store, logger *slog.Logger) *callrecord.Handler {
	return callrecord.NewHandler(store, logger.With("handler", "callrecord"))
}

func ProvideSessionHandler(store *session.Store, logger *slog.Logger) *session.Handler {
	return session.NewHandler(store, logger.With("handler", "session"))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSessionHandler,
		ProvideCallRecordHandler,
	),
	fx.Invoke(RegisterRoutes),
)
