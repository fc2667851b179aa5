package bootstrap

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/voice-bridge/internal/audiocodes"
	"github.com/eleven-am/voice-bridge/internal/realtime"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string
	WSPath     string

	OpenAIAPIKey  string
	RealtimeModel string
	RealtimeURL   string

	UpstreamConnectTimeout    time.Duration
	UpstreamSendTimeout       time.Duration
	UpstreamReceiveWait       time.Duration
	UpstreamPingTimeout       time.Duration
	UpstreamHeartbeatInterval time.Duration
	UpstreamIdleThreshold     time.Duration
	UpstreamMaxReconnects     int
	UpstreamReconnectDelay    time.Duration
	UpstreamQueueSize         int

	AcceptedMediaFormats    []audiocodes.MediaFormat
	HangupOnUpstreamFailure bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDSN string

	WSRateLimitRPS   float64
	WSRateLimitBurst int

	MetricsNamespace string
}

func LoadConfig() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	d := realtime.DefaultConfig()
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		WSPath:     getEnv("WS_PATH", "/ws"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		RealtimeModel: getEnv("OPENAI_REALTIME_MODEL", realtime.DefaultModel),
		RealtimeURL:   getEnv("OPENAI_REALTIME_URL", realtime.DefaultURL),

		UpstreamConnectTimeout:    getEnvDuration("UPSTREAM_CONNECT_TIMEOUT", d.ConnectTimeout),
		UpstreamSendTimeout:       getEnvDuration("UPSTREAM_SEND_TIMEOUT", d.SendTimeout),
		UpstreamReceiveWait:       getEnvDuration("UPSTREAM_RECEIVE_WAIT", d.ReceiveWait),
		UpstreamPingTimeout:       getEnvDuration("UPSTREAM_PING_TIMEOUT", d.PingTimeout),
		UpstreamHeartbeatInterval: getEnvDuration("UPSTREAM_HEARTBEAT_INTERVAL", d.HeartbeatInterval),
		UpstreamIdleThreshold:     getEnvDuration("UPSTREAM_IDLE_THRESHOLD", d.IdleThreshold),
		UpstreamMaxReconnects:     getEnvInt("UPSTREAM_MAX_RECONNECTS", d.MaxReconnectAttempts),
		UpstreamReconnectDelay:    getEnvDuration("UPSTREAM_RECONNECT_DELAY", d.ReconnectDelay),
		UpstreamQueueSize:         getEnvInt("UPSTREAM_QUEUE_SIZE", d.QueueSize),

		AcceptedMediaFormats:    parseMediaFormats(getEnv("ACCEPTED_MEDIA_FORMATS", string(audiocodes.FormatRawLPCM16))),
		HangupOnUpstreamFailure: getEnvBool("HANGUP_ON_UPSTREAM_FAILURE", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		WSRateLimitRPS:   getEnvFloat("WS_RATE_LIMIT_RPS", 5),
		WSRateLimitBurst: getEnvInt("WS_RATE_LIMIT_BURST", 10),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "voice_bridge"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("750ms") or whole seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func parseMediaFormats(list string) []audiocodes.MediaFormat {
	formats, err := audiocodes.ParseMediaFormats(list)
	if err != nil || len(formats) == 0 {
		slog.Warn("invalid ACCEPTED_MEDIA_FORMATS, using raw/lpcm16", "value", list, "error", err)
		return []audiocodes.MediaFormat{audiocodes.FormatRawLPCM16}
	}
	return formats
}
