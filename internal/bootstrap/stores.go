package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/voice-bridge/internal/callrecord"
	"github.com/eleven-am/voice-bridge/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideSessionStore(redisClient *redis.Client) *session.Store {
	return session.NewStore(redisClient)
}

func ProvideCallRecordStore(db *gorm.DB) *callrecord.Store {
	return callrecord.NewStore(db)
}

func RunMigrations(records *callrecord.Store, logger *slog.Logger) error {
	if !records.Enabled() {
		logger.Info("DATABASE_DSN not set, call records disabled")
		return nil
	}
	return records.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideSessionStore,
		ProvideCallRecordStore,
	),
	fx.Invoke(RunMigrations),
)
