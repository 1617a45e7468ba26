package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/booking"
	appconfig "github.com/lucasdmc/atendeai-lify-admin-sub007/internal/config"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPostgres opens the clinic database. Both binaries need it for
// availability rules, appointments and approvals, so an unreachable
// database is a hard error rather than a degraded mode.
func BuildPostgres(ctx context.Context, cfg *appconfig.Config) (*sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return db, nil
}

// BuildStateStore picks the conversation state backend. Redis keeps state
// across restarts and enforces the idle TTL server-side; the in-memory
// store is the single-process fallback.
func BuildStateStore(redisClient *redis.Client, logger *logging.Logger) booking.Store {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		return booking.NewRedisStore(redisClient)
	}
	logger.Warn("redis unavailable, conversation state held in memory")
	return booking.NewMemoryStore()
}
