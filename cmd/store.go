package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/session/redisstore"
	"github.com/frahmantamala/ledger-console/internal/session/sqlite"
)

// openStore builds the configured session store. The returned func releases
// whatever the store holds open.
func openStore(ctx context.Context, cfg internal.SessionConfig, logger *slog.Logger) (session.Store, func() error, error) {
	switch cfg.Backend {
	case internal.SessionBackendMemory:
		return session.NewMemoryStore(), func() error { return nil }, nil

	case internal.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		return redisstore.NewStore(client, cfg.Redis.KeyPrefix, logger), client.Close, nil

	default:
		gdb, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		store := sqlite.NewStore(gdb, logger)
		if err := sqlite.Migrate(ctx, gdb); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}
