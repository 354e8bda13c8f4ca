package mailbox

import (
	"context"
	"fmt"

	"github.com/BioHazard786/SyncPlayer/internal/config"
)

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLite.Path)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Retention(),
		})
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown mailbox backend %q", cfg.Backend)
	}
}
