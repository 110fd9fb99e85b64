package app

import (
	"context"
	"fmt"

	"github.com/vovakirdan/wirechat-live/internal/config"
	"github.com/vovakirdan/wirechat-live/internal/store"
	"github.com/vovakirdan/wirechat-live/internal/store/memory"
	pebblestore "github.com/vovakirdan/wirechat-live/internal/store/pebble"
	"github.com/vovakirdan/wirechat-live/internal/store/redis"
	"github.com/vovakirdan/wirechat-live/internal/store/sqlite"
)

// openStore builds the configured backend. The returned PubSub is nil for
// backends without one.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.MessageStore, store.PubSub, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		st := memory.New()
		return st, st, nil
	case config.BackendSQLite:
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil, nil
	case config.BackendPebble:
		st, err := pebblestore.Open(pebblestore.Options{Dir: cfg.PebbleDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble store: %w", err)
		}
		return st, nil, nil
	case config.BackendRedis:
		st, err := redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
