package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nDmitry/feedsky/internal/entity"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("key not found")

// Store is the durable key-value collaborator holding sync state
type Store interface {
	// Get returns the value stored under key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Put overwrites the value stored under key
	Put(ctx context.Context, key string, value string) error

	// Close releases any resources used by the store
	Close() error
}

// Open connects to the backend selected in the config
func Open(ctx context.Context, cfg *entity.Config) (Store, error) {
	switch cfg.StoreBackend {
	case entity.StoreRedis:
		return NewRedisStore(ctx, cfg.RedisAddr)
	case entity.StoreSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}
