// Package storage persists the client's small key/value state (tokens and
// the signed-in user snapshot) across restarts.
package storage

import (
	"context"
	"errors"
	"fmt"

	"socialfeed/internal/config"
)

// ErrNotFound is returned by Get when the key has never been set or was removed.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a flat string key/value store.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes keys; missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// Open returns the backend selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageFile:
		s, err := NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageSQLite, config.StoragePostgres:
		dsn := cfg.StoragePath
		if cfg.StorageDriver == config.StoragePostgres {
			dsn = cfg.DatabaseURL
		}
		s, err := OpenSQL(ctx, cfg.StorageDriver, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageRedis:
		s, err := OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
