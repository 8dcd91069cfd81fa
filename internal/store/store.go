// Package store remembers which offers have already been announced so the watch
// loop notifies each one once.
package store

import (
	"context"
	"fmt"

	"thsrbook/internal/config"
)

// Store is a persistent set of offer keys (models.TrainOffer.Key).
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	// Add records keys. Callers add only after the notification went out.
	Add(ctx context.Context, keys ...string) error
	Close() error
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StateConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return OpenFile(cfg.Path)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// Filter returns the keys not yet in s, preserving order and dropping repeats.
func Filter(ctx context.Context, s Store, keys []string) ([]string, error) {
	seen := make(map[string]bool, len(keys))
	var fresh []string
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		ok, err := s.Has(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			fresh = append(fresh, k)
		}
	}
	return fresh, nil
}
