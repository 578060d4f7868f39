// Package cache persists the template indexes between requests.
//
// Indexes are stored as opaque values in a Store, grouped by pool. The
// IndexCache owns the value format (a checksummed envelope around a CBOR
// payload) so that every backend detects corrupted or foreign values the
// same way and falls back to a rebuild.
package cache

import (
	"context"
	"fmt"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
)

// Store is a key/value store for cache values.
type Store interface {
	// Get returns the value of a key. A missing key is not an error.
	Get(ctx context.Context, pool, key string) ([]byte, bool, error)
	// Set writes a value, replacing any previous one.
	Set(ctx context.Context, pool, key string, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, pool, key string) error
	// Close releases the resources held by the store.
	Close() error
}

// NewStore creates the store selected by the cache configuration.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendFile:
		return NewFileStore(cfg.CacheDir())
	case config.CacheBackendSQLite:
		return NewSQLiteStore(cfg.CacheDir())
	case config.CacheBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
