// Package kv provides the durable key-value stores that hold the client
// session between process runs.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/iammorganparry/stockview/internal/config"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown kv backend")

// Store is a string-valued key-value store. A missing key reads as "".
// Put replaces every given key in one step; Delete ignores missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, records map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return OpenSQLite(cfg.Path)
	case config.BackendFile:
		return OpenFile(cfg.Path)
	case config.BackendRedis:
		return OpenRedis(ctx, cfg.RedisURL)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
