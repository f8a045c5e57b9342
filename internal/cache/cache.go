// Package cache provides a small byte-oriented cache used to memoize derived
// analytics reads. Entries are short-lived; ingestion never reads the cache.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache stores opaque serialized values under string keys with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Noop satisfies Cache without storing anything. It is the default when no
// cache backend is configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) ([]byte, error) { return nil, ErrMiss }

func (Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error { return nil }

func (Noop) Delete(ctx context.Context, keys ...string) error { return nil }
