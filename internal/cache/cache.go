package cache

import (
	"context"
	"time"
)

// Store is a small TTL-aware key/value cache with list support. Values are
// opaque strings; callers serialize their own payloads.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// PushList appends to a bounded list, evicting the oldest entries once
	// max is exceeded. The whole list shares one ttl, refreshed on push.
	PushList(ctx context.Context, key string, value string, max int, ttl time.Duration) error
	RangeList(ctx context.Context, key string) ([]string, bool, error)
}
