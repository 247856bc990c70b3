package cache

import (
	"context"
	"time"
)

// BytesCache is the minimal cache surface the services need. Implementations
// are best-effort: callers must behave correctly on a cold or absent cache.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
