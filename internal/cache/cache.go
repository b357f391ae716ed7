package cache

import (
	"context"
	"time"
)

// BytesCache is the persistent key-value storage the snapshot layer sits on.
// ttl == 0 means no expiry.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
