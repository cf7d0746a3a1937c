package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for keys that have never been written or
// have been deleted.
var ErrNotFound = errors.New("key not found")

// Store is the ephemeral key-value storage backing the license cache. Values
// live at most for the duration of one application session; backends are free
// to drop them earlier (process exit, redis eviction).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte) error

	Delete(ctx context.Context, keys ...string) error
}
