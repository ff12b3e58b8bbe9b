package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// KV is a string key-value store.
// Durable implementations survive process restarts until a key is deleted; nothing here
// expires keys on its own.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes every given key. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
