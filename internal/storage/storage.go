package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: key not found")

// Storage is a durable string key/value store for client-side state
// (tokens, cached user, cart). Get returns ErrNotFound for absent keys;
// Delete of an absent key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
