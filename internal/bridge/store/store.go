// Package store persists the bridge's key/value blobs: the registered
// device set and the bridge's connection parameters.
//
// Two backends are provided: SQLiteStore over the bridge database and
// RedisStore for deployments that keep state in Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeyDevices = "devices"
	KeyBridge  = "bridge"
)

// ErrNotFound indicates a key with no stored value.
var ErrNotFound = errors.New("store: key not found")

// Store is a durable key/value blob store.
type Store interface {
	// Load returns the value stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
}

// LoadJSON decodes the JSON value under key into v.
//
// Returns:
//   - bool: false if the key has no value (v is untouched)
//   - error: on storage or decoding failure
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}
