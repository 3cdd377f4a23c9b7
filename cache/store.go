package cache

import (
	"context"
	"time"
)

// Store is the raw keyed storage contract the cache service drives. Keys
// passed to a Store are already namespaced physical keys; the Service layers
// key building, serialization and validation on top.
//
// Implementations must be safe for concurrent use. Every method may block on
// network I/O; faults are wrapped in *StoreError and never retried.
type Store interface {
	// Get returns the textual value under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a textual value under key with the given TTL. A ttl <= 0
	// stores the entry without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// HGet returns one field of the hash record at key.
	HGet(ctx context.Context, key, field string) (string, bool, error)

	// HSet writes one field of the hash record at key and refreshes the
	// record's TTL.
	HSet(ctx context.Context, key, field, value string, ttl time.Duration) error

	// HVals returns every field value of the hash record at key.
	HVals(ctx context.Context, key string) ([]string, error)

	// Keys lists keys matching a store-native glob pattern. The result is a
	// materialized snapshot, not a live cursor.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Del removes one key, reporting whether it existed. Deleting an absent
	// key is not an error.
	Del(ctx context.Context, key string) (bool, error)

	// FlushPattern atomically deletes every key matching the glob pattern
	// in a single server-side operation.
	FlushPattern(ctx context.Context, pattern string) error
}
