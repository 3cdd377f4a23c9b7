package cache

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is returned when a cache key or hash field is empty or blank.
// It is raised before any network round trip to the backing store.
var ErrInvalidKey = errors.New("cache: invalid key")

// ErrNotFound reports the logical absence of a domain entity. It is distinct
// from a cache miss: a miss transparently falls through to the value function
// and is never surfaced to callers.
var ErrNotFound = errors.New("cache: entity not found")

// ErrInvalidResultType is returned by the typed helpers when a value produced
// for a key does not match the requested type. This can only happen when two
// callers use the same key with different types.
var ErrInvalidResultType = errors.New("cache: value does not match requested type")

// StoreError wraps a connection or protocol fault talking to the backing
// cache service. The cache layer performs no retries; the error surfaces to
// the caller unchanged and can be unwrapped with errors.As.
type StoreError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache: store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache: store %s %q failed: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying store client error.
func (e *StoreError) Unwrap() error { return e.Err }

// SerializationError reports a stored value that cannot be decoded into the
// requested type, typically data corruption or schema drift between writers.
type SerializationError struct {
	Key   string
	Codec string
	Err   error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("cache: cannot decode %q via %s: %v", e.Key, e.Codec, e.Err)
}

// Unwrap returns the underlying codec error.
func (e *SerializationError) Unwrap() error { return e.Err }
