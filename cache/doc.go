// Package cache provides the keyed cache-aside store used by the student
// portal's data services.
//
// # Overview
//
// The package exports three building blocks:
//
//   - Store: the raw keyed storage contract (string and hash entries with
//     TTL, pattern scans, single and scripted bulk deletion)
//   - Service: key namespacing, serialization and validation layered over a
//     Store, exposing the consumer-facing operations
//   - Codec / Keyspace / Config: the serialization boundary, key management
//     and configuration surface
//
// Store implementations live under internal/: a Redis adapter for production,
// a bbolt adapter for embedded use, and a sturdyc-backed hot tier that can
// wrap either.
//
// # Basic Usage
//
// Reads go through the generic helpers, supplying a fallback computation that
// hits the store of record:
//
//	svc := cache.NewService(store, cache.WithPrefix("portal"))
//
//	students, err := cache.GetOrSet(ctx, svc, "StudentData",
//		func(ctx context.Context) ([]Student, error) {
//			return repo.List(ctx)
//		})
//
// On a hit the fallback never runs. On a miss it runs exactly once, its
// result is stored under the key with the configured TTL, and concurrent
// callers populating the same key share that single invocation.
//
// # Consistency
//
// The cached value and the backing store converge eventually but are not
// equal at every instant. Writers update the cache optimistically after
// writing to the store of record, and no locking wraps the read-modify-write
// sequence, so concurrent writers to one logical key can lose an update from
// the cached view. The store of record is never affected; divergence is
// bounded by the entry TTL and can be cut short with Remove, RemoveAllKeys
// or Reset.
//
// # Error Handling
//
// ErrInvalidKey is raised before any network call for empty keys or hash
// fields. Store faults surface as *StoreError and undecodable entries as
// *SerializationError; neither is retried. A store write failure after the
// fallback has produced a value is logged and swallowed: the freshly
// computed value is still returned to the caller.
package cache
