package cache

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ValueFn is the function signature the cache expects when populating an
// entry from the source of truth. It runs at most once per populating call;
// its single result is memoized for the rest of the call.
type ValueFn[T any] func(ctx context.Context) (T, error)

// Service exposes the read-through caching operations consumers see. It
// layers key namespacing, serialization and input validation over a raw
// Store, which may be a remote server, an embedded database, or a tiered
// combination of both.
//
// A Service is safe for concurrent use. It holds no per-key locks: two
// callers that interleave a get-then-mutate sequence around the same key can
// lose one of the two updates from the cached view. That divergence is an
// accepted property of the cache-aside design, bounded by the entry TTL.
type Service struct {
	store  Store
	codec  Codec
	keys   Keyspace
	ttl    time.Duration
	logger *slog.Logger

	// flight collapses concurrent populate calls for the same key so one
	// expensive backing-store query serves every waiter.
	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithCodec overrides the default JSON codec.
func WithCodec(c Codec) Option {
	return func(s *Service) { s.codec = c }
}

// WithPrefix overrides the namespace prefix applied to every key.
func WithPrefix(prefix string) Option {
	return func(s *Service) { s.keys = NewKeyspace(prefix) }
}

// WithDefaultTTL overrides the TTL used when a call does not specify one.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// WithLogger overrides the logger used for swallowed store-write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs a Service over the given store. Defaults: JSON codec,
// "portal" prefix, 60s TTL.
func NewService(store Store, opts ...Option) *Service {
	def := DefaultConfig()
	s := &Service{
		store:  store,
		codec:  JSONCodec{},
		keys:   NewKeyspace(def.Prefix),
		ttl:    def.DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromConfig validates cfg and constructs a Service from it.
func NewServiceFromConfig(store Store, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewService(store,
		WithPrefix(cfg.Prefix),
		WithDefaultTTL(cfg.DefaultTTL),
		WithCodec(CodecByName(cfg.Codec)),
	), nil
}

// Keyspace returns the service's key namespace.
func (s *Service) Keyspace() Keyspace { return s.keys }

// DefaultTTL returns the TTL applied when a call does not specify one.
func (s *Service) DefaultTTL() time.Duration { return s.ttl }

// GetKeys lists all store keys matching pattern under the namespace prefix.
// The result is a finite snapshot of the store at scan time.
func (s *Service) GetKeys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.store.Keys(ctx, s.keys.Pattern(pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if s.keys.Contains(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Remove deletes exactly one key under the namespace prefix. Removing an
// absent key is a no-op, not an error.
func (s *Service) Remove(ctx context.Context, key string) error {
	if blank(key) {
		return ErrInvalidKey
	}
	_, err := s.store.Del(ctx, s.keys.Key(key))
	return err
}

// RemoveAllKeys deletes every key matching "{prefix}:{pattern}" one by one.
// It returns true only if every individual deletion succeeded. The operation
// is not transactional: keys deleted before a failure stay deleted.
func (s *Service) RemoveAllKeys(ctx context.Context, pattern string) (bool, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, err := s.store.Keys(ctx, s.keys.Pattern(pattern))
	if err != nil {
		return false, err
	}
	all := true
	for _, k := range keys {
		deleted, err := s.store.Del(ctx, k)
		if err != nil {
			return false, err
		}
		if !deleted {
			all = false
		}
	}
	return all, nil
}

// Reset deletes every key under the namespace prefix via a single atomic
// server-side script. It is fire and forget: the caller does not wait for or
// learn about completion. Failures are logged, never surfaced.
func (s *Service) Reset() {
	pattern := s.keys.Pattern("*")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.FlushPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache namespace reset failed", "pattern", pattern, "error", err)
		}
	}()
}

// GetOrSet returns the value cached under key, or populates it by invoking
// fn. See GetOrSetTTL for the full contract; this variant uses the service's
// default TTL.
func GetOrSet[T any](ctx context.Context, s *Service, key string, fn ValueFn[T]) (T, error) {
	return GetOrSetTTL(ctx, s, key, fn, s.ttl)
}

// GetOrSetTTL implements the read-through contract:
//
//  1. An empty or blank key fails with ErrInvalidKey before any network call.
//  2. If the store holds a non-empty textual value under the key, it is
//     decoded and returned; fn never runs.
//  3. Otherwise fn runs once; concurrent populate calls for the same key are
//     collapsed so one invocation serves every waiter.
//  4. A non-nil result is encoded and stored with the given TTL. A store
//     write failure does not discard the freshly computed result: the value
//     is still returned, the entry may simply be missing on the next call.
func GetOrSetTTL[T any](ctx context.Context, s *Service, key string, fn ValueFn[T], ttl time.Duration) (T, error) {
	var zero T
	if blank(key) {
		return zero, ErrInvalidKey
	}

	full := s.keys.Key(key)
	raw, ok, err := s.store.Get(ctx, full)
	if err != nil {
		return zero, err
	}
	if ok && raw != "" {
		var v T
		if err := s.codec.Unmarshal([]byte(raw), &v); err != nil {
			return zero, &SerializationError{Key: full, Codec: s.codec.Name(), Err: err}
		}
		return v, nil
	}

	res, err, _ := s.flight.Do(full, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, err := assertResult[T](res)
	if err != nil {
		return zero, err
	}
	if !isNil(v) {
		s.put(ctx, full, v, ttl)
	}
	return v, nil
}

// HashGetOrSet returns the value cached under one field of the hash record at
// "{prefix}:{key}", populating it from fn on a miss. The field name is
// lower-cased before lookup and store. The hit/miss and error semantics match
// GetOrSetTTL.
func HashGetOrSet[T any](ctx context.Context, s *Service, key, field string, fn ValueFn[T]) (T, error) {
	var zero T
	if blank(key) || blank(field) {
		return zero, ErrInvalidKey
	}

	full := s.keys.Key(key)
	f := s.keys.Field(field)
	raw, ok, err := s.store.HGet(ctx, full, f)
	if err != nil {
		return zero, err
	}
	if ok && raw != "" {
		var v T
		if err := s.codec.Unmarshal([]byte(raw), &v); err != nil {
			return zero, &SerializationError{Key: full, Codec: s.codec.Name(), Err: err}
		}
		return v, nil
	}

	res, err, _ := s.flight.Do(full+"#"+f, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, err := assertResult[T](res)
	if err != nil {
		return zero, err
	}
	if !isNil(v) {
		data, err := s.codec.Marshal(v)
		if err != nil {
			s.logger.Warn("cache encode failed, value not stored", "key", full, "field", f, "error", err)
			return v, nil
		}
		if err := s.store.HSet(ctx, full, f, string(data), s.ttl); err != nil {
			s.logger.Warn("cache hash write failed, returning computed value", "key", full, "field", f, "error", err)
		}
	}
	return v, nil
}

// GetValues returns every field value of the hash record at "{prefix}:{key}",
// decoded into T.
func GetValues[T any](ctx context.Context, s *Service, key string) ([]T, error) {
	if blank(key) {
		return nil, ErrInvalidKey
	}
	full := s.keys.Key(key)
	raws, err := s.store.HVals(ctx, full)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := s.codec.Unmarshal([]byte(raw), &v); err != nil {
			return nil, &SerializationError{Key: full, Codec: s.codec.Name(), Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// put encodes and stores a freshly computed value. Failures are logged and
// swallowed: the computation already succeeded and its result is what the
// caller gets, cached or not.
func (s *Service) put(ctx context.Context, fullKey string, v any, ttl time.Duration) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		s.logger.Warn("cache encode failed, value not stored", "key", fullKey, "error", err)
		return
	}
	if err := s.store.Set(ctx, fullKey, string(data), ttl); err != nil {
		s.logger.Warn("cache write failed, returning computed value", "key", fullKey, "error", err)
	}
}

// assertResult converts a singleflight result back to T. A nil any (possible
// when T is an interface type) maps to the zero value rather than panicking.
func assertResult[T any](res any) (T, error) {
	var zero T
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return v, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// isNil reports whether v is nil in any of the kinds that can hold nil.
// Only non-nil results are written back to the store.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
