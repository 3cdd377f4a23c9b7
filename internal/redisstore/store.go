// Package redisstore adapts a Redis server to the cache.Store contract.
package redisstore

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/portal-cache/cache"
)

// resetScript scans keys by pattern and deletes them in one server-side
// call, so a namespace flush is atomic with respect to concurrent writers.
const resetScript = `local keys = redis.call('KEYS', ARGV[1])
for i = 1, #keys do
  redis.call('DEL', keys[i])
end
return #keys`

// Config holds the Redis connection options.
type Config struct {
	// Addr is the server endpoint, host:port.
	Addr string

	// Password authenticates the connection. Empty disables auth.
	Password string

	// DB selects the logical Redis database.
	DB int
}

// Client is the slice of the go-redis API the store drives. *redis.Client
// satisfies it; tests substitute a fake.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	HVals(ctx context.Context, key string) *redis.StringSliceCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Store implements cache.Store over a Redis server.
//
// The connection multiplexer is a shared, lazily-initialized singleton: the
// first caller constructs the client under a mutex so concurrent
// first-callers cannot race to create duplicate connections. The lock covers
// only handle construction, never the cache calls themselves. Individual
// operations rely on go-redis's own thread safety.
type Store struct {
	cfg Config

	mu  sync.Mutex
	rdb Client
}

var _ cache.Store = (*Store)(nil)

// New returns a Store that dials cfg.Addr on first use.
func New(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// NewWithClient returns a Store over an externally managed client. The
// caller owns the client lifecycle; Close becomes a no-op.
func NewWithClient(rdb Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) conn() Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdb == nil {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     s.cfg.Addr,
			Password: s.cfg.Password,
			DB:       s.cfg.DB,
		})
	}
	return s.rdb
}

// Close releases the underlying connection if the store owns one.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.rdb.(io.Closer); ok {
		s.rdb = nil
		return c.Close()
	}
	return nil
}

// Get implements cache.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.conn().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &cache.StoreError{Op: "get", Key: key, Err: err}
	}
	return val, true, nil
}

// Set implements cache.Store.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.conn().Set(ctx, key, value, ttl).Err(); err != nil {
		return &cache.StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// HGet implements cache.Store.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.conn().HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &cache.StoreError{Op: "hget", Key: key, Err: err}
	}
	return val, true, nil
}

// HSet implements cache.Store. The record TTL is refreshed on every field
// write so a hot hash does not expire out from under its readers.
func (s *Store) HSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	rdb := s.conn()
	if err := rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return &cache.StoreError{Op: "hset", Key: key, Err: err}
	}
	if ttl > 0 {
		if err := rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return &cache.StoreError{Op: "expire", Key: key, Err: err}
		}
	}
	return nil
}

// HVals implements cache.Store.
func (s *Store) HVals(ctx context.Context, key string) ([]string, error) {
	vals, err := s.conn().HVals(ctx, key).Result()
	if err != nil {
		return nil, &cache.StoreError{Op: "hvals", Key: key, Err: err}
	}
	return vals, nil
}

// Keys implements cache.Store. The KEYS scan materializes the matching key
// set server-side; the snapshot reflects store state at scan time only.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.conn().Keys(ctx, pattern).Result()
	if err != nil {
		return nil, &cache.StoreError{Op: "keys", Key: pattern, Err: err}
	}
	return keys, nil
}

// Del implements cache.Store.
func (s *Store) Del(ctx context.Context, key string) (bool, error) {
	n, err := s.conn().Del(ctx, key).Result()
	if err != nil {
		return false, &cache.StoreError{Op: "del", Key: key, Err: err}
	}
	return n > 0, nil
}

// FlushPattern implements cache.Store via the embedded Lua script.
func (s *Store) FlushPattern(ctx context.Context, pattern string) error {
	if err := s.conn().Eval(ctx, resetScript, nil, pattern).Err(); err != nil {
		return &cache.StoreError{Op: "flush", Key: pattern, Err: err}
	}
	return nil
}
