// Package cacheinfra provides the in-process hot tier that can sit in front
// of a remote cache.Store. The tier absorbs repeated reads of hot keys
// (whole-collection entries are read on nearly every request) so they do not
// all turn into network round trips.
package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/gobwas/glob"
	"github.com/viccon/sturdyc"

	"github.com/campuskit/portal-cache/cache"
)

// Config holds the hot tier options.
type Config struct {
	// Capacity is the maximum number of entries the tier can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards for concurrent access.
	// Must be greater than 0.
	NumShards int

	// TTL bounds how stale a tier entry can be relative to the remote
	// store. Keep it well below the remote entry TTL.
	TTL time.Duration

	// EvictionPercentage is what share of entries to evict when the tier
	// reaches capacity. Must be between 1 and 100.
	EvictionPercentage int
}

// DefaultConfig returns a Config with sensible defaults: a small tier with a
// short TTL, sized for whole-collection entries.
func DefaultConfig() Config {
	return Config{
		Capacity:           2048,
		NumShards:          64,
		TTL:                5 * time.Second,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// errRemoteMiss marks a remote miss inside the tier's fetch function so
// sturdyc does not cache absent keys.
var errRemoteMiss = errors.New("cacheinfra: remote miss")

// TieredStore decorates a remote cache.Store with a sturdyc L1. String reads
// are served from the tier when fresh; every mutation writes through to the
// remote store and drops the local copy so the next read refetches. Hash
// operations and key scans always go remote: they are partial-read and
// administrative paths where a second cache layer buys nothing.
type TieredStore struct {
	remote cache.Store
	local  *sturdyc.Client[string]
}

var _ cache.Store = (*TieredStore)(nil)

// NewTieredStore wraps remote with a hot tier configured by cfg.
func NewTieredStore(remote cache.Store, cfg Config) (*TieredStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[string](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
	return &TieredStore{remote: remote, local: client}, nil
}

// Get implements cache.Store. A fresh tier entry short-circuits the remote
// round trip; misses are never tier-cached.
func (t *TieredStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := t.local.GetOrFetch(ctx, key, func(ctx context.Context) (string, error) {
		v, ok, err := t.remote.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errRemoteMiss
		}
		return v, nil
	})
	if err != nil {
		if errors.Is(err, errRemoteMiss) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Set implements cache.Store, writing through and invalidating the tier.
func (t *TieredStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := t.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	t.local.Delete(key)
	return nil
}

// HGet implements cache.Store.
func (t *TieredStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return t.remote.HGet(ctx, key, field)
}

// HSet implements cache.Store.
func (t *TieredStore) HSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	return t.remote.HSet(ctx, key, field, value, ttl)
}

// HVals implements cache.Store.
func (t *TieredStore) HVals(ctx context.Context, key string) ([]string, error) {
	return t.remote.HVals(ctx, key)
}

// Keys implements cache.Store.
func (t *TieredStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return t.remote.Keys(ctx, pattern)
}

// Del implements cache.Store.
func (t *TieredStore) Del(ctx context.Context, key string) (bool, error) {
	deleted, err := t.remote.Del(ctx, key)
	if err != nil {
		return false, err
	}
	t.local.Delete(key)
	return deleted, nil
}

// FlushPattern implements cache.Store. After the remote flush, every tier
// key matching the pattern is dropped so stale copies cannot outlive the
// flushed namespace.
func (t *TieredStore) FlushPattern(ctx context.Context, pattern string) error {
	if err := t.remote.FlushPattern(ctx, pattern); err != nil {
		return err
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return err
	}
	for _, key := range t.local.ScanKeys() {
		if g.Match(key) {
			t.local.Delete(key)
		}
	}
	return nil
}
