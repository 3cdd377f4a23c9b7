package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config exposes the cache configuration options recognized by consumers of
// the cache package.
type Config struct {
	// Addr is the backing store endpoint, host:port.
	Addr string

	// Password authenticates against the backing store. Empty disables auth.
	Password string

	// DB selects the logical database on the backing store.
	DB int

	// Prefix is the namespace prepended to every key. It isolates this
	// application's keys from others sharing the store.
	Prefix string

	// DefaultTTL is applied when a call does not specify its own TTL.
	// Entries self-heal from cache divergence when this expires, so keep it
	// short; seconds to a few minutes.
	DefaultTTL time.Duration

	// Codec names the serialization format: "json" (default) or "msgpack".
	Codec string

	// HotTier enables an in-process cache tier in front of the remote store.
	// Nil disables the tier.
	HotTier *HotTierConfig
}

// HotTierConfig mirrors the in-process tier options.
type HotTierConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		Prefix:     "portal",
		DefaultTTL: 60 * time.Second,
		Codec:      JSONCodec{}.Name(),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Prefix, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Codec, validation.In("", "json", "msgpack")),
	)
	if err != nil {
		return err
	}
	if c.HotTier != nil {
		return c.HotTier.Validate()
	}
	return nil
}

// Validate checks the hot tier options.
func (c HotTierConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
	)
}
