package di

import (
	"github.com/campuskit/portal-cache/cache"
	"github.com/campuskit/portal-cache/internal/cacheinfra"
	"github.com/campuskit/portal-cache/internal/redisstore"
	"github.com/campuskit/portal-cache/portaldata"
)

// Container provides dependency injection for the cache stack. It manages
// the singleton store and cache service, and provides factory helpers for
// building cached collections over repositories.
type Container struct {
	config  cache.Config
	store   cache.Store
	service *cache.Service
}

// Option customizes container construction.
type Option func(*Container)

// WithStore overrides the backing store. Use it to run on an embedded store
// or a test fake instead of the default remote client.
func WithStore(store cache.Store) Option {
	return func(c *Container) { c.store = store }
}

// NewContainer creates a DI container from the provided configuration. By
// default the store is a lazily connecting remote client; when the
// configuration enables a hot tier the store is wrapped in the in-process
// tier before the service is built on top.
func NewContainer(cfg cache.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = redisstore.New(redisstore.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if cfg.HotTier != nil {
		tiered, err := cacheinfra.NewTieredStore(c.store, cacheinfra.Config{
			Capacity:           cfg.HotTier.Capacity,
			NumShards:          cfg.HotTier.NumShards,
			TTL:                cfg.HotTier.TTL,
			EvictionPercentage: cfg.HotTier.EvictionPercentage,
		})
		if err != nil {
			return nil, err
		}
		c.store = tiered
	}

	service, err := cache.NewServiceFromConfig(c.store, cfg)
	if err != nil {
		return nil, err
	}
	c.service = service
	return c, nil
}

// NewContainerWithDefaults creates a DI container using default
// configuration. Convenience constructor for typical use cases.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(cache.DefaultConfig())
}

// Service returns the singleton cache service instance.
func (c *Container) Service() *cache.Service {
	return c.service
}

// Store returns the singleton backing store. Useful for lifecycle hooks such
// as closing the connection on shutdown.
func (c *Container) Store() cache.Store {
	return c.store
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// NewCollection builds a cached collection over a repository using the
// container's cache service.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function. Example: NewCollection[Student](container, repo,
// "Student", idFn)
func NewCollection[T any](container *Container, src portaldata.Source[T], entity string, id func(T) string) *portaldata.Collection[T] {
	return portaldata.NewCollection(container.service, src, entity, id)
}
