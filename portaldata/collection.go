package portaldata

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/campuskit/portal-cache/cache"
)

// Source is the store of record behind a cached collection. Repositories
// satisfy it directly.
type Source[T any] interface {
	List(ctx context.Context) ([]T, error)
	GetByID(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, rec T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Collection wraps one entity's repository with the portal's cache-aside
// convention. Reads go through the cache; writes go to the source of record
// and then patch a locally fetched copy of the cached list, which is handed
// back to the caller without being written to the cache.
//
// The cached list therefore lags the source until its TTL expires or
// Invalidate runs. Two overlapping writers each see a view containing their
// own change but possibly not the other's. Callers that need the durable
// state re-read from the source.
type Collection[T any] struct {
	svc *cache.Service
	src Source[T]
	id  func(T) string

	listKey string
	hashKey string

	// keys the collection has populated, kept for targeted invalidation.
	registry *xsync.MapOf[string, struct{}]
}

// NewCollection builds a cached collection for one entity. entity is the
// singular type name ("Student"); id extracts a record's identifier.
func NewCollection[T any](svc *cache.Service, src Source[T], entity string, id func(T) string) *Collection[T] {
	return &Collection[T]{
		svc:      svc,
		src:      src,
		id:       id,
		listKey:  cache.CollectionKey(entity),
		hashKey:  cache.HashKey(entity),
		registry: xsync.NewMapOf[string, struct{}](),
	}
}

// ListKey returns the logical key of the whole-collection cache entry.
func (c *Collection[T]) ListKey() string { return c.listKey }

// HashKey returns the logical key of the per-record hash entry.
func (c *Collection[T]) HashKey() string { return c.hashKey }

// GetAll returns the collection, serving the cached copy when present and
// populating it from the source on a miss.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	c.track(c.listKey)
	return cache.GetOrSet(ctx, c.svc, c.listKey, c.src.List)
}

// GetByID returns one record by identifier through the per-record hash entry,
// fetching only that record from the source on a miss.
func (c *Collection[T]) GetByID(ctx context.Context, id string) (T, error) {
	c.track(c.hashKey)
	return cache.HashGetOrSet(ctx, c.svc, c.hashKey, id, func(ctx context.Context) (T, error) {
		return c.src.GetByID(ctx, id)
	})
}

// Create inserts a record into the source, then returns it together with a
// local view of the collection: the cached (or freshly fetched) list with the
// new record appended. The view is not written back to the cache.
func (c *Collection[T]) Create(ctx context.Context, rec T) (T, []T, error) {
	created, err := c.src.Create(ctx, rec)
	if err != nil {
		return created, nil, err
	}
	list, err := c.GetAll(ctx)
	if err != nil {
		return created, nil, err
	}
	return created, appendUnique(list, created, c.id), nil
}

// Update saves a record in the source, drops the now-stale per-record hash
// entry, and returns the record together with a local view of the collection
// in which it has been replaced. The view is not written back to the cache.
func (c *Collection[T]) Update(ctx context.Context, rec T) (T, []T, error) {
	updated, err := c.src.Update(ctx, rec)
	if err != nil {
		return updated, nil, err
	}
	if err := c.svc.Remove(ctx, c.hashKey); err != nil {
		return updated, nil, err
	}
	list, err := c.GetAll(ctx)
	if err != nil {
		return updated, nil, err
	}
	id := c.id(updated)
	view := make([]T, len(list))
	copy(view, list)
	for i := range view {
		if c.id(view[i]) == id {
			view[i] = updated
		}
	}
	return updated, view, nil
}

// Delete removes a record from the source, drops the per-record hash entry,
// and returns a local view of the collection without the record. The view is
// not written back to the cache.
func (c *Collection[T]) Delete(ctx context.Context, id string) ([]T, error) {
	if err := c.src.Delete(ctx, id); err != nil {
		return nil, err
	}
	if err := c.svc.Remove(ctx, c.hashKey); err != nil {
		return nil, err
	}
	list, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	view := make([]T, 0, len(list))
	for _, rec := range list {
		if c.id(rec) != id {
			view = append(view, rec)
		}
	}
	return view, nil
}

// Invalidate removes every cache entry this collection has populated. The
// next read repopulates from the source.
func (c *Collection[T]) Invalidate(ctx context.Context) error {
	var firstErr error
	c.registry.Range(func(key string, _ struct{}) bool {
		if err := c.svc.Remove(ctx, key); err != nil {
			firstErr = err
			return false
		}
		c.registry.Delete(key)
		return true
	})
	return firstErr
}

func (c *Collection[T]) track(key string) {
	c.registry.Store(key, struct{}{})
}

// appendUnique appends rec to a copy of list, replacing an existing record
// with the same id instead of duplicating it. Covers the populate-after-write
// race where the freshly fetched list already contains the new record.
func appendUnique[T any](list []T, rec T, id func(T) string) []T {
	out := make([]T, len(list))
	copy(out, list)
	recID := id(rec)
	for i := range out {
		if id(out[i]) == recID {
			out[i] = rec
			return out
		}
	}
	return append(out, rec)
}
