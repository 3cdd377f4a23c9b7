// Package portaldata provides cached collection services over the portal's
// repositories.
//
// # Overview
//
// A Collection wraps one entity repository with the cache-aside convention
// the portal uses everywhere: reads are served through the cache service,
// writes go straight to the store of record and then hand the caller a
// locally patched view of the cached list.
//
// # Read Path
//
// Reads follow the read-through pattern:
//
//  1. Check the cache under the entity's collection key ("StudentData")
//  2. On a hit, return the cached list without touching the source
//  3. On a miss, fetch from the repository, store the result, return it
//
// Single-record reads use a per-entity hash entry ("students") keyed by
// record identifier, so one record can be fetched and cached without
// materializing the whole collection.
//
// # Write Path
//
// Writes never update the cached list in place. After a successful
// repository write the Collection fetches the current cached list (or
// populates it), applies the append, replace, or removal to a copy, and
// returns that copy to the caller:
//
//	created, view, err := students.Create(ctx, rec)
//	// view contains rec; the cached "StudentData" entry may not
//
// The per-record hash entry is dropped after updates and deletes so stale
// single-record reads cannot outlive the write.
//
// # Consistency
//
// The cached list lags the store of record until its TTL expires or
// Invalidate runs. Two overlapping writers each receive a view containing
// their own change but possibly not the other's; neither view is persisted
// to the cache. Callers that need the durable state re-read from the source.
//
// # Integration with Dependency Injection
//
// Collections are normally built through the pkg/di container, which wires
// the cache service and repositories:
//
//	students := di.NewCollection(container, repo, "Student", func(s repository.Student) string {
//		return s.ID.String()
//	})
package portaldata
