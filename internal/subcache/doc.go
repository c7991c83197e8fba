// Package subcache caches member subscription statuses in front of the
// profile store, bounding how often chat traffic hits the database.
//
// # Read Path
//
// GetSubscriptionStatus is cache-aside: a live entry is served directly
// (FromCache = true); otherwise the profile store is queried and a fresh
// entry written with a fixed TTL. A lookup that finds no profile returns an
// unknown result and, by default, is not cached: every later call
// re-queries the store, so a profile created between calls is picked up
// immediately. WithCacheUnknown(true) trades that for fewer misses on
// permanently-unknown users.
//
// # Invalidation
//
// Billing-event handlers call Invalidate (or InvalidateAll) when a
// subscription changes, forcing the next read to refresh. PreWarm can then
// eagerly repopulate the entry. Without invalidation, a change is visible
// within one TTL.
//
// # Concurrency
//
// All operations are safe for concurrent use. Concurrent misses for the
// same key each query the store by default; WithSingleFlight(true)
// coalesces them into a single in-flight lookup.
package subcache
