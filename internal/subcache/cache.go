// ABOUTME: Thread-safe TTL cache for member subscription statuses.
// ABOUTME: Cache-aside layer over the profile store, with invalidation hooks for billing events.

package subcache

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/2389/fold-concierge/internal/profile"
)

// SubscriptionLookup is the narrow capability the cache needs from the
// profile store on a miss. Injecting it (rather than the full store) keeps
// the cache free of a concrete storage dependency.
type SubscriptionLookup interface {
	GetSubscription(ctx context.Context, userKey string) (*profile.Subscription, error)
}

// Entry is one cached subscription snapshot.
type Entry struct {
	UserKey         string
	Status          string // profile.SubscriptionActive etc., "" = no subscription data
	CustomerRef     string
	SubscriptionRef string
	CachedAt        time.Time
	ExpiresAt       time.Time
}

// Result is what readers get back from GetSubscriptionStatus.
type Result struct {
	Status          string
	CustomerRef     string
	SubscriptionRef string
	FromCache       bool
}

// Stats summarizes cache contents and effectiveness.
type Stats struct {
	TotalEntries   int
	ActiveEntries  int
	ExpiredEntries int
	TotalRequests  int64
	CacheHits      int64
	HitRate        float64 // percent, rounded to two decimals
}

// Option mutates cache configuration.
type Option func(*Cache)

// WithCacheUnknown caches lookups that found no profile. When off (the
// default), unknown users are re-queried on every call, which picks up
// newly created profiles immediately at the cost of repeated misses for
// permanently-unknown users.
func WithCacheUnknown(enabled bool) Option {
	return func(c *Cache) {
		c.cacheUnknown = enabled
	}
}

// WithSingleFlight coalesces concurrent misses for the same key into one
// lookup whose result is shared. The default (off) lets concurrent misses
// each query the store; the duplicate writes are idempotent overwrites.
func WithSingleFlight(enabled bool) Option {
	return func(c *Cache) {
		c.singleFlight = enabled
	}
}

// Cache provides a thread-safe, TTL-based cache of subscription statuses in
// front of the profile store. Entries are only ever as stale as the TTL:
// expiry is checked on every read, and a background goroutine sweeps
// expired entries to bound memory.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	lookup        SubscriptionLookup
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger

	cacheUnknown bool
	singleFlight bool
	group        singleflight.Group

	totalRequests int64
	cacheHits     int64

	done   chan struct{}
	closed bool
}

// New creates a subscription cache over the given lookup. Entries expire
// after ttl; the sweep goroutine runs every sweepInterval.
func New(lookup SubscriptionLookup, ttl, sweepInterval time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		entries:       make(map[string]*Entry),
		lookup:        lookup,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		logger:        logger.With("component", "subcache"),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweep()
	return c
}

// GetSubscriptionStatus returns the user's subscription snapshot, serving
// from cache when a live entry exists and falling back to the profile store
// otherwise. Lookup failures degrade to an unknown status and are logged,
// never propagated.
func (c *Cache) GetSubscriptionStatus(ctx context.Context, userKey string) Result {
	if entry, ok := c.get(userKey); ok {
		return Result{
			Status:          entry.Status,
			CustomerRef:     entry.CustomerRef,
			SubscriptionRef: entry.SubscriptionRef,
			FromCache:       true,
		}
	}

	if !c.singleFlight {
		return c.fetch(ctx, userKey)
	}

	// Coalesce concurrent misses for the same key into one store query.
	result, _, _ := c.group.Do(userKey, func() (any, error) {
		return c.fetch(ctx, userKey), nil
	})
	return result.(Result)
}

// fetch queries the profile store and populates the cache on success.
func (c *Cache) fetch(ctx context.Context, userKey string) Result {
	c.logger.Debug("cache miss", "user_key", userKey)

	sub, err := c.lookup.GetSubscription(ctx, userKey)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			if c.cacheUnknown {
				c.Set(userKey, profile.Subscription{})
			}
			return Result{}
		}
		// Store unreachable: degrade to unknown, do not cache the failure
		c.logger.Error("subscription lookup failed", "user_key", userKey, "error", err)
		return Result{}
	}

	c.Set(userKey, *sub)
	return Result{
		Status:          sub.Status,
		CustomerRef:     sub.CustomerRef,
		SubscriptionRef: sub.SubscriptionRef,
	}
}

// get returns the live entry for a key, deleting it when expired, and
// updates the request and hit counters.
func (c *Cache) get(userKey string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++

	entry, ok := c.entries[userKey]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		delete(c.entries, userKey)
		c.logger.Debug("cache entry expired", "user_key", userKey)
		return nil, false
	}

	c.cacheHits++
	return entry, true
}

// Set unconditionally overwrites the entry for a key with a fresh TTL.
func (c *Cache) Set(userKey string, sub profile.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[userKey] = &Entry{
		UserKey:         userKey,
		Status:          sub.Status,
		CustomerRef:     sub.CustomerRef,
		SubscriptionRef: sub.SubscriptionRef,
		CachedAt:        now,
		ExpiresAt:       now.Add(c.ttl),
	}
	c.logger.Debug("cached subscription status", "user_key", userKey, "status", sub.Status)
}

// Invalidate removes one entry. Safe to call on an absent key.
// Called by billing-event handlers so the next read refreshes.
func (c *Cache) Invalidate(userKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[userKey]; ok {
		delete(c.entries, userKey)
		c.logger.Debug("cache invalidated", "user_key", userKey)
	}
}

// InvalidateAll clears every entry. Intended for rare system-wide
// corrections, not routine invalidation.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.logger.Info("all cache entries invalidated", "count", count)
}

// IsSubscriptionActive reports whether the user's subscription is active.
func (c *Cache) IsSubscriptionActive(ctx context.Context, userKey string) bool {
	return c.GetSubscriptionStatus(ctx, userKey).Status == profile.SubscriptionActive
}

// HasSubscription reports whether the user has any subscription data.
func (c *Cache) HasSubscription(ctx context.Context, userKey string) bool {
	return c.GetSubscriptionStatus(ctx, userKey).Status != ""
}

// PreWarm eagerly populates the entry for a key through the read path and
// returns what was fetched. Typically called shortly after a billing-event
// invalidation.
func (c *Cache) PreWarm(ctx context.Context, userKey string) Result {
	result := c.GetSubscriptionStatus(ctx, userKey)
	c.logger.Debug("cache pre-warmed", "user_key", userKey, "status", result.Status)
	return result
}

// Stats returns a snapshot of cache contents and hit-rate counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	stats := Stats{
		TotalEntries:  len(c.entries),
		TotalRequests: c.totalRequests,
		CacheHits:     c.cacheHits,
	}
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}

	if stats.TotalRequests > 0 {
		rate := float64(stats.CacheHits) / float64(stats.TotalRequests) * 100
		stats.HitRate = math.Round(rate*100) / 100
	}
	return stats
}

// sweep runs in a background goroutine, periodically removing expired
// entries. Purely a memory bound; expiry is also enforced on every read.
func (c *Cache) sweep() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runSweep()
		case <-c.done:
			return
		}
	}
}

// runSweep removes all expired entries from the cache.
func (c *Cache) runSweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for userKey, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, userKey)
			cleaned++
		}
	}

	if cleaned > 0 {
		c.logger.Debug("swept expired cache entries", "count", cleaned)
	}
}

// Close stops the sweep goroutine and clears all entries.
// It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
		c.entries = make(map[string]*Entry)
	}
}
