// ABOUTME: Tests for the subscription status cache.
// ABOUTME: Validates TTL expiry, cache-aside reads, invalidation, stats, and miss coalescing.

package subcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-concierge/internal/profile"
)

// stubLookup is a controllable SubscriptionLookup for tests.
type stubLookup struct {
	mu    sync.Mutex
	subs  map[string]*profile.Subscription
	err   error
	calls atomic.Int64

	// entered, when non-nil, receives one send per lookup call
	entered chan struct{}
	// block, when non-nil, is received from before returning
	block chan struct{}
}

func newStubLookup() *stubLookup {
	return &stubLookup{subs: make(map[string]*profile.Subscription)}
}

func (l *stubLookup) add(userKey, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[userKey] = &profile.Subscription{
		Status:      status,
		CustomerRef: "cus_" + userKey,
	}
}

func (l *stubLookup) GetSubscription(ctx context.Context, userKey string) (*profile.Subscription, error) {
	l.calls.Add(1)
	if l.entered != nil {
		l.entered <- struct{}{}
	}
	if l.block != nil {
		<-l.block
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	sub, ok := l.subs[userKey]
	if !ok {
		return nil, profile.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func newTestCache(t *testing.T, lookup SubscriptionLookup, opts ...Option) *Cache {
	t.Helper()
	c := New(lookup, 15*time.Minute, time.Hour, nil, opts...)
	t.Cleanup(c.Close)
	return c
}

func TestCache_MissThenHit(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)
	c := newTestCache(t, lookup)
	ctx := context.Background()

	// First read misses and queries the store
	first := c.GetSubscriptionStatus(ctx, "42")
	assert.Equal(t, profile.SubscriptionActive, first.Status)
	assert.False(t, first.FromCache)

	// Second read within the TTL is served from cache with identical data
	second := c.GetSubscriptionStatus(ctx, "42")
	assert.Equal(t, profile.SubscriptionActive, second.Status)
	assert.Equal(t, first.CustomerRef, second.CustomerRef)
	assert.True(t, second.FromCache)

	assert.Equal(t, int64(1), lookup.calls.Load())
}

func TestCache_TTLExpiry(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)

	c := New(lookup, 20*time.Millisecond, time.Hour, nil)
	defer c.Close()
	ctx := context.Background()

	c.GetSubscriptionStatus(ctx, "42")
	time.Sleep(30 * time.Millisecond)

	// Expired entry is treated as absent: re-query, FromCache false
	result := c.GetSubscriptionStatus(ctx, "42")
	assert.False(t, result.FromCache)
	assert.Equal(t, int64(2), lookup.calls.Load())
}

func TestCache_UnknownNotCached(t *testing.T) {
	lookup := newStubLookup()
	c := newTestCache(t, lookup)
	ctx := context.Background()

	// No profile for this key: unknown result, and every call re-queries
	for i := 0; i < 3; i++ {
		result := c.GetSubscriptionStatus(ctx, "999")
		assert.Empty(t, result.Status)
		assert.False(t, result.FromCache)
	}
	assert.Equal(t, int64(3), lookup.calls.Load())
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_CacheUnknownPolicy(t *testing.T) {
	lookup := newStubLookup()
	c := newTestCache(t, lookup, WithCacheUnknown(true))
	ctx := context.Background()

	first := c.GetSubscriptionStatus(ctx, "999")
	assert.Empty(t, first.Status)
	assert.False(t, first.FromCache)

	// The negative entry is now served from cache
	second := c.GetSubscriptionStatus(ctx, "999")
	assert.Empty(t, second.Status)
	assert.True(t, second.FromCache)
	assert.Equal(t, int64(1), lookup.calls.Load())
}

func TestCache_LookupFailureDegradesToUnknown(t *testing.T) {
	lookup := newStubLookup()
	lookup.err = errors.New("store unreachable")
	c := newTestCache(t, lookup)
	ctx := context.Background()

	result := c.GetSubscriptionStatus(ctx, "42")
	assert.Empty(t, result.Status)
	assert.False(t, result.FromCache)

	// Failures are never cached
	assert.Equal(t, 0, c.Stats().TotalEntries)

	// Once the store recovers, the next read succeeds
	lookup.mu.Lock()
	lookup.err = nil
	lookup.mu.Unlock()
	lookup.add("42", profile.SubscriptionActive)

	result = c.GetSubscriptionStatus(ctx, "42")
	assert.Equal(t, profile.SubscriptionActive, result.Status)
}

func TestCache_SetOverwrites(t *testing.T) {
	lookup := newStubLookup()
	c := newTestCache(t, lookup)
	ctx := context.Background()

	c.Set("42", profile.Subscription{Status: profile.SubscriptionInactive})
	c.Set("42", profile.Subscription{Status: profile.SubscriptionActive})

	result := c.GetSubscriptionStatus(ctx, "42")
	assert.Equal(t, profile.SubscriptionActive, result.Status)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, c.Stats().TotalEntries)
}

func TestCache_Invalidate(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)
	c := newTestCache(t, lookup)
	ctx := context.Background()

	c.GetSubscriptionStatus(ctx, "42")
	c.Invalidate("42")

	// Next read is forced back to the store
	result := c.GetSubscriptionStatus(ctx, "42")
	assert.False(t, result.FromCache)
	assert.Equal(t, int64(2), lookup.calls.Load())

	// Invalidating an absent key is a no-op
	c.Invalidate("nope")
}

func TestCache_InvalidateAll(t *testing.T) {
	lookup := newStubLookup()
	c := newTestCache(t, lookup)

	for _, key := range []string{"1", "2", "3"} {
		c.Set(key, profile.Subscription{Status: profile.SubscriptionActive})
	}
	require.Equal(t, 3, c.Stats().TotalEntries)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_ConvenienceWrappers(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("active", profile.SubscriptionActive)
	lookup.add("lapsed", profile.SubscriptionCancelled)
	c := newTestCache(t, lookup)
	ctx := context.Background()

	assert.True(t, c.IsSubscriptionActive(ctx, "active"))
	assert.False(t, c.IsSubscriptionActive(ctx, "lapsed"))
	assert.False(t, c.IsSubscriptionActive(ctx, "unknown"))

	assert.True(t, c.HasSubscription(ctx, "active"))
	assert.True(t, c.HasSubscription(ctx, "lapsed"))
	assert.False(t, c.HasSubscription(ctx, "unknown"))
}

func TestCache_PreWarm(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)
	c := newTestCache(t, lookup)
	ctx := context.Background()

	c.PreWarm(ctx, "42")
	require.Equal(t, int64(1), lookup.calls.Load())

	// Pre-warmed entry serves the next read without a store query
	result := c.GetSubscriptionStatus(ctx, "42")
	assert.True(t, result.FromCache)
	assert.Equal(t, int64(1), lookup.calls.Load())
}

func TestCache_Stats(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)
	c := newTestCache(t, lookup)
	ctx := context.Background()

	c.GetSubscriptionStatus(ctx, "42") // miss
	c.GetSubscriptionStatus(ctx, "42") // hit
	c.GetSubscriptionStatus(ctx, "42") // hit

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.Equal(t, 0, stats.ExpiredEntries)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.CacheHits)
	assert.InDelta(t, 66.67, stats.HitRate, 0.01)
}

func TestCache_Sweep(t *testing.T) {
	lookup := newStubLookup()
	c := New(lookup, 10*time.Millisecond, 20*time.Millisecond, nil)
	defer c.Close()

	c.Set("42", profile.Subscription{Status: profile.SubscriptionActive})
	require.Equal(t, 1, c.Stats().TotalEntries)

	// Wait past TTL + sweep interval; the entry must disappear without reads
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, c.Stats().TotalEntries, "sweep should remove expired entry")
}

func TestCache_ConcurrentMisses_Default(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)

	// Barrier inside the lookup: every call must enter before any returns,
	// proving concurrent misses each query the store.
	const numGoroutines = 5
	lookup.entered = make(chan struct{})
	lookup.block = make(chan struct{})

	c := newTestCache(t, lookup)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			result := c.GetSubscriptionStatus(ctx, "42")
			assert.Equal(t, profile.SubscriptionActive, result.Status)
		}()
	}

	// Wait until every goroutine is inside the lookup, then release them all
	for i := 0; i < numGoroutines; i++ {
		<-lookup.entered
	}
	close(lookup.block)
	wg.Wait()

	assert.Equal(t, int64(numGoroutines), lookup.calls.Load(),
		"without single-flight every concurrent miss queries the store")
}

func TestCache_ConcurrentMisses_SingleFlight(t *testing.T) {
	lookup := newStubLookup()
	lookup.add("42", profile.SubscriptionActive)
	lookup.block = make(chan struct{})

	c := newTestCache(t, lookup, WithSingleFlight(true))
	ctx := context.Background()

	const numGoroutines = 5
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			result := c.GetSubscriptionStatus(ctx, "42")
			assert.Equal(t, profile.SubscriptionActive, result.Status)
		}()
	}

	// Give every goroutine time to join the in-flight lookup, then release it
	time.Sleep(50 * time.Millisecond)
	close(lookup.block)
	wg.Wait()

	assert.Equal(t, int64(1), lookup.calls.Load(),
		"single-flight should coalesce concurrent misses into one query")
}

func TestCache_Close(t *testing.T) {
	lookup := newStubLookup()
	c := New(lookup, time.Minute, time.Hour, nil)

	c.Set("42", profile.Subscription{Status: profile.SubscriptionActive})
	c.Close()

	assert.Equal(t, 0, c.Stats().TotalEntries)

	// Multiple closes should not panic
	c.Close()
}
