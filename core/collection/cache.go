// Package collection provides the TTL cache behind every fetched
// collection: products, orders, admin users. One loader, one expiry
// window, one in-flight guard.
package collection

import (
	"context"
	"sync"
	"time"

	"github.com/grocerly/storefront/core/clock"
)

// LoadFunc fetches the full collection from the backend.
type LoadFunc[T any] func(ctx context.Context) ([]T, error)

// Cache holds a collection with a freshness window. A fetch inside
// the window is a no-op, an overlapping fetch is a no-op unless
// forced, and a failed fetch keeps the previous items while
// recording the error.
type Cache[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock clock.Clock
	load  LoadFunc[T]

	items      []T
	fetchedAt  time.Time
	hasFetched bool
	inFlight   bool
	err        error
}

// New creates a cache. A nil clock uses the system clock.
func New[T any](ttl time.Duration, load LoadFunc[T], clk clock.Clock) *Cache[T] {
	if clk == nil {
		clk = clock.System()
	}
	return &Cache[T]{ttl: ttl, clock: clk, load: load}
}

// Fetch loads the collection unless it is still fresh or a load is
// already running. force bypasses both the freshness window and the
// in-flight guard; whichever load finishes last wins.
func (c *Cache[T]) Fetch(ctx context.Context, force bool) error {
	c.mu.Lock()
	if !force && (c.inFlight || c.fresh()) {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.mu.Unlock()

	items, err := c.load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.err = err
		return err
	}
	c.items = items
	c.fetchedAt = c.clock.Now()
	c.hasFetched = true
	c.err = nil
	return nil
}

// fresh reports whether the last fetch is still inside the window.
// An empty result is never fresh: the next Fetch goes back to the
// network. Caller holds the mutex.
func (c *Cache[T]) fresh() bool {
	return len(c.items) > 0 && c.clock.Now().Before(c.fetchedAt.Add(c.ttl))
}

// Items returns a copy of the cached collection.
func (c *Cache[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the first item matching pred.
func (c *Cache[T]) Find(pred func(T) bool) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns every item matching pred.
func (c *Cache[T]) Filter(pred func(T) bool) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, item := range c.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Update mutates the collection in place under the lock. Used to
// reconcile server responses into the cache without a refetch.
func (c *Cache[T]) Update(fn func(items []T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = fn(c.items)
}

// Invalidate expires the window so the next Fetch reloads. The items
// stay visible until then.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
	c.hasFetched = false
}

// Clear drops the items entirely. Used on logout.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.fetchedAt = time.Time{}
	c.hasFetched = false
	c.err = nil
}

// HasFetched reports whether any fetch has ever succeeded.
func (c *Cache[T]) HasFetched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasFetched
}

// Err returns the error recorded by the most recent failed fetch, or
// nil after a success.
func (c *Cache[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
