// Package cache provides a time- and count-bounded in-memory cache with
// single-flight coalescing of concurrent misses.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Store is a capacity-bounded cache whose entries expire a fixed TTL after
// insertion, regardless of access. Eviction under capacity pressure is
// least-recently-used. Concurrent misses on the same key share one fetch;
// the result or the failure fans out to every waiter. Failed fetches never
// populate the store.
type Store[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// New creates a Store holding at most capacity entries, each expiring ttl
// after insertion.
func New[V any](capacity int, ttl time.Duration) *Store[V] {
	return &Store[V]{
		lru: expirable.NewLRU[string, V](capacity, nil, ttl),
	}
}

// Key builds a collision-free cache key from namespace segments. Callers
// namespace by variant and role so raw identifiers can never collide across
// concerns.
func Key(segments ...string) string {
	return strings.Join(segments, "/")
}

// GetOrFetch returns the cached value for key if present and unexpired.
// Otherwise it invokes fetch, stores the result, and returns it. The fetch
// for a given key runs at most once at a time; every concurrent caller
// receives the same result or the same error.
func (s *Store[V]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	if v, ok := s.lru.Get(key); ok {
		return v, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent winner may have populated the entry while this
		// caller was queued behind the flight.
		if v, ok := s.lru.Get(key); ok {
			return v, nil
		}

		val, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		s.lru.Add(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("fetch %s: %w", key, err)
	}

	return v.(V), nil
}

// Get returns the cached value without triggering a fetch.
func (s *Store[V]) Get(key string) (V, bool) {
	return s.lru.Get(key)
}

// Put stores a value directly, replacing any existing entry.
func (s *Store[V]) Put(key string, value V) {
	s.lru.Add(key, value)
}

// Invalidate removes an entry. Removing an absent key is a no-op, so the
// operation is idempotent.
func (s *Store[V]) Invalidate(key string) {
	s.lru.Remove(key)
}

// Len reports the number of stored entries, including not-yet-swept expired
// ones.
func (s *Store[V]) Len() int {
	return s.lru.Len()
}
