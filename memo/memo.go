// Package memo implements the incrementality layer (spec §4.G): every
// pure top-level operation is memoised under a key of (operation
// identity, hashable inputs, recorded world accesses); a cache hit is
// only trusted after replaying the recorded accesses against the
// current world and confirming they still agree.
//
// The eviction policy is grounded on hashicorp/golang-lru/v2, and cache
// keys are content digests from github.com/opencontainers/go-digest —
// the same library package world uses for its access-log sums, so a
// world.AccessRecord and a memo Key round-trip through the same digest
// format without conversion.
package memo

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opencontainers/go-digest"

	"github.com/typst-lang/typst-core/world"
)

// Key identifies one memoised computation. Closures are keyed by
// (body-span, captures, defining-module-id) per spec §4.G, which the
// caller folds into Inputs before building a Key.
type Key struct {
	Operation string
	Inputs    string // pre-digested input fingerprint; callers own the encoding
}

func (k Key) String() string { return k.Operation + "/" + k.Inputs }

// DigestInputs is a helper callers use to build Key.Inputs from a set of
// already-stringified components (source text, closure capture reprs,
// etc.), avoiding ad hoc string concatenation at every call site.
func DigestInputs(parts ...string) string {
	var joined string
	for _, p := range parts {
		joined += digest.FromString(p).String() + "|"
	}
	return digest.FromString(joined).String()
}

// entry is what the LRU actually stores: the cached output plus the
// world-access log recorded while producing it.
type entry struct {
	value interface{}
	log   []world.AccessRecord
}

// Cache is a module-evaluation/closure-call memo table with LRU
// eviction (spec §4.G "Cache eviction is LRU with a configurable
// quota").
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[Key, entry]
	hits  int64
	total int64
}

// NewCache builds a Cache holding at most quota entries.
func NewCache(quota int) (*Cache, error) {
	l, err := lru.New[Key, entry](quota)
	if err != nil {
		return nil, fmt.Errorf("memo: invalid quota %d: %w", quota, err)
	}
	return &Cache{lru: l}, nil
}

// Stats reports (hits, total) lookups since construction, for
// diagnostics/benchmarking; not part of correctness.
func (c *Cache) Stats() (hits, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.total
}

// Compute returns the memoised value for key if a cache entry exists and
// replays clean against w; otherwise it calls fn (which must record its
// world accesses onto the supplied world.Tracking) and stores the fresh
// result.
func (c *Cache) Compute(key Key, w world.World, fn func(tw *world.Tracking) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	c.total++
	if e, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		if world.Replay(w, e.log) {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return e.value, nil
		}
		// stale: recompute below, falling through without holding the lock
	} else {
		c.mu.Unlock()
	}

	tw := world.NewTracking(w)
	val, err := fn(tw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(key, entry{value: val, log: tw.Log()})
	c.mu.Unlock()
	return val, nil
}

// Invalidate removes a single key, used when a caller knows a source
// changed and wants to force recomputation without waiting for a failed
// replay.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Purge drops every entry, used between unrelated compilations that
// share a process (e.g. a long-lived CLI watch mode) to bound memory.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
