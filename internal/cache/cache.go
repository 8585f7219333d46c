// Package cache provides the small keyed caches used to memoize upstream
// fetches. The eviction policy is chosen explicitly by the caller.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a keyed store of values. Implementations are safe for concurrent use.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Remove(key K)
	Purge()
	Len() int
}

// Policy selects how entries are evicted. The zero Policy keeps every entry
// for the lifetime of the cache.
type Policy struct {
	// Size caps the number of entries, evicting the least recently used.
	// Zero means unbounded (when TTL is also zero) or the default LRU size.
	Size int
	// TTL expires entries after the given duration. Zero means never.
	TTL time.Duration
}

// DefaultLRUSize is used when a TTL is set without a Size.
const DefaultLRUSize = 128

// New returns a cache implementing p. A TTL policy starts a cleanup goroutine
// that lives as long as the process, so such caches should be long-lived and
// shared rather than created per request or per visitor.
func New[K comparable, V any](p Policy) Cache[K, V] {
	if p.Size <= 0 && p.TTL <= 0 {
		return NewMemory[K, V]()
	}
	size := p.Size
	if size <= 0 {
		size = DefaultLRUSize
	}
	return &lruCache[K, V]{lru: expirable.NewLRU[K, V](size, nil, p.TTL)}
}

// Memory is an unbounded map-backed cache with no eviction.
type Memory[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMemory creates an empty Memory cache.
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{m: make(map[K]V)}
}

// Get returns the value stored for key.
func (c *Memory[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Put stores value under key, replacing any previous value.
func (c *Memory[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

// Remove deletes key if present.
func (c *Memory[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Purge deletes every entry.
func (c *Memory[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[K]V)
}

// Len returns the number of entries.
func (c *Memory[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

type lruCache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

func (c *lruCache[K, V]) Get(key K) (V, bool) { return c.lru.Get(key) }

func (c *lruCache[K, V]) Put(key K, value V) { c.lru.Add(key, value) }

func (c *lruCache[K, V]) Remove(key K) { c.lru.Remove(key) }

func (c *lruCache[K, V]) Purge() { c.lru.Purge() }

func (c *lruCache[K, V]) Len() int { return c.lru.Len() }
