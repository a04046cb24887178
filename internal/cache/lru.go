// internal/cache/lru.go
//
// Tiny LRU cache used by the view engine to store parsed *template.Template
// sets and by the session store to bound live sign-in forms.  No external
// deps; good for a few thousand entries.
package cache

import (
	"container/list"
	"sync"
)

// LRU is a least-recently-used cache, safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	cap     int
	ll      *list.List
	dict    map[K]*list.Element
	onEvict func(K, V)
}

type pair[K comparable, V any] struct {
	key K
	val V
}

// New returns an LRU with the given capacity.  Panics on cap < 1.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	return NewWithEvict[K, V](capacity, nil)
}

// NewWithEvict is New plus a callback run for every entry that leaves the
// cache through capacity pressure, Remove, or Prune.  The callback runs after
// the cache lock is released, so it may call back into the cache.
func NewWithEvict[K comparable, V any](capacity int, onEvict func(K, V)) *LRU[K, V] {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU[K, V]{
		cap:     capacity,
		ll:      list.New(),
		dict:    make(map[K]*list.Element, capacity),
		onEvict: onEvict,
	}
}

// Get retrieves a value and marks it MRU.
func (c *LRU[K, V]) Get(key K) (val V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// Peek retrieves a value without touching recency.
func (c *LRU[K, V]) Peek(key K) (val V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, hit := c.dict[key]; hit {
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// Add inserts or updates a value.
func (c *LRU[K, V]) Add(key K, val V) {
	var evicted []pair[K, V]

	c.mu.Lock()
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair[K, V]{key, val}
		c.ll.MoveToFront(ele)
		c.mu.Unlock()
		return
	}
	c.dict[key] = c.ll.PushFront(pair[K, V]{key, val})
	for c.ll.Len() > c.cap {
		evicted = append(evicted, c.removeElement(c.ll.Back()))
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Remove deletes key, reporting whether it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	ele, hit := c.dict[key]
	var p pair[K, V]
	if hit {
		p = c.removeElement(ele)
	}
	c.mu.Unlock()

	if hit {
		c.notify([]pair[K, V]{p})
	}
	return hit
}

// Prune walks from the least-recently-used end and removes entries while
// stale reports true.  It stops at the first fresh entry and returns the
// number removed.
func (c *LRU[K, V]) Prune(stale func(K, V) bool) int {
	var evicted []pair[K, V]

	c.mu.Lock()
	for ele := c.ll.Back(); ele != nil; ele = c.ll.Back() {
		p := ele.Value.(pair[K, V])
		if !stale(p.key, p.val) {
			break
		}
		evicted = append(evicted, c.removeElement(ele))
	}
	c.mu.Unlock()

	c.notify(evicted)
	return len(evicted)
}

// Purge removes every entry.
func (c *LRU[K, V]) Purge() {
	var evicted []pair[K, V]

	c.mu.Lock()
	for ele := c.ll.Back(); ele != nil; ele = c.ll.Back() {
		evicted = append(evicted, c.removeElement(ele))
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Len reports current size.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// removeElement unlinks ele.  Caller holds c.mu.
func (c *LRU[K, V]) removeElement(ele *list.Element) pair[K, V] {
	c.ll.Remove(ele)
	p := ele.Value.(pair[K, V])
	delete(c.dict, p.key)
	return p
}

func (c *LRU[K, V]) notify(evicted []pair[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, p := range evicted {
		c.onEvict(p.key, p.val)
	}
}
