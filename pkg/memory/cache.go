// Package memory keeps recently used page buffers in memory in front of a
// page store.
package memory

import (
	"sync"

	"pagedb/pkg/primitives"
)

// node represents a single node in the doubly linked list
type node struct {
	addr primitives.PageAddress
	data []byte
	prev *node
	next *node
}

// LRUPageCache holds up to maxSize page buffers. When it is full, adding a
// page evicts the least recently used one.
//
// The cache is safe for concurrent use. Buffers are copied on the way in
// and on the way out, so callers never share memory with the cache.
type LRUPageCache struct {
	maxSize int                              // Maximum number of pages the cache can hold
	cache   map[primitives.PageAddress]*node // Map for O(1) page lookup
	head    *node                            // Dummy head node (most recently used end)
	tail    *node                            // Dummy tail node (least recently used end)
	mutex   sync.Mutex

	hits      uint64
	misses    uint64
	evictions uint64
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewLRUPageCache creates a new LRU page cache with the specified maximum size.
func NewLRUPageCache(maxSize int) *LRUPageCache {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &LRUPageCache{
		maxSize: maxSize,
		cache:   make(map[primitives.PageAddress]*node),
		head:    head,
		tail:    tail,
	}
}

// addToFront adds a node right after the head (marks as most recently used) - O(1)
func (c *LRUPageCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

// removeNode removes a node from the linked list - O(1)
func (c *LRUPageCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRUPageCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

// Get returns a copy of the cached buffer of addr and marks it recently
// used.
func (c *LRUPageCache) Get(addr primitives.PageAddress) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n, ok := c.cache[addr]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.moveToFront(n)
	return append([]byte(nil), n.data...), true
}

// Put stores a copy of data as the buffer of addr, evicting the least
// recently used page when the cache is full. It returns the address of
// the evicted page, if any.
func (c *LRUPageCache) Put(addr primitives.PageAddress, data []byte) (primitives.PageAddress, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	buf := append([]byte(nil), data...)
	if n, ok := c.cache[addr]; ok {
		n.data = buf
		c.moveToFront(n)
		return primitives.PageAddress{}, false
	}
	if c.maxSize <= 0 {
		return primitives.PageAddress{}, false
	}

	var (
		evicted primitives.PageAddress
		full    = len(c.cache) >= c.maxSize
	)
	if full {
		lru := c.tail.prev
		c.removeNode(lru)
		delete(c.cache, lru.addr)
		c.evictions++
		evicted = lru.addr
	}

	n := &node{addr: addr, data: buf}
	c.cache[addr] = n
	c.addToFront(n)
	return evicted, full
}

// Remove drops addr from the cache. Does nothing if it is not cached.
func (c *LRUPageCache) Remove(addr primitives.PageAddress) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, ok := c.cache[addr]; ok {
		delete(c.cache, addr)
		c.removeNode(n)
	}
}

// Size returns the current number of pages stored in the cache.
func (c *LRUPageCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.cache)
}

// Clear removes all pages from the cache. The counters are kept.
func (c *LRUPageCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[primitives.PageAddress]*node)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Addresses returns the cached page addresses, least recently used first.
func (c *LRUPageCache) Addresses() []primitives.PageAddress {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	addrs := make([]primitives.PageAddress, 0, len(c.cache))
	for cur := c.tail.prev; cur != c.head; cur = cur.prev {
		addrs = append(addrs, cur.addr)
	}
	return addrs
}

// Stats returns the current counters.
func (c *LRUPageCache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Stats{Size: len(c.cache), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}
