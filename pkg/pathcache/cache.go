// Package pathcache maps resolved path strings to inode numbers with a fixed
// capacity and least-recently-used eviction.
package pathcache

import (
	"fmt"
	"hash/fnv"
	"strings"

	. "github.com/weberc2/blockfs/pkg/types"
)

// nilSlot terminates both the LRU list and the bucket chains.
const nilSlot = -1

// Cache keeps its entries in a fixed arena of slots. Each slot is linked into
// two independent structures: the LRU list (prev/next, most recently used at
// the head) and its hash bucket's collision chain (chain).
type Cache struct {
	slots   []slot
	buckets []int
	head    int
	tail    int
	free    []int
	length  int
	stats   Stats
}

type slot struct {
	key   string
	value Ino
	prev  int
	next  int
	chain int
}

// Stats counts lookups and evictions since the cache was created or last
// reset.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"hits=%d misses=%d evictions=%d",
		s.Hits,
		s.Misses,
		s.Evictions,
	)
}

// New returns an empty cache holding at most `capacity` paths. Capacities
// below 1 are raised to 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}

	buckets := 1
	for buckets < capacity {
		buckets <<= 1
	}

	c := &Cache{
		slots:   make([]slot, capacity),
		buckets: make([]int, buckets),
		head:    nilSlot,
		tail:    nilSlot,
		free:    make([]int, capacity),
	}
	for i := range c.buckets {
		c.buckets[i] = nilSlot
	}
	// hand out low slots first
	for i := range c.free {
		c.free[i] = capacity - 1 - i
	}
	return c
}

func (c *Cache) Len() int      { return c.length }
func (c *Cache) Capacity() int { return len(c.slots) }
func (c *Cache) Stats() Stats  { return c.stats }
func (c *Cache) ResetStats()   { c.stats = Stats{} }

// Get returns the inode number cached for `key` and promotes the entry to
// most recently used. The boolean is false on a miss.
func (c *Cache) Get(key string) (Ino, bool) {
	i := c.find(key, c.bucket(key))
	if i == nilSlot {
		c.stats.Misses++
		return 0, false
	}
	c.stats.Hits++
	c.moveFront(i)
	return c.slots[i].value, true
}

// Set caches `value` under `key`. An existing entry is updated in place; a
// new entry goes to the head, evicting the least recently used entry when the
// cache is full.
func (c *Cache) Set(key string, value Ino) error {
	if key == "" {
		return fmt.Errorf("caching inode `%d`: %w", value, EmptyKeyErr)
	}

	b := c.bucket(key)
	if i := c.find(key, b); i != nilSlot {
		c.slots[i].value = value
		c.moveFront(i)
		return nil
	}

	if len(c.free) == 0 {
		c.evict(c.tail)
		c.stats.Evictions++
	}

	i := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.slots[i] = slot{
		key:   key,
		value: value,
		prev:  nilSlot,
		next:  nilSlot,
		chain: c.buckets[b],
	}
	c.buckets[b] = i
	c.pushFront(i)
	c.length++
	return nil
}

// Remove drops `key` from the cache and reports whether it was present.
func (c *Cache) Remove(key string) bool {
	i := c.find(key, c.bucket(key))
	if i == nilSlot {
		return false
	}
	c.evict(i)
	return true
}

// RemovePrefix drops `prefix` and every path beneath it, returning the
// number of entries removed.
func (c *Cache) RemovePrefix(prefix string) int {
	below := strings.TrimSuffix(prefix, "/") + "/"
	removed := 0
	for i := c.head; i != nilSlot; {
		next := c.slots[i].next
		if key := c.slots[i].key; key == prefix || strings.HasPrefix(key, below) {
			c.evict(i)
			removed++
		}
		i = next
	}
	return removed
}

// Keys lists the cached paths, most recently used first.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, c.length)
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		keys = append(keys, c.slots[i].key)
	}
	return keys
}

func (c *Cache) bucket(key string) int {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() & uint64(len(c.buckets)-1))
}

func (c *Cache) find(key string, b int) int {
	for i := c.buckets[b]; i != nilSlot; i = c.slots[i].chain {
		if c.slots[i].key == key {
			return i
		}
	}
	return nilSlot
}

// evict unlinks slot `i` from its bucket chain and the LRU list and returns
// it to the free stack.
func (c *Cache) evict(i int) {
	b := c.bucket(c.slots[i].key)
	if c.buckets[b] == i {
		c.buckets[b] = c.slots[i].chain
	} else {
		for j := c.buckets[b]; j != nilSlot; j = c.slots[j].chain {
			if c.slots[j].chain == i {
				c.slots[j].chain = c.slots[i].chain
				break
			}
		}
	}

	c.unlink(i)
	c.slots[i] = slot{prev: nilSlot, next: nilSlot, chain: nilSlot}
	c.free = append(c.free, i)
	c.length--
}

func (c *Cache) unlink(i int) {
	s := &c.slots[i]
	if s.prev != nilSlot {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != nilSlot {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev, s.next = nilSlot, nilSlot
}

func (c *Cache) pushFront(i int) {
	c.slots[i].prev = nilSlot
	c.slots[i].next = c.head
	if c.head != nilSlot {
		c.slots[c.head].prev = i
	}
	c.head = i
	if c.tail == nilSlot {
		c.tail = i
	}
}

func (c *Cache) moveFront(i int) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}
