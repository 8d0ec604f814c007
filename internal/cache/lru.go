// Package cache provides the bounded audio buffer cache used by playback
// sessions. Keys are cleaned block text so identical spoken content shares
// one slot regardless of where it came from.
package cache

import "container/list"

// DefaultCapacity is the cache size used when none is configured.
const DefaultCapacity = 50

// Cache is a strict-LRU store of synthesized audio buffers. It is not safe
// for concurrent use; the owning playback controller serializes access.
type Cache struct {
	capacity int
	ll       *list.List
	items    map[string]*list.Element

	// OnEvict, if set, is called with the key of each evicted entry.
	OnEvict func(key string)
}

type entry struct {
	key   string
	audio []byte
}

// New creates a cache holding at most capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached audio for key and marks it most recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).audio, true
}

// Has reports whether key is cached without refreshing its recency.
func (c *Cache) Has(key string) bool {
	_, ok := c.items[key]
	return ok
}

// Set stores audio under key, evicting the least-recently-used entry when
// the cache is at capacity.
func (c *Cache) Set(key string, audio []byte) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).audio = audio
		return
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, audio: audio})
	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Clear drops every entry. Called whenever the active document changes so
// audio never bleeds across sessions that share sentence text.
func (c *Cache) Clear() {
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.ll.Len() }

func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	ent := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, ent.key)
	if c.OnEvict != nil {
		c.OnEvict(ent.key)
	}
}
