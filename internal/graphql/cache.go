package graphql

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"socialfeed/internal/observability"
)

// Listener is notified with the names of the queries evicted by an invalidation.
type Listener func(queries []string)

// DefaultCacheTTL bounds how long a response is served without asking the
// server again.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	query    string
	data     json.RawMessage
	storedAt time.Time
}

// Cache holds query responses keyed by operation name plus canonical
// variables. Entries are evicted by operation name, across all variables,
// and expire after the TTL.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	ttl       time.Duration
	now       func() time.Time
	gens      map[string]uint64
	epoch     uint64
	listeners map[int]Listener
	nextID    int
}

func NewCache() *Cache {
	return NewCacheWithTTL(DefaultCacheTTL)
}

// NewCacheWithTTL creates a cache whose entries expire after ttl. A ttl of
// zero or less keeps entries until they are invalidated.
func NewCacheWithTTL(ttl time.Duration) *Cache {
	return &Cache{
		entries:   make(map[string]cacheEntry),
		ttl:       ttl,
		now:       time.Now,
		gens:      make(map[string]uint64),
		listeners: make(map[int]Listener),
	}
}

// CacheKey builds the cache key for an operation and its variables.
// encoding/json writes map keys sorted, which makes the key canonical.
func CacheKey(operation string, variables map[string]any) string {
	if len(variables) == 0 {
		return operation
	}
	raw, err := json.Marshal(variables)
	if err != nil {
		return operation
	}
	return operation + ":" + string(raw)
}

func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	expired := ok && c.ttl > 0 && c.now().Sub(entry.storedAt) >= c.ttl
	c.mu.RUnlock()

	result := "miss"
	switch {
	case expired:
		result = "expired"
		ok = false
	case ok:
		result = "hit"
	}
	observability.CacheLookups.WithLabelValues(queryOf(key, entry), result).Inc()

	if !ok {
		return nil, false
	}
	return entry.data, true
}

func (c *Cache) Put(key, query string, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{query: query, data: data, storedAt: c.now()}
}

// Generation changes whenever query is invalidated or the cache is cleared.
// Capture it before a request and pass it to PutIfCurrent.
func (c *Cache) Generation(query string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch + c.gens[query]
}

// PutIfCurrent stores data only if query was not invalidated, and the cache
// not cleared, since gen was captured. It reports whether data was stored.
func (c *Cache) PutIfCurrent(key, query string, data json.RawMessage, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.gens[query] != gen {
		return false
	}
	c.entries[key] = cacheEntry{query: query, data: data, storedAt: c.now()}
	return true
}

// Invalidate evicts every entry belonging to the named queries and notifies
// listeners, even when nothing was cached, so views holding their own copy
// can refetch. It returns the number of evicted entries.
func (c *Cache) Invalidate(queries ...string) int {
	if len(queries) == 0 {
		return 0
	}

	names := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		names[q] = struct{}{}
	}

	c.mu.Lock()
	for q := range names {
		c.gens[q]++
	}
	evicted := 0
	for key, entry := range c.entries {
		if _, ok := names[entry.query]; ok {
			delete(c.entries, key)
			observability.CacheEvictions.WithLabelValues(entry.query).Inc()
			evicted++
		}
	}
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	sorted := append([]string(nil), queries...)
	sort.Strings(sorted)
	for _, l := range listeners {
		l(sorted)
	}
	return evicted
}

// Clear drops every entry. Used when the signed-in identity changes.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.epoch++
}

// Len reports the number of cached responses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Subscribe registers l for invalidation notices and returns its cancel func.
func (c *Cache) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// caller holds c.mu
func (c *Cache) snapshotListeners() []Listener {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.listeners[id])
	}
	return out
}

func queryOf(key string, entry cacheEntry) string {
	if entry.query != "" {
		return entry.query
	}
	name, _, _ := strings.Cut(key, ":")
	return name
}
