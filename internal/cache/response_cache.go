package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/observability"
)

// keyPrefixLength bounds how much of the input feeds the cache key. The key
// is deliberately lossy so near-duplicate screening inputs collapse to the
// same entry.
const keyPrefixLength = 200

type entry struct {
	key        string
	response   map[string]any
	insertedAt time.Time
}

// ResponseCache is an LRU cache with TTL for AI-tier results. A Get hit
// moves the entry to most-recently-used; expired entries are evicted lazily
// on read. Hit/miss counters are observability only.
type ResponseCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List // front = most recently used
	index      map[string]*list.Element
	hits       int
	misses     int
	logger     zerolog.Logger

	// now is swappable for TTL tests
	now func() time.Time
}

// New creates a response cache with the given capacity and TTL
func New(maxEntries int, ttl time.Duration, logger zerolog.Logger) *ResponseCache {
	return &ResponseCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		index:      make(map[string]*list.Element),
		logger:     logger,
		now:        time.Now,
	}
}

// makeKey derives the deterministic, case/whitespace-normalized lossy key.
// The prefix is counted in runes so a multi-byte character is never split.
func makeKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if runes := []rune(normalized); len(runes) > keyPrefixLength {
		normalized = string(runes[:keyPrefixLength])
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Get looks up a cached response. Expired hits count as misses and are
// evicted. A live hit becomes the most-recently-used entry.
func (c *ResponseCache) Get(text string) (map[string]any, bool) {
	key := makeKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.misses++
		observability.RecordCacheLookup(false)
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.index, key)
		c.misses++
		observability.RecordCacheLookup(false)
		c.logger.Debug().Str("key", key[:8]).Msg("Cache entry expired")
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	observability.RecordCacheLookup(true)
	return e.response, true
}

// Put stores a response, evicting the least-recently-used entry when at
// capacity.
func (c *ResponseCache) Put(text string, response map[string]any) {
	key := makeKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		e := elem.Value.(*entry)
		e.response = response
		e.insertedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.index, evicted.key)
		c.logger.Debug().Str("key", evicted.key[:8]).Msg("Cache entry evicted")
	}

	c.index[key] = c.order.PushFront(&entry{
		key:        key,
		response:   response,
		insertedAt: c.now(),
	})
}

// Clear removes all entries
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
	c.mu.Unlock()
}

// Size returns the current number of entries
func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit/miss counters for monitoring
func (c *ResponseCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
