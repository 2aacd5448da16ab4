// Package cache implements the Response Cache: a fingerprint-keyed,
// TTL-bounded, size-bounded cache of prior completions with a
// single-flight guarantee so concurrent callers for the same prompt
// never drive more than one provider call.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"archi/internal/logging"
	"archi/internal/store"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached completion, keyed by fingerprint.
type Entry struct {
	Response     string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CreatedAt    time.Time
}

// Stats is the Response Cache's telemetry snapshot.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// durableStore is the persistence contract for the optional durable
// tier, satisfied by *store.Store.
type durableStore interface {
	PutCacheEntry(rec store.CacheRecord) error
	GetCacheEntry(fingerprint string) (store.CacheRecord, error)
}

type entryNode struct {
	fingerprint string
	entry       Entry
}

// Cache is the Response Cache. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	hits     int64
	misses   int64
	flight   singleflight.Group
	durable  durableStore
}

// New creates a Response Cache with the given TTL and maximum entry
// count; a non-positive TTL selects one hour and a non-positive size
// selects 1000 entries. durable may be nil, disabling the durable tier.
func New(ttl time.Duration, maxSize int, durable durableStore) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		durable: durable,
	}
}

// Fingerprint returns the stable content hash for prompt text used as
// the cache key, per spec.md's Completion Request definition.
func Fingerprint(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached entry for fingerprint if present and
// unexpired, promoting it to most-recently-used. It falls through to
// the durable tier on an in-memory miss before reporting a miss.
func (c *Cache) Get(fingerprint string) (Entry, bool) {
	c.mu.Lock()
	if el, ok := c.entries[fingerprint]; ok {
		node := el.Value.(*entryNode)
		if time.Since(node.entry.CreatedAt) < c.ttl {
			c.order.MoveToFront(el)
			c.hits++
			entry := node.entry
			c.mu.Unlock()
			logging.CacheDebug("hit for fingerprint %s", shortFingerprint(fingerprint))
			return entry, true
		}
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if c.durable != nil {
		if rec, ok := c.getDurable(fingerprint); ok {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return rec, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	logging.CacheDebug("miss for fingerprint %s", shortFingerprint(fingerprint))
	return Entry{}, false
}

func (c *Cache) getDurable(fingerprint string) (Entry, bool) {
	rec, err := c.durable.GetCacheEntry(fingerprint)
	if err != nil {
		return Entry{}, false
	}
	if time.Now().After(rec.ExpiresAt) {
		return Entry{}, false
	}
	provider, model := splitModelUsed(rec.ModelUsed)
	entry := Entry{
		Response:  rec.Response,
		Provider:  provider,
		Model:     model,
		CreatedAt: rec.CachedAt,
	}
	c.mu.Lock()
	c.insertLocked(fingerprint, entry)
	c.mu.Unlock()
	logging.CacheDebug("durable hit for fingerprint %s", shortFingerprint(fingerprint))
	return entry, true
}

// Set inserts or replaces the entry for fingerprint, evicting the
// least-recently-used entry if the cache is at capacity. When a
// durable tier is configured, the entry is also written to disk.
func (c *Cache) Set(fingerprint string, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c.mu.Lock()
	c.insertLocked(fingerprint, entry)
	c.mu.Unlock()

	if c.durable != nil {
		rec := store.CacheRecord{
			Fingerprint: fingerprint,
			Response:    entry.Response,
			ModelUsed:   entry.Provider + "/" + entry.Model,
			CachedAt:    entry.CreatedAt,
			ExpiresAt:   entry.CreatedAt.Add(c.ttl),
		}
		if err := c.durable.PutCacheEntry(rec); err != nil {
			logging.Cache("failed to persist durable cache entry: %v", err)
		}
	}
}

func (c *Cache) insertLocked(fingerprint string, entry Entry) {
	if el, ok := c.entries[fingerprint]; ok {
		el.Value.(*entryNode).entry = entry
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entryNode{fingerprint: fingerprint, entry: entry})
	c.entries[fingerprint] = el
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	node := el.Value.(*entryNode)
	delete(c.entries, node.fingerprint)
	c.order.Remove(el)
}

// ClearAll drops every entry from the in-memory tier.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	logging.Cache("cache cleared (%d entries removed)", n)
}

// Stats returns hit/miss/size telemetry.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries), HitRate: hitRate}
}

// GetOrFill returns the cached entry for fingerprint, or calls fill to
// produce one if absent, coordinating concurrent callers for the same
// fingerprint so fill runs at most once at a time per key (spec.md's
// single-flight requirement for the Response Cache).
func (c *Cache) GetOrFill(fingerprint string, fill func() (Entry, error)) (Entry, error, bool) {
	if entry, ok := c.Get(fingerprint); ok {
		return entry, nil, true
	}
	v, err, shared := c.flight.Do(fingerprint, func() (interface{}, error) {
		entry, err := fill()
		if err != nil {
			return Entry{}, err
		}
		c.Set(fingerprint, entry)
		return entry, nil
	})
	if err != nil {
		return Entry{}, err, shared
	}
	return v.(Entry), nil, shared
}

// splitModelUsed reverses the "provider/model" join Set writes into the
// durable tier's single ModelUsed column.
func splitModelUsed(modelUsed string) (provider, model string) {
	idx := strings.Index(modelUsed, "/")
	if idx < 0 {
		return modelUsed, ""
	}
	return modelUsed[:idx], modelUsed[idx+1:]
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
