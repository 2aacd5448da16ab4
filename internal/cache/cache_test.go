package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archi/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Hour, 10, nil)
	fp := Fingerprint("hello world")

	_, ok := c.Get(fp)
	assert.False(t, ok)

	c.Set(fp, Entry{Response: "hi there", Provider: "local"})

	entry, ok := c.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "hi there", entry.Response)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_Expiry(t *testing.T) {
	c := New(10*time.Millisecond, 10, nil)
	fp := Fingerprint("expiring")
	c.Set(fp, Entry{Response: "soon gone"})

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get(fp)
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(time.Hour, 2, nil)
	c.Set("a", Entry{Response: "a"})
	c.Set("b", Entry{Response: "b"})

	// touch "a" so "b" becomes least-recently-used
	c.Get("a")
	c.Set("c", Entry{Response: "c"})

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_ClearAll(t *testing.T) {
	c := New(time.Hour, 10, nil)
	c.Set("a", Entry{Response: "a"})
	c.Set("b", Entry{Response: "b"})

	c.ClearAll()

	assert.Equal(t, 0, c.Stats().Size)
}

func TestCache_GetOrFill_SingleFlight(t *testing.T) {
	c := New(time.Hour, 10, nil)
	var calls int32

	fill := func() (Entry, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return Entry{Response: "filled"}, nil
	}

	var wg sync.WaitGroup
	results := make([]Entry, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err, _ := c.GetOrFill("shared-key", fill)
			require.NoError(t, err)
			results[i] = entry
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "filled", r.Response)
	}
}

func TestCache_GetOrFill_Error(t *testing.T) {
	c := New(time.Hour, 10, nil)
	_, err, _ := c.GetOrFill("bad-key", func() (Entry, error) {
		return Entry{}, errors.New("provider exploded")
	})
	assert.Error(t, err)

	_, ok := c.Get("bad-key")
	assert.False(t, ok, "a failed fill must not populate the cache")
}

type fakeDurableStore struct {
	mu      sync.Mutex
	records map[string]store.CacheRecord
}

func newFakeDurableStore() *fakeDurableStore {
	return &fakeDurableStore{records: make(map[string]store.CacheRecord)}
}

func (f *fakeDurableStore) PutCacheEntry(rec store.CacheRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.Fingerprint] = rec
	return nil
}

func (f *fakeDurableStore) GetCacheEntry(fingerprint string) (store.CacheRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[fingerprint]
	if !ok {
		return store.CacheRecord{}, store.ErrCacheEntryNotFound
	}
	return rec, nil
}

func TestCache_DurableFallthrough(t *testing.T) {
	durable := newFakeDurableStore()
	c1 := New(time.Hour, 10, durable)
	c1.Set("fp", Entry{Response: "persisted", Provider: "gemini"})

	// a fresh in-memory cache backed by the same durable store should
	// still resolve the entry on its first Get.
	c2 := New(time.Hour, 10, durable)
	entry, ok := c2.Get("fp")
	require.True(t, ok)
	assert.Equal(t, "persisted", entry.Response)
}
