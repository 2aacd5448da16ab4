package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"archi/internal/logging"
)

// ErrCacheEntryNotFound is returned by GetCacheEntry on a cache miss.
var ErrCacheEntryNotFound = errors.New("store: cache entry not found")

// CacheRecord is the durable-tier shape of a Response Cache entry,
// keyed by the caller's completion-request fingerprint.
type CacheRecord struct {
	Fingerprint string
	Response    string
	ModelUsed   string
	CostUSD     float64
	CachedAt    time.Time
	ExpiresAt   time.Time
}

// PutCacheEntry writes or replaces the durable record for fingerprint.
// The in-memory Response Cache tier calls this on every miss-then-fill
// so a process restart keeps whatever entries haven't expired yet.
func (s *Store) PutCacheEntry(rec CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (fingerprint, response, model_used, cost_usd, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			response = excluded.response,
			model_used = excluded.model_used,
			cost_usd = excluded.cost_usd,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, rec.Fingerprint, rec.Response, rec.ModelUsed, rec.CostUSD, rec.CachedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry returns the durable record for fingerprint regardless
// of whether it has expired; callers check ExpiresAt themselves so a
// stale-but-present row can still inform eviction decisions.
func (s *Store) GetCacheEntry(fingerprint string) (CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rec CacheRecord
	rec.Fingerprint = fingerprint
	err := s.db.QueryRow(`
		SELECT response, model_used, cost_usd, cached_at, expires_at
		FROM cache_entries WHERE fingerprint = ?
	`, fingerprint).Scan(&rec.Response, &rec.ModelUsed, &rec.CostUSD, &rec.CachedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheRecord{}, ErrCacheEntryNotFound
	}
	if err != nil {
		return CacheRecord{}, fmt.Errorf("get cache entry: %w", err)
	}
	return rec, nil
}

// DeleteExpiredCacheEntries removes every durable row whose expiry has
// passed as of now, mirroring the in-memory tier's own TTL eviction.
func (s *Store) DeleteExpiredCacheEntries(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM cache_entries WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.CacheDebug("evicted %d expired durable cache entries", n)
	}
	return int(n), nil
}
