// Package store implements the Typed Persistent Store: a reference
// SQLite-backed persistence layer used as the durable tier for the
// Response Cache and a home for preference and vector-memory data
// that spec.md explicitly keeps out of core scope but that a complete
// agent needs somewhere to live.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"archi/internal/logging"

	_ "modernc.org/sqlite"
)

// Store wraps a single SQLite database holding the reference
// preference table, the Response Cache durable tier, and a
// vector-memory stand-in table backed by the vec0 compat layer.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes (or reuses) the SQLite database at path, running
// any pending schema migrations before returning.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed (%s): %v", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		logging.Get(logging.CategoryStore).Warn("schema migration pass reported an error: %v", err)
	}
	ensureMemoryIndexes(db)

	logging.Store("store opened at %s (schema v%d)", path, GetSchemaVersion(db))
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cache_entries (
		fingerprint TEXT PRIMARY KEY,
		response    TEXT NOT NULL,
		model_used  TEXT NOT NULL DEFAULT '',
		cost_usd    REAL NOT NULL DEFAULT 0,
		cached_at   DATETIME NOT NULL,
		expires_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memory_entries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL DEFAULT 'note',
		content    TEXT NOT NULL,
		embedding  BLOB,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// vec0 is optional: sqlite-vec ANN when built with cgo, the pure-Go
	// compat virtual table otherwise. Either way memory_entries above is
	// the source of truth; vec_index only accelerates similarity search.
	if _, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(
		embedding float[768],
		content TEXT,
		metadata TEXT
	)`); err != nil {
		logging.StoreDebug("vec_index unavailable, falling back to brute-force similarity: %v", err)
	}
	return nil
}

// DB exposes the underlying connection for callers that need direct
// query access.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
