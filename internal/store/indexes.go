package store

import (
	"database/sql"
	"fmt"

	"archi/internal/logging"
)

// ensureIndexIfColumn creates an index only if both the table and column
// already exist, so it is safe to call against a store opened at an older
// schema version.
func ensureIndexIfColumn(db *sql.DB, table, column, indexName string) {
	if db == nil {
		return
	}
	if !tableExists(db, table) || !columnExists(db, table, column) {
		return
	}
	query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);", indexName, table, column)
	if _, err := db.Exec(query); err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to create index %s on %s(%s): %v", indexName, table, column, err)
	}
}

func ensureMemoryIndexes(db *sql.DB) {
	ensureIndexIfColumn(db, "memory_entries", "kind", "idx_memory_kind")
	ensureIndexIfColumn(db, "memory_entries", "created_at", "idx_memory_created")
	ensureIndexIfColumn(db, "cache_entries", "fingerprint", "idx_cache_fingerprint")
	ensureIndexIfColumn(db, "cache_entries", "expires_at", "idx_cache_expires")
}
