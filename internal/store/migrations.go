package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"archi/internal/logging"
)

// CurrentSchemaVersion is the schema version this build expects.
// v1: preferences, cache_entries, memory_entries, vec_index.
const CurrentSchemaVersion = 1

// Migration describes one additive column applied to an existing table
// if the column is missing. Used to carry a store forward between
// builds without a destructive rebuild.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists additive schema changes applied on every Open.
// Empty at v1; future columns land here instead of in the CREATE TABLE
// statements in store.go, so existing databases pick them up in place.
var pendingMigrations = []Migration{}

// RunMigrations applies any pending additive migrations. Missing tables
// are skipped quietly rather than treated as an error, since a fresh
// store created by Open's initialize() won't need any of them yet.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied, skipped := 0, 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			skipped++
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			skipped++
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			logging.Get(logging.CategoryStore).Warn("migration failed %s.%s: %v", m.Table, m.Column, err)
			skipped++
			continue
		}
		applied++
	}
	if applied > 0 || skipped > 0 {
		logging.StoreDebug("migrations: applied=%d skipped=%d", applied, skipped)
	}
	if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return err
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

// GetSchemaVersion returns the version recorded in schema_versions, or 0
// if the store predates that table.
func GetSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "schema_versions") {
		return 0
	}
	var version int
	if err := db.QueryRow("SELECT version FROM schema_versions ORDER BY applied_at DESC LIMIT 1").Scan(&version); err != nil {
		return 0
	}
	return version
}

// SetSchemaVersion records a new applied schema version.
func SetSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}
	if GetSchemaVersion(db) == version {
		return nil
	}
	_, err := db.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)",
		version, fmt.Sprintf("migrated to schema version %d", version))
	return err
}

// CreateBackup copies the database file to a timestamped sibling path.
func CreateBackup(dbPath string) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateBackup")
	defer timer.Stop()

	backupPath := dbPath + ".backup_" + time.Now().Format("20060102_150405")

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy database to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("sync backup: %w", err)
	}
	logging.Store("database backup created: %s", backupPath)
	return backupPath, nil
}

// RestoreBackup overwrites dbPath with the contents of a prior backup.
func RestoreBackup(dbPath, backupPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	return dst.Sync()
}
