package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrSecretsDisabled is returned by secret methods when the store was opened
// without an encryption key.
var ErrSecretsDisabled = errors.New("secret storage is disabled (no encryption key configured)")

// SQLiteStore persists listings, images, the usage ledger, settings and the
// analysis cache in a single SQLite database.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at dbPath. encryptionKey may
// be nil, in which case secrets cannot be stored.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// WAL and busy timeout for concurrent uploads; foreign keys per connection
	// so image rows cascade with their listing.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to set database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	tables := []struct {
		name  string
		query string
	}{
		{"listings", `
		CREATE TABLE IF NOT EXISTS listings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`},
		{"images", `
		CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			listing_id INTEGER NOT NULL,
			filename TEXT NOT NULL UNIQUE,
			mime_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			state TEXT NOT NULL,
			analysis TEXT,
			created_at DATETIME NOT NULL,
			analyzed_at DATETIME,
			FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_images_listing ON images(listing_id, id);`},
		{"usage_records", `
		CREATE TABLE IF NOT EXISTS usage_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			listing_id INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			estimated INTEGER NOT NULL DEFAULT 0,
			input_cost TEXT NOT NULL DEFAULT '0',
			output_cost TEXT NOT NULL DEFAULT '0',
			currency TEXT NOT NULL DEFAULT 'USD',
			success INTEGER NOT NULL DEFAULT 1,
			created_at_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_records(created_at_ms);`},
		{"settings", `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`},
		{"secrets", `
		CREATE TABLE IF NOT EXISTS secrets (
			name TEXT PRIMARY KEY,
			encrypted_value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`},
		{"analysis_cache", `
		CREATE TABLE IF NOT EXISTS analysis_cache (
			cache_key TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`},
	}

	for _, t := range tables {
		if _, err := s.db.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
