// Package catalog is a read-only DataStore backed by SQLite. It serves
// externally curated entries such as the listed license catalog: entries are
// loaded once with Import and are never created, mutated or generated
// through the store contract.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/modelstore/internal/store"
)

// Store is the SQLite-backed catalog.
type Store struct {
	db       *sql.DB
	txMu     sync.RWMutex
	registry store.TypeRegistry
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry sets the type registry used by the assignability checks.
func WithRegistry(reg store.TypeRegistry) Option {
	return func(s *Store) {
		s.registry = reg
	}
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the catalog tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ordinal is -1 for scalar properties and the member position for
// collection properties.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS items (
  id              TEXT PRIMARY KEY COLLATE NOCASE,
  type            TEXT NOT NULL,
  spec_version    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS properties (
  item_id         TEXT NOT NULL COLLATE NOCASE REFERENCES items(id) ON DELETE CASCADE,
  namespace       TEXT NOT NULL,
  name            TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  value           TEXT NOT NULL,
  ref_type        TEXT NOT NULL DEFAULT '',
  ref_spec        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_properties_item ON properties(item_id, namespace, name, ordinal);
CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);
`

// GetMetadata returns a metadata value, or "" if the key is absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata: %w", err)
	}
	return value, nil
}

// SetMetadata stores a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}
	return nil
}

// IsListed reports whether id is a catalog entry, either by full identifier
// or by bare license identifier such as "MIT". It satisfies
// store.ListedChecker.
func (s *Store) IsListed(id string) bool {
	if id == "" {
		return false
	}
	return s.Exists(id) || s.Exists(LicenseNamespace+id)
}

// Resolve returns the entry for a full identifier or a bare license
// identifier.
func (s *Store) Resolve(id string) (store.TypedRef, error) {
	ref, err := s.GetTypedRef(id)
	if errors.Is(err, store.ErrNotFound) && !strings.Contains(id, "/") {
		return s.GetTypedRef(LicenseNamespace + id)
	}
	return ref, err
}
