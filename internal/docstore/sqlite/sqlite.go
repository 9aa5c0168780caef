// Package sqlite is the default local engine for the document store.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/memoryvault/memory-vault/internal/docstore"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var dialect = docstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			chat_id    TEXT,
			date       TEXT,
			body       TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
		`CREATE INDEX IF NOT EXISTS documents_chat_id_idx ON documents(collection, chat_id);`,
		`CREATE INDEX IF NOT EXISTS documents_date_idx ON documents(collection, date);`,
		`CREATE INDEX IF NOT EXISTS documents_chat_id_date_idx ON documents(collection, chat_id, date);`,
	},
	BodyParam:  "?",
	BodySelect: "body",
}

// Open opens (or creates) the database at path with WAL journaling.
func Open(path string) (*sql.DB, error) {
	if path != MemoryPath {
		// avoid SQLITE_CANTOPEN when the data dir does not exist yet
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: in-memory databases are per connection, and sqlite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New returns a document store backed by the database at path.
func New(path string) (*docstore.SQLStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB) *docstore.SQLStore {
	return docstore.NewSQLStore(db, dialect)
}
