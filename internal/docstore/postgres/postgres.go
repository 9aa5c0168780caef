// Package postgres is the server-grade engine for the document store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/memoryvault/memory-vault/internal/docstore"
)

var dialect = docstore.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			chat_id    TEXT,
			date       TEXT,
			body       JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_chat_id_idx ON documents(collection, chat_id)`,
		`CREATE INDEX IF NOT EXISTS documents_date_idx ON documents(collection, date)`,
		`CREATE INDEX IF NOT EXISTS documents_chat_id_date_idx ON documents(collection, chat_id, date)`,
	},
	BodyParam:  "CAST(? AS JSONB)",
	BodySelect: "body::text",
	Numbered:   true,
}

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens dsn and returns a document store on top of it.
func New(dsn string) (*docstore.SQLStore, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB) *docstore.SQLStore {
	return docstore.NewSQLStore(db, dialect)
}

// Bootstrap checks that Postgres is reachable. The schema itself is created
// lazily by the store.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.PingContext(ctx)
}
