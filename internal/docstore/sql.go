package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/memoryvault/memory-vault/internal/model"
)

// Dialect captures the differences between SQL engines.
type Dialect struct {
	Name string
	// Schema is executed once, statement by statement. Every statement must
	// be idempotent (IF NOT EXISTS).
	Schema []string
	// BodyParam is the placeholder expression used when writing the body.
	BodyParam string
	// BodySelect is the expression used when reading the body back as text.
	BodySelect string
	// Numbered switches "?" placeholders to $1, $2, ...
	Numbered bool
}

func (d Dialect) rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on top of database/sql. Engines supply the
// connection and a Dialect.
type SQLStore struct {
	ops
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewSQLStore wraps db. The schema is created lazily on first use.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	s := &SQLStore{db: db}
	s.ops = ops{q: db, d: d, ensure: s.ensureSchema}
	return s
}

// DB exposes the underlying handle (health probes).
func (s *SQLStore) DB() *sql.DB { return s.db }

// ensureSchema runs the DDL until it succeeds once; a failed attempt (for
// example a cancelled context) is retried by the next caller.
func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	for _, stmt := range s.d.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.Name, err)
		}
	}
	s.schemaReady = true
	return nil
}

// Update implements Store.
func (s *SQLStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := s.ensureSchema(ctx); err != nil {
		return storageErr("update", "", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ops{q: tx, d: s.d, ensure: noEnsure}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", "", err)
	}
	return nil
}

// ExportAll implements Store.
func (s *SQLStore) ExportAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: time.Now().UTC(),
		Data: SnapshotData{
			Chats:          []json.RawMessage{},
			JournalEntries: []json.RawMessage{},
		},
	}
	chats, err := s.GetAll(ctx, Chats)
	if err != nil {
		return nil, err
	}
	entries, err := s.GetAll(ctx, JournalEntries)
	if err != nil {
		return nil, err
	}
	snap.Data.Chats = append(snap.Data.Chats, chats...)
	snap.Data.JournalEntries = append(snap.Data.JournalEntries, entries...)
	return snap, nil
}

// ImportAll implements Store.
func (s *SQLStore) ImportAll(ctx context.Context, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.Update(ctx, func(tx Tx) error {
		for _, coll := range Collections {
			if err := tx.Clear(ctx, coll); err != nil {
				return err
			}
			for i, raw := range snap.Data.Documents(coll) {
				if err := tx.Put(ctx, coll, raw); err != nil {
					return fmt.Errorf("import %s[%d]: %w", coll, i, err)
				}
			}
		}
		return nil
	})
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", "", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }

// ops carries the primitives shared by the store and its transactions.
type ops struct {
	q      querier
	d      Dialect
	ensure func(context.Context) error
}

func noEnsure(context.Context) error { return nil }

func (o ops) prepare(ctx context.Context, op string, coll Collection) error {
	if !coll.Valid() {
		return storageErr(op, string(coll), fmt.Errorf("unknown collection"))
	}
	if err := o.ensure(ctx); err != nil {
		return storageErr(op, string(coll), err)
	}
	return nil
}

func (o ops) Put(ctx context.Context, coll Collection, doc any) error {
	if err := o.prepare(ctx, "put", coll); err != nil {
		return err
	}
	k, err := extractKeys(doc)
	if err != nil {
		return storageErr("put", string(coll), err)
	}
	q := o.d.rebind(`INSERT INTO documents (collection, id, chat_id, date, body)
		VALUES (?, ?, ?, ?, ` + o.d.BodyParam + `)
		ON CONFLICT (collection, id) DO UPDATE
		SET chat_id = excluded.chat_id, date = excluded.date, body = excluded.body`)
	if _, err := o.q.ExecContext(ctx, q, string(coll), k.id, k.chatID, k.date, string(k.body)); err != nil {
		return storageErr("put", string(coll), err)
	}
	return nil
}

func (o ops) Get(ctx context.Context, coll Collection, key string, out any) (bool, error) {
	if err := o.prepare(ctx, "get", coll); err != nil {
		return false, err
	}
	q := o.d.rebind(`SELECT ` + o.d.BodySelect + ` FROM documents WHERE collection = ? AND id = ?`)
	var body string
	err := o.q.QueryRowContext(ctx, q, string(coll), key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get", string(coll), err)
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return false, storageErr("get", string(coll), err)
	}
	return true, nil
}

func (o ops) GetAll(ctx context.Context, coll Collection) ([]json.RawMessage, error) {
	if err := o.prepare(ctx, "getAll", coll); err != nil {
		return nil, err
	}
	q := o.d.rebind(`SELECT ` + o.d.BodySelect + ` FROM documents WHERE collection = ? ORDER BY id`)
	return o.queryBodies(ctx, "getAll", coll, q, string(coll))
}

func (o ops) QueryByIndex(ctx context.Context, coll Collection, idx Index, r KeyRange) ([]json.RawMessage, error) {
	if err := o.prepare(ctx, "queryByIndex", coll); err != nil {
		return nil, err
	}
	if err := r.check(idx); err != nil {
		return nil, storageErr("queryByIndex", string(coll), err)
	}
	cols := indexColumns(idx)
	where := []string{"collection = ?"}
	args := []any{string(coll)}
	for _, c := range cols {
		where = append(where, c+" IS NOT NULL")
	}
	key := "(" + strings.Join(cols, ", ") + ")"
	if len(cols) == 1 {
		key = cols[0]
	}
	addBound := func(op string, values []string) {
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		if len(values) > 1 {
			ph = "(" + ph + ")"
		}
		where = append(where, key+" "+op+" "+ph)
		for _, v := range values {
			args = append(args, v)
		}
	}
	switch {
	case r.IsOnly():
		addBound("=", r.Lower)
	default:
		if r.Lower != nil {
			addBound(cmp(">", r.LowerOpen), r.Lower)
		}
		if r.Upper != nil {
			addBound(cmp("<", r.UpperOpen), r.Upper)
		}
	}
	q := o.d.rebind(`SELECT ` + o.d.BodySelect + ` FROM documents WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + strings.Join(cols, ", ") + `, id`)
	return o.queryBodies(ctx, "queryByIndex", coll, q, args...)
}

func (o ops) Count(ctx context.Context, coll Collection) (int, error) {
	if err := o.prepare(ctx, "count", coll); err != nil {
		return 0, err
	}
	var n int
	q := o.d.rebind(`SELECT COUNT(*) FROM documents WHERE collection = ?`)
	if err := o.q.QueryRowContext(ctx, q, string(coll)).Scan(&n); err != nil {
		return 0, storageErr("count", string(coll), err)
	}
	return n, nil
}

func (o ops) Delete(ctx context.Context, coll Collection, key string) error {
	if err := o.prepare(ctx, "delete", coll); err != nil {
		return err
	}
	q := o.d.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`)
	if _, err := o.q.ExecContext(ctx, q, string(coll), key); err != nil {
		return storageErr("delete", string(coll), err)
	}
	return nil
}

func (o ops) Clear(ctx context.Context, coll Collection) error {
	if err := o.prepare(ctx, "clear", coll); err != nil {
		return err
	}
	q := o.d.rebind(`DELETE FROM documents WHERE collection = ?`)
	if _, err := o.q.ExecContext(ctx, q, string(coll)); err != nil {
		return storageErr("clear", string(coll), err)
	}
	return nil
}

func (o ops) queryBodies(ctx context.Context, op string, coll Collection, q string, args ...any) ([]json.RawMessage, error) {
	rows, err := o.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, string(coll), err)
	}
	defer func() { _ = rows.Close() }()

	out := []json.RawMessage{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, storageErr(op, string(coll), err)
		}
		out = append(out, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, string(coll), err)
	}
	return out, nil
}

func cmp(op string, open bool) string {
	if open {
		return op
	}
	return op + "="
}

func indexColumns(idx Index) []string {
	switch idx {
	case ByChatID:
		return []string{"chat_id"}
	case ByDate:
		return []string{"date"}
	default:
		return []string{"chat_id", "date"}
	}
}

type docKeys struct {
	id     string
	chatID *string
	date   *string
	body   []byte
}

// extractKeys serializes doc and reads its primary key and index fields.
func extractKeys(doc any) (docKeys, error) {
	var body []byte
	switch v := doc.(type) {
	case json.RawMessage:
		body = v
	case []byte:
		body = v
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return docKeys{}, err
		}
		body = b
	}
	var fields struct {
		ID     string  `json:"id"`
		ChatID *string `json:"chatId"`
		Date   *string `json:"date"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return docKeys{}, fmt.Errorf("document is not a JSON object: %w", err)
	}
	if fields.ID == "" {
		return docKeys{}, fmt.Errorf("document has no id")
	}
	return docKeys{id: fields.ID, chatID: fields.ChatID, date: fields.Date, body: body}, nil
}

func storageErr(op, coll string, err error) error {
	var se *model.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &model.StorageError{Op: op, Collection: coll, Err: err}
}
