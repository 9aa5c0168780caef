// Package docstore is the local document store: JSON documents grouped in
// collections, keyed by "id", with secondary indexes on "chatId", "date" and
// the compound (chatId, date).
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/memoryvault/memory-vault/internal/model"
)

// Collection names a logical group of documents.
type Collection string

const (
	Chats          Collection = "chats"
	JournalEntries Collection = "journalEntries"
)

// Collections lists every collection known to the store, in export order.
var Collections = []Collection{Chats, JournalEntries}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Index names a secondary index.
type Index string

const (
	ByChatID     Index = "chatId"
	ByDate       Index = "date"
	ByChatIDDate Index = "chatId_date"
)

// Arity is the number of key parts the index is built from, 0 for unknown indexes.
func (i Index) Arity() int {
	switch i {
	case ByChatID, ByDate:
		return 1
	case ByChatIDDate:
		return 2
	default:
		return 0
	}
}

// KeyRange selects index values. A nil bound is unbounded. Compound values
// compare part by part.
type KeyRange struct {
	Lower     []string
	Upper     []string
	LowerOpen bool
	UpperOpen bool
}

// Only matches index values equal to values.
func Only(values ...string) KeyRange {
	return KeyRange{Lower: values, Upper: values}
}

// Bound matches values between lower and upper.
func Bound(lower, upper []string, lowerOpen, upperOpen bool) KeyRange {
	return KeyRange{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
}

// LowerBound matches values at or above lower (strictly above when open).
func LowerBound(lower []string, open bool) KeyRange {
	return KeyRange{Lower: lower, LowerOpen: open}
}

// UpperBound matches values at or below upper (strictly below when open).
func UpperBound(upper []string, open bool) KeyRange {
	return KeyRange{Upper: upper, UpperOpen: open}
}

// IsOnly reports whether r is an exact match.
func (r KeyRange) IsOnly() bool {
	if r.Lower == nil || r.Upper == nil || r.LowerOpen || r.UpperOpen || len(r.Lower) != len(r.Upper) {
		return false
	}
	for i := range r.Lower {
		if r.Lower[i] != r.Upper[i] {
			return false
		}
	}
	return true
}

func (r KeyRange) check(idx Index) error {
	n := idx.Arity()
	if n == 0 {
		return fmt.Errorf("unknown index %q", idx)
	}
	if r.Lower == nil && r.Upper == nil {
		return fmt.Errorf("empty key range for index %q", idx)
	}
	if r.Lower != nil && len(r.Lower) != n {
		return fmt.Errorf("index %q expects %d key parts, lower bound has %d", idx, n, len(r.Lower))
	}
	if r.Upper != nil && len(r.Upper) != n {
		return fmt.Errorf("index %q expects %d key parts, upper bound has %d", idx, n, len(r.Upper))
	}
	return nil
}

// Reader holds the read primitives.
type Reader interface {
	// Get decodes the document stored under key into out. A missing key is
	// reported as found=false with a nil error.
	Get(ctx context.Context, coll Collection, key string, out any) (bool, error)
	GetAll(ctx context.Context, coll Collection) ([]json.RawMessage, error)
	QueryByIndex(ctx context.Context, coll Collection, idx Index, r KeyRange) ([]json.RawMessage, error)
	Count(ctx context.Context, coll Collection) (int, error)
}

// Writer holds the write primitives. Put upserts by the document's "id".
type Writer interface {
	Put(ctx context.Context, coll Collection, doc any) error
	Delete(ctx context.Context, coll Collection, key string) error
	Clear(ctx context.Context, coll Collection) error
}

// Tx is the view of the store handed to Update callbacks.
type Tx interface {
	Reader
	Writer
}

// Store is implemented by every storage engine (sqlite, postgres).
type Store interface {
	Tx
	// Update runs fn inside a single storage transaction. Returning an error
	// from fn rolls every write back.
	Update(ctx context.Context, fn func(tx Tx) error) error
	ExportAll(ctx context.Context) (*Snapshot, error)
	// ImportAll validates snap and replaces all data with its contents.
	ImportAll(ctx context.Context, snap *Snapshot) error
	Ping(ctx context.Context) error
	Close() error
}

// SnapshotVersion is the newest backup format this store understands.
const SnapshotVersion = 1

// Snapshot is the full-database dump used for backups.
type Snapshot struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	Data       SnapshotData `json:"data"`
}

// SnapshotData holds one array per collection.
type SnapshotData struct {
	Chats          []json.RawMessage `json:"chats"`
	JournalEntries []json.RawMessage `json:"journalEntries"`
}

// Documents returns the documents of coll.
func (d SnapshotData) Documents(coll Collection) []json.RawMessage {
	switch coll {
	case Chats:
		return d.Chats
	case JournalEntries:
		return d.JournalEntries
	}
	return nil
}

// Validate checks the version marker and required keys.
func (s *Snapshot) Validate() error {
	if s == nil {
		return model.NewValidationError("snapshot", "is empty")
	}
	if s.Version < 1 {
		return model.NewValidationError("version", "missing or invalid version marker %d", s.Version)
	}
	if s.Version > SnapshotVersion {
		return model.NewValidationError("version", "backup version %d is newer than supported version %d", s.Version, SnapshotVersion)
	}
	if s.Data.Chats == nil {
		return model.NewValidationError("data.chats", "required key is missing")
	}
	if s.Data.JournalEntries == nil {
		return model.NewValidationError("data.journalEntries", "required key is missing")
	}
	return nil
}

// DecodeAll unmarshals every raw document into a slice of T.
func DecodeAll[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
