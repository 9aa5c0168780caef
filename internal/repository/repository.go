// Package repository implements chat and journal operations on top of the
// local document store, enforcing the invariants the raw store does not.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/docstore"
	"github.com/memoryvault/memory-vault/internal/model"
)

// AppName prefixes backup file names.
const AppName = "memory_vault"

// Repository is safe for concurrent use; it holds no mutable state of its own.
type Repository struct {
	store docstore.Store
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator replaces the UUID generator (tests).
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

// WithLogger sets the logger used for cascade and import reporting.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// New returns a Repository over store.
func New(store docstore.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying document store.
func (r *Repository) Store() docstore.Store { return r.store }

// --- Chats ---

// SaveChat normalizes chat in place and upserts it. It returns the chat id.
func (r *Repository) SaveChat(ctx context.Context, chat *model.Chat) (string, error) {
	if chat == nil {
		return "", model.NewValidationError("chat", "is nil")
	}
	if chat.ID == "" {
		chat.ID = r.newID()
	}
	Normalize(chat)
	if err := r.store.Put(ctx, docstore.Chats, chat); err != nil {
		return "", err
	}
	r.log.Debug().Str("chat_id", chat.ID).Int("messages", chat.MessageCount).Msg("chat saved")
	return chat.ID, nil
}

// Normalize re-establishes the aggregate invariants: messages ordered by
// timestamp, every message has an id, every sender is a participant, and
// MessageCount and the date bounds match the messages.
func Normalize(chat *model.Chat) {
	sort.SliceStable(chat.Messages, func(i, j int) bool {
		return chat.Messages[i].Timestamp.Before(chat.Messages[j].Timestamp)
	})

	seen := make(map[string]bool, len(chat.Messages))
	for _, m := range chat.Messages {
		if m.ID != "" {
			seen[m.ID] = true
		}
	}
	next := 1
	for i := range chat.Messages {
		m := &chat.Messages[i]
		if m.ID == "" {
			for seen[fmt.Sprintf("msg_%d", next)] {
				next++
			}
			m.ID = fmt.Sprintf("msg_%d", next)
			seen[m.ID] = true
		}
		if m.Sender != "" && !chat.HasParticipant(m.Sender) {
			chat.Participants = append(chat.Participants, m.Sender)
		}
	}
	if chat.Participants == nil {
		chat.Participants = []string{}
	}
	if chat.Messages == nil {
		chat.Messages = []model.Message{}
	}

	chat.MessageCount = len(chat.Messages)
	if n := len(chat.Messages); n > 0 {
		chat.StartDate = chat.Messages[0].Timestamp
		chat.EndDate = chat.Messages[n-1].Timestamp
	} else {
		chat.StartDate, chat.EndDate = time.Time{}, time.Time{}
	}
	if len(chat.Participants) > 2 {
		chat.IsGroup = true
	}
}

// GetChat returns the chat or a *model.NotFoundError.
func (r *Repository) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	found, err := r.store.Get(ctx, docstore.Chats, id, &chat)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &model.NotFoundError{Kind: "chat", ID: id}
	}
	return &chat, nil
}

// GetAllChats returns every stored chat in key order.
func (r *Repository) GetAllChats(ctx context.Context) ([]model.Chat, error) {
	docs, err := r.store.GetAll(ctx, docstore.Chats)
	if err != nil {
		return nil, err
	}
	chats, err := docstore.DecodeAll[model.Chat](docs)
	if err != nil {
		return nil, &model.StorageError{Op: "decode", Collection: string(docstore.Chats), Err: err}
	}
	return chats, nil
}

// DeleteChat removes the chat and its journal entries in one transaction.
// Deleting a missing chat is not an error.
func (r *Repository) DeleteChat(ctx context.Context, id string) error {
	var removed int
	err := r.store.Update(ctx, func(tx docstore.Tx) error {
		n, err := deleteEntriesForChat(ctx, tx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Delete(ctx, docstore.Chats, id)
	})
	if err != nil {
		return err
	}
	r.log.Info().Str("chat_id", id).Int("journal_entries", removed).Msg("chat deleted")
	return nil
}

// HasAnyData reports whether at least one chat is stored.
func (r *Repository) HasAnyData(ctx context.Context) (bool, error) {
	n, err := r.store.Count(ctx, docstore.Chats)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- Journal ---

// SaveJournalEntry validates and upserts entry, returning its id. A new
// entry for a (chatId, date) pair that already has one takes over the
// existing id, so each chat has at most one entry per day.
func (r *Repository) SaveJournalEntry(ctx context.Context, entry *model.JournalEntry) (string, error) {
	if err := ValidateJournalEntry(entry); err != nil {
		return "", err
	}
	err := r.store.Update(ctx, func(tx docstore.Tx) error {
		if entry.ID == "" {
			existing, err := firstEntry(ctx, tx, entry.ChatID, entry.Date)
			if err != nil {
				return err
			}
			if existing != nil {
				entry.ID = existing.ID
			} else {
				entry.ID = r.newID()
			}
		}

		now := r.now().UTC()
		var prev model.JournalEntry
		found, err := tx.Get(ctx, docstore.JournalEntries, entry.ID, &prev)
		if err != nil {
			return err
		}
		if found {
			entry.CreatedAt = prev.CreatedAt
			if !now.After(prev.UpdatedAt) {
				now = prev.UpdatedAt.Add(time.Millisecond)
			}
		} else {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		return tx.Put(ctx, docstore.JournalEntries, entry)
	})
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ValidateJournalEntry checks the fields a journal entry needs before it is stored.
func ValidateJournalEntry(entry *model.JournalEntry) error {
	if entry == nil {
		return model.NewValidationError("entry", "is nil")
	}
	if entry.ChatID == "" {
		return model.NewValidationError("chatId", "is required")
	}
	if _, err := time.Parse(model.DateLayout, entry.Date); err != nil {
		return model.NewValidationError("date", "must be YYYY-MM-DD, got %q", entry.Date)
	}
	if entry.Emotion != nil && (entry.Emotion.Intensity < 1 || entry.Emotion.Intensity > 5) {
		return model.NewValidationError("emotion.intensity", "must be between 1 and 5, got %d", entry.Emotion.Intensity)
	}
	return nil
}

// GetJournalEntry returns the entry or a *model.NotFoundError.
func (r *Repository) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	var e model.JournalEntry
	found, err := r.store.Get(ctx, docstore.JournalEntries, id, &e)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &model.NotFoundError{Kind: "journal entry", ID: id}
	}
	return &e, nil
}

// GetJournalEntryForDate returns the entry for (chatID, date), or nil when
// there is none. Legacy duplicates resolve to the lowest id.
func (r *Repository) GetJournalEntryForDate(ctx context.Context, chatID, date string) (*model.JournalEntry, error) {
	return firstEntry(ctx, r.store, chatID, date)
}

// GetJournalEntriesForChat returns the chat's entries ordered by date.
func (r *Repository) GetJournalEntriesForChat(ctx context.Context, chatID string) ([]model.JournalEntry, error) {
	entries, err := entriesForChat(ctx, r.store, chatID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return entries, nil
}

// DeleteJournalEntry removes one entry; missing ids are ignored.
func (r *Repository) DeleteJournalEntry(ctx context.Context, id string) error {
	return r.store.Delete(ctx, docstore.JournalEntries, id)
}

// DeleteJournalEntriesForChat removes every entry of chatID and reports how many went.
func (r *Repository) DeleteJournalEntriesForChat(ctx context.Context, chatID string) (int, error) {
	var n int
	err := r.store.Update(ctx, func(tx docstore.Tx) error {
		var err error
		n, err = deleteEntriesForChat(ctx, tx, chatID)
		return err
	})
	return n, err
}

func firstEntry(ctx context.Context, rd docstore.Reader, chatID, date string) (*model.JournalEntry, error) {
	docs, err := rd.QueryByIndex(ctx, docstore.JournalEntries, docstore.ByChatIDDate, docstore.Only(chatID, date))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var e model.JournalEntry
	if err := json.Unmarshal(docs[0], &e); err != nil {
		return nil, &model.StorageError{Op: "decode", Collection: string(docstore.JournalEntries), Err: err}
	}
	return &e, nil
}

func entriesForChat(ctx context.Context, rd docstore.Reader, chatID string) ([]model.JournalEntry, error) {
	docs, err := rd.QueryByIndex(ctx, docstore.JournalEntries, docstore.ByChatID, docstore.Only(chatID))
	if err != nil {
		return nil, err
	}
	entries, err := docstore.DecodeAll[model.JournalEntry](docs)
	if err != nil {
		return nil, &model.StorageError{Op: "decode", Collection: string(docstore.JournalEntries), Err: err}
	}
	return entries, nil
}

func deleteEntriesForChat(ctx context.Context, tx docstore.Tx, chatID string) (int, error) {
	entries, err := entriesForChat(ctx, tx, chatID)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := tx.Delete(ctx, docstore.JournalEntries, e.ID); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// --- Backup ---

// BackupFileName returns "<app>_backup_<YYYY-MM-DD>.json" for t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("%s_backup_%s.json", AppName, t.UTC().Format(model.DateLayout))
}

// ExportDatabaseToFile writes a snapshot of every collection into dir and
// returns the file path.
func (r *Repository) ExportDatabaseToFile(ctx context.Context, dir string) (string, error) {
	snap, err := r.store.ExportAll(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, BackupFileName(r.now()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	r.log.Info().
		Str("path", path).
		Int("chats", len(snap.Data.Chats)).
		Int("journal_entries", len(snap.Data.JournalEntries)).
		Msg("backup exported")
	return path, nil
}

// ImportDatabaseFromFile replaces all local data with the backup at path.
func (r *Repository) ImportDatabaseFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	var snap docstore.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.NewValidationError("backup", "malformed JSON: %v", err)
	}
	if err := r.store.ImportAll(ctx, &snap); err != nil {
		return err
	}
	r.log.Info().
		Str("path", path).
		Int("chats", len(snap.Data.Chats)).
		Int("journal_entries", len(snap.Data.JournalEntries)).
		Msg("backup imported")
	return nil
}
