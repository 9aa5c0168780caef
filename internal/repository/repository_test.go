package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryvault/memory-vault/internal/docstore"
	"github.com/memoryvault/memory-vault/internal/docstore/sqlite"
	"github.com/memoryvault/memory-vault/internal/model"
)

func newRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	s, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, opts...)
}

func ts(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func sampleChat() *model.Chat {
	return &model.Chat{
		Name:         "Alice",
		Participants: []string{"Alice"},
		Messages: []model.Message{
			{Sender: "Bob", Content: "later", Timestamp: ts(2, 9)},
			{Sender: "Alice", Content: "hello", Timestamp: ts(1, 8)},
			{Sender: "Alice", Content: "again", Timestamp: ts(1, 10)},
		},
	}
}

func TestSaveChat_AssignsIDAndEnforcesInvariants(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	c := sampleChat()
	c.MessageCount = 99
	id, err := r.SaveChat(ctx, c)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := r.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, len(got.Messages), got.MessageCount)
	assert.Equal(t, 3, got.MessageCount)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, got.Participants)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.True(t, got.StartDate.Equal(ts(1, 8)))
	assert.True(t, got.EndDate.Equal(ts(2, 9)))
	assert.False(t, got.StartDate.After(got.EndDate))
	for _, m := range got.Messages {
		assert.NotEmpty(t, m.ID)
		assert.True(t, got.HasParticipant(m.Sender))
	}
}

func TestSaveChat_KeepsExistingID(t *testing.T) {
	r := newRepo(t)
	c := sampleChat()
	c.ID = "chat-1"
	id, err := r.SaveChat(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", id)
}

func TestSaveChat_EmptyMessagesClearsDateBounds(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	c := sampleChat()
	id, err := r.SaveChat(ctx, c)
	require.NoError(t, err)
	require.False(t, c.StartDate.IsZero())

	c.Messages = nil
	_, err = r.SaveChat(ctx, c)
	require.NoError(t, err)

	got, err := r.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, got.MessageCount)
	assert.Empty(t, got.Messages)
	assert.True(t, got.StartDate.IsZero())
	assert.True(t, got.EndDate.IsZero())
}

func TestGetChat_NotFound(t *testing.T) {
	r := newRepo(t)
	_, err := r.GetChat(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestHasAnyData(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	has, err := r.HasAnyData(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = r.SaveChat(ctx, sampleChat())
	require.NoError(t, err)
	has, err = r.HasAnyData(ctx)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSaveJournalEntry_TimestampsStrictlyIncrease(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newRepo(t, WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	e := &model.JournalEntry{ChatID: "c1", Date: "2024-05-01", Text: "first"}
	id, err := r.SaveJournalEntry(ctx, e)
	require.NoError(t, err)

	first, err := r.GetJournalEntry(ctx, id)
	require.NoError(t, err)
	assert.False(t, first.UpdatedAt.Before(first.CreatedAt))

	first.Text = "edited"
	_, err = r.SaveJournalEntry(ctx, first)
	require.NoError(t, err)

	second, err := r.GetJournalEntry(ctx, id)
	require.NoError(t, err)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "updatedAt must strictly increase")
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "createdAt is set once")
	assert.Equal(t, "edited", second.Text)
}

func TestSaveJournalEntry_ReusesIDForSameDay(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	id1, err := r.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: "c1", Date: "2024-05-01", Text: "a"})
	require.NoError(t, err)
	id2, err := r.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: "c1", Date: "2024-05-01", Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	entries, err := r.GetJournalEntriesForChat(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Text)
}

func TestGetJournalEntryForDate_LowestIDWins(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	// duplicates written around the repository, as an older build could
	for _, id := range []string{"e-b", "e-a", "e-c"} {
		require.NoError(t, r.Store().Put(ctx, docstore.JournalEntries,
			model.JournalEntry{ID: id, ChatID: "c1", Date: "2024-05-01", Text: id}))
	}

	got, err := r.GetJournalEntryForDate(ctx, "c1", "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e-a", got.ID)

	none, err := r.GetJournalEntryForDate(ctx, "c1", "2024-05-02")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSaveJournalEntry_Validation(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry *model.JournalEntry
	}{
		{"nil", nil},
		{"no chat", &model.JournalEntry{Date: "2024-05-01"}},
		{"bad date", &model.JournalEntry{ChatID: "c1", Date: "05/01/2024"}},
		{"intensity too high", &model.JournalEntry{ChatID: "c1", Date: "2024-05-01", Emotion: &model.Emotion{Primary: "joy", Intensity: 6}}},
		{"intensity zero", &model.JournalEntry{ChatID: "c1", Date: "2024-05-01", Emotion: &model.Emotion{Primary: "joy"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.SaveJournalEntry(ctx, tt.entry)
			require.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestDeleteChat_CascadesToJournalEntries(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	keep := sampleChat()
	keepID, err := r.SaveChat(ctx, keep)
	require.NoError(t, err)
	gone := sampleChat()
	goneID, err := r.SaveChat(ctx, gone)
	require.NoError(t, err)

	for _, d := range []string{"2024-03-01", "2024-03-02"} {
		_, err := r.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: goneID, Date: d, Text: "x"})
		require.NoError(t, err)
	}
	_, err = r.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: keepID, Date: "2024-03-01", Text: "stay"})
	require.NoError(t, err)

	require.NoError(t, r.DeleteChat(ctx, goneID))

	_, err = r.GetChat(ctx, goneID)
	require.ErrorIs(t, err, model.ErrNotFound)
	entries, err := r.GetJournalEntriesForChat(ctx, goneID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	kept, err := r.GetJournalEntriesForChat(ctx, keepID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	// idempotent
	require.NoError(t, r.DeleteChat(ctx, goneID))
}

func TestBackup_RoundTrip(t *testing.T) {
	day := time.Date(2024, 6, 9, 15, 0, 0, 0, time.UTC)
	r := newRepo(t, WithClock(func() time.Time { return day }))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.SaveChat(ctx, sampleChat())
		require.NoError(t, err)
	}
	before, err := r.GetAllChats(ctx)
	require.NoError(t, err)
	_, err = r.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: before[0].ID, Date: "2024-03-01", Text: "note"})
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := r.ExportDatabaseToFile(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "memory_vault_backup_2024-06-09.json"), path)

	require.NoError(t, r.Store().Clear(ctx, docstore.Chats))
	require.NoError(t, r.Store().Clear(ctx, docstore.JournalEntries))
	_, err = r.SaveChat(ctx, &model.Chat{ID: "stale", Name: "stale"})
	require.NoError(t, err)

	require.NoError(t, r.ImportDatabaseFromFile(ctx, path))

	after, err := r.GetAllChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, summarize(before), summarize(after))

	entry, err := r.GetJournalEntryForDate(ctx, before[0].ID, "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "note", entry.Text)
}

func TestImportDatabaseFromFile_Rejects(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	dir := t.TempDir()

	files := map[string]string{
		"malformed.json": `{"version": 1, "data": `,
		"newer.json":     `{"version": 7, "data": {"chats": [], "journalEntries": []}}`,
		"nochats.json":   `{"version": 1, "data": {"journalEntries": []}}`,
	}
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		err := r.ImportDatabaseFromFile(ctx, p)
		require.ErrorIs(t, err, model.ErrValidation, name)
	}
}

func summarize(chats []model.Chat) map[string]int {
	out := make(map[string]int, len(chats))
	for _, c := range chats {
		out[c.ID] = c.MessageCount
	}
	return out
}
