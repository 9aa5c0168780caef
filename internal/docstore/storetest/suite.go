// Package storetest holds the compliance suite every docstore engine must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/memoryvault/memory-vault/internal/docstore"
	"github.com/memoryvault/memory-vault/internal/model"
)

type entry struct {
	ID     string `json:"id"`
	ChatID string `json:"chatId"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

type chat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Run exercises the document store contract. makeStore must return an empty,
// isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) docstore.Store) {
	t.Helper()

	t.Run("PutGetOverwrite", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		if err := s.Put(ctx, docstore.Chats, chat{ID: "c1", Name: "first"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := s.Put(ctx, docstore.Chats, chat{ID: "c1", Name: "second"}); err != nil {
			t.Fatalf("Put overwrite: %v", err)
		}
		var got chat
		found, err := s.Get(ctx, docstore.Chats, "c1", &got)
		if err != nil || !found {
			t.Fatalf("Get: found=%v err=%v", found, err)
		}
		if got.Name != "second" {
			t.Fatalf("expected overwritten name, got %q", got.Name)
		}
		n, err := s.Count(ctx, docstore.Chats)
		if err != nil || n != 1 {
			t.Fatalf("Count: n=%d err=%v", n, err)
		}
	})

	t.Run("CancelledFirstUseDoesNotPoisonStore", func(t *testing.T) {
		s := makeStore(t)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Put(cancelled, docstore.Chats, chat{ID: "c1", Name: "x"}); err == nil {
			t.Fatalf("expected Put with cancelled context to fail")
		}
		if err := s.Put(context.Background(), docstore.Chats, chat{ID: "c1", Name: "x"}); err != nil {
			t.Fatalf("Put after cancelled first use: %v", err)
		}
		found, err := s.Get(context.Background(), docstore.Chats, "c1", nil)
		if err != nil || !found {
			t.Fatalf("Get: found=%v err=%v", found, err)
		}
	})

	t.Run("GetMissingIsNotAnError", func(t *testing.T) {
		s := makeStore(t)
		found, err := s.Get(context.Background(), docstore.Chats, "nope", &chat{})
		if err != nil {
			t.Fatalf("Get missing: %v", err)
		}
		if found {
			t.Fatalf("expected found=false")
		}
	})

	t.Run("PutWithoutIDFails", func(t *testing.T) {
		s := makeStore(t)
		err := s.Put(context.Background(), docstore.Chats, map[string]any{"name": "x"})
		if !errors.Is(err, model.ErrStorage) {
			t.Fatalf("expected StorageError, got %v", err)
		}
	})

	t.Run("UnknownCollection", func(t *testing.T) {
		s := makeStore(t)
		_, err := s.GetAll(context.Background(), docstore.Collection("users"))
		if !errors.Is(err, model.ErrStorage) {
			t.Fatalf("expected StorageError, got %v", err)
		}
	})

	t.Run("QueryByIndex", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		seed := []entry{
			{ID: "e3", ChatID: "a", Date: "2024-01-03"},
			{ID: "e1", ChatID: "a", Date: "2024-01-01"},
			{ID: "e2", ChatID: "a", Date: "2024-01-02"},
			{ID: "e4", ChatID: "b", Date: "2024-01-02"},
			{ID: "e0", ChatID: "a", Date: "2024-01-02"},
		}
		for _, e := range seed {
			if err := s.Put(ctx, docstore.JournalEntries, e); err != nil {
				t.Fatalf("Put %s: %v", e.ID, err)
			}
		}

		got := ids(t, mustQuery(t, s, docstore.ByChatID, docstore.Only("a")))
		assertIDs(t, "chatId=a", got, "e0", "e1", "e2", "e3")

		got = ids(t, mustQuery(t, s, docstore.ByDate, docstore.Only("2024-01-02")))
		assertIDs(t, "date=2024-01-02", got, "e0", "e2", "e4")

		got = ids(t, mustQuery(t, s, docstore.ByChatIDDate, docstore.Only("a", "2024-01-02")))
		assertIDs(t, "compound exact", got, "e0", "e2")

		got = ids(t, mustQuery(t, s, docstore.ByDate, docstore.Bound([]string{"2024-01-02"}, []string{"2024-01-03"}, true, false)))
		assertIDs(t, "date range (open lower)", got, "e3")

		got = ids(t, mustQuery(t, s, docstore.ByChatIDDate,
			docstore.Bound([]string{"a", "2024-01-02"}, []string{"a", "9999-12-31"}, false, false)))
		assertIDs(t, "compound range", got, "e0", "e2", "e3")

		got = ids(t, mustQuery(t, s, docstore.ByDate, docstore.UpperBound([]string{"2024-01-02"}, true)))
		assertIDs(t, "upper bound", got, "e1")

		if _, err := s.QueryByIndex(ctx, docstore.JournalEntries, docstore.ByChatIDDate, docstore.Only("a")); err == nil {
			t.Fatalf("expected arity error for compound index with one key part")
		}
	})

	t.Run("DeleteAndClearAreIdempotent", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		if err := s.Put(ctx, docstore.Chats, chat{ID: "c1"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.Delete(ctx, docstore.Chats, "c1"); err != nil {
				t.Fatalf("Delete #%d: %v", i, err)
			}
			if err := s.Clear(ctx, docstore.JournalEntries); err != nil {
				t.Fatalf("Clear #%d: %v", i, err)
			}
		}
		if found, _ := s.Get(ctx, docstore.Chats, "c1", nil); found {
			t.Fatalf("expected c1 deleted")
		}
	})

	t.Run("UpdateRollsBackOnError", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		boom := errors.New("boom")
		err := s.Update(ctx, func(tx docstore.Tx) error {
			if err := tx.Put(ctx, docstore.Chats, chat{ID: "c1"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if found, _ := s.Get(ctx, docstore.Chats, "c1", nil); found {
			t.Fatalf("write inside failed transaction must not persist")
		}
	})

	t.Run("ExportImportRoundTrip", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		_ = s.Put(ctx, docstore.Chats, chat{ID: "c1", Name: "one"})
		_ = s.Put(ctx, docstore.Chats, chat{ID: "c2", Name: "two"})
		_ = s.Put(ctx, docstore.JournalEntries, entry{ID: "e1", ChatID: "c1", Date: "2024-02-01"})

		snap, err := s.ExportAll(ctx)
		if err != nil {
			t.Fatalf("ExportAll: %v", err)
		}
		if snap.Version != docstore.SnapshotVersion {
			t.Fatalf("unexpected version %d", snap.Version)
		}
		data, err := json.Marshal(snap)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		_ = s.Clear(ctx, docstore.Chats)
		_ = s.Put(ctx, docstore.Chats, chat{ID: "stale"})

		var restored docstore.Snapshot
		if err := json.Unmarshal(data, &restored); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.ImportAll(ctx, &restored); err != nil {
			t.Fatalf("ImportAll: %v", err)
		}
		got := ids(t, mustAll(t, s, docstore.Chats))
		assertIDs(t, "chats after import", got, "c1", "c2")
		got = ids(t, mustQuery(t, s, docstore.ByChatIDDate, docstore.Only("c1", "2024-02-01")))
		assertIDs(t, "entries after import", got, "e1")
	})

	t.Run("ImportRejectsBadSnapshots", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		_ = s.Put(ctx, docstore.Chats, chat{ID: "keep"})

		cases := map[string]*docstore.Snapshot{
			"newer version":   {Version: docstore.SnapshotVersion + 1, Data: docstore.SnapshotData{Chats: []json.RawMessage{}, JournalEntries: []json.RawMessage{}}},
			"no version":      {Data: docstore.SnapshotData{Chats: []json.RawMessage{}, JournalEntries: []json.RawMessage{}}},
			"missing chats":   {Version: 1, Data: docstore.SnapshotData{JournalEntries: []json.RawMessage{}}},
			"missing entries": {Version: 1, Data: docstore.SnapshotData{Chats: []json.RawMessage{}}},
		}
		for name, snap := range cases {
			if err := s.ImportAll(ctx, snap); !errors.Is(err, model.ErrValidation) {
				t.Fatalf("%s: expected validation error, got %v", name, err)
			}
		}
		if found, _ := s.Get(ctx, docstore.Chats, "keep", nil); !found {
			t.Fatalf("rejected import must not touch existing data")
		}
	})
}

func mustQuery(t *testing.T, s docstore.Store, idx docstore.Index, r docstore.KeyRange) []json.RawMessage {
	t.Helper()
	docs, err := s.QueryByIndex(context.Background(), docstore.JournalEntries, idx, r)
	if err != nil {
		t.Fatalf("QueryByIndex %s: %v", idx, err)
	}
	return docs
}

func mustAll(t *testing.T, s docstore.Store, coll docstore.Collection) []json.RawMessage {
	t.Helper()
	docs, err := s.GetAll(context.Background(), coll)
	if err != nil {
		t.Fatalf("GetAll %s: %v", coll, err)
	}
	return docs
}

func ids(t *testing.T, docs []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(d, &v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, v.ID)
	}
	return out
}

func assertIDs(t *testing.T, what string, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", what, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", what, got, want)
		}
	}
}
