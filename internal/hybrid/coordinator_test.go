package hybrid

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryvault/memory-vault/internal/connectivity"
	"github.com/memoryvault/memory-vault/internal/docstore/sqlite"
	"github.com/memoryvault/memory-vault/internal/model"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/repository"
)

// fakeBackend answers every call with err when set, otherwise from chats.
type fakeBackend struct {
	err     error
	chats   map[string]remote.BackendChat
	calls   atomic.Int32
	deleted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chats: map[string]remote.BackendChat{}}
}

func (f *fakeBackend) call() error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeBackend) Health(context.Context) error { return f.call() }

func (f *fakeBackend) ListChats(context.Context) ([]remote.BackendChat, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	var out []remote.BackendChat
	for _, c := range f.chats {
		c.Messages = nil
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeBackend) GetChat(_ context.Context, id string) (*remote.BackendChat, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	c, ok := f.chats[id]
	if !ok {
		return nil, remote.NewHTTPError(http.StatusNotFound, "", "GET /chat/"+id)
	}
	return &c, nil
}

func (f *fakeBackend) SaveChat(_ context.Context, c remote.BackendChat) (*remote.BackendChat, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = "remote-1"
	}
	f.chats[c.ID] = c
	return &c, nil
}

func (f *fakeBackend) DeleteChat(_ context.Context, id string) error {
	if err := f.call(); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	delete(f.chats, id)
	return nil
}

func (f *fakeBackend) GetMessages(ctx context.Context, id string) ([]remote.BackendMessage, error) {
	c, err := f.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Messages, nil
}

func (f *fakeBackend) GetMessagesByDate(ctx context.Context, id, _ string) ([]remote.BackendMessage, error) {
	return f.GetMessages(ctx, id)
}

func (f *fakeBackend) SearchMessages(ctx context.Context, id, _ string) ([]remote.BackendMessage, error) {
	return f.GetMessages(ctx, id)
}

func (f *fakeBackend) GetDates(context.Context, string) ([]string, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return []string{"2024-03-01"}, nil
}

func (f *fakeBackend) GetStatistics(_ context.Context, id string) (*remote.ChatStatistics, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &remote.ChatStatistics{ChatID: id, TotalMessages: 7}, nil
}

func (f *fakeBackend) GetKeywords(_ context.Context, id string, _ int) (*remote.KeywordsResponse, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &remote.KeywordsResponse{ChatID: id}, nil
}

func (f *fakeBackend) AnalyzeSentiment(_ context.Context, id string, _ bool) (*remote.SentimentResponse, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &remote.SentimentResponse{ChatID: id}, nil
}

func (f *fakeBackend) ExportChat(context.Context, string, string) ([]byte, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return []byte("{}"), nil
}

func networkErr() error {
	return remote.NewNetworkError("GET /chat", errors.New("dial tcp 127.0.0.1:8000: connection refused"))
}

func ts(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func localChat() *model.Chat {
	return &model.Chat{
		ID:   "local-1",
		Name: "Family",
		Messages: []model.Message{
			{Sender: "Ann", Content: "Good morning", Timestamp: ts(1, 8)},
			{Sender: "Bob", Content: "morning!", Timestamp: ts(1, 9)},
			{Sender: "Ann", Content: "dinner?", Timestamp: ts(2, 19)},
		},
	}
}

type fixture struct {
	backend *fakeBackend
	repo    *repository.Repository
	state   *connectivity.State
	coord   *Coordinator
}

func newFixture(t *testing.T, status connectivity.Status) *fixture {
	t.Helper()
	s, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{backend: newFakeBackend(), repo: repository.New(s)}
	f.state = connectivity.NewWithStatus(f.backend, zerolog.Nop(), status)
	f.coord = New(f.backend, f.repo, f.state, zerolog.Nop())
	return f
}

func TestGetAllChats_NetworkErrorFallsBackWithoutError(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()
	_, err := f.repo.SaveChat(ctx, localChat())
	require.NoError(t, err)

	f.backend.err = networkErr()
	chats, err := f.coord.GetAllChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "local-1", chats[0].ID)
	assert.Equal(t, connectivity.Down, f.coord.Status())

	// Down is sticky: the backend is not tried again
	before := f.backend.calls.Load()
	_, err = f.coord.GetAllChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, f.backend.calls.Load())
}

func TestGetChat_NotFoundRemotelyFallsBackAndStaysUp(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()
	_, err := f.repo.SaveChat(ctx, localChat())
	require.NoError(t, err)

	chat, err := f.coord.GetChat(ctx, "local-1")
	require.NoError(t, err)
	assert.Equal(t, 3, chat.MessageCount)
	assert.Equal(t, connectivity.Up, f.coord.Status())

	_, err = f.coord.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetChat_ClientErrorPropagates(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	f.backend.err = remote.NewHTTPError(http.StatusForbidden, "", "GET /chat/x")

	_, err := f.coord.GetChat(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, remote.StatusOf(err))
	assert.Equal(t, connectivity.Up, f.coord.Status())
}

func TestSaveChat_RemoteWritesThroughLocally(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()

	chat := localChat()
	chat.ID = ""
	id, err := f.coord.SaveChat(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", id)
	assert.Equal(t, 3, f.backend.chats["remote-1"].MessageCount)

	stored, err := f.repo.GetChat(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Bob"}, stored.Participants)
}

func TestSaveChat_ServerErrorSavesLocally(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()
	f.backend.err = remote.NewHTTPError(http.StatusBadGateway, "", "POST /chat")

	id, err := f.coord.SaveChat(ctx, localChat())
	require.NoError(t, err)
	assert.Equal(t, "local-1", id)
	assert.Equal(t, connectivity.Down, f.coord.Status())

	has, err := f.coord.HasAnyData(ctx)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDeleteChat_RemoteSweepsLocalCopyAndJournal(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()
	_, err := f.repo.SaveChat(ctx, localChat())
	require.NoError(t, err)
	_, err = f.repo.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: "local-1", Date: "2024-03-01", Text: "nice day"})
	require.NoError(t, err)

	require.NoError(t, f.coord.DeleteChat(ctx, "local-1"))
	assert.Equal(t, []string{"local-1"}, f.backend.deleted)

	_, err = f.repo.GetChat(ctx, "local-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	entries, err := f.repo.GetJournalEntriesForChat(ctx, "local-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDown_SkipsBackendEntirely(t *testing.T) {
	f := newFixture(t, connectivity.Down)
	ctx := context.Background()
	_, err := f.repo.SaveChat(ctx, localChat())
	require.NoError(t, err)

	dates, err := f.coord.GetChatDates(ctx, "local-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, dates)

	found, err := f.coord.SearchMessages(ctx, "local-1", "MORNING")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	day, err := f.coord.GetMessagesForDate(ctx, "local-1", "2024-03-02")
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "dinner?", day[0].Content)

	_, err = f.coord.GetStatistics(ctx, "local-1")
	assert.ErrorIs(t, err, model.ErrUnsupported)
	_, err = f.coord.ExportChat(ctx, "local-1", "json")
	assert.ErrorIs(t, err, model.ErrUnsupported)

	assert.Zero(t, f.backend.calls.Load())
}

func TestBackendOnly_FallbackClassErrorsAreUnsupported(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()

	st, err := f.coord.GetStatistics(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 7, st.TotalMessages)

	f.backend.err = remote.NewHTTPError(http.StatusServiceUnavailable, "", "GET /chat/c1/keywords")
	_, err = f.coord.GetKeywords(ctx, "c1", 10)
	var unsupported *model.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "keywords", unsupported.Op)
	assert.Equal(t, connectivity.Down, f.coord.Status())
}

func TestBackendOnly_UnknownChatIsNotFound(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx := context.Background()
	f.backend.err = remote.NewHTTPError(http.StatusNotFound, "", "POST /chat/local-1/sentiment")

	_, err := f.coord.AnalyzeSentiment(ctx, "local-1", false)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "local-1", nf.ID)
	assert.NotErrorIs(t, err, model.ErrUnsupported)

	_, err = f.coord.ExportChat(ctx, "local-1", "zip")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, connectivity.Up, f.coord.Status())
}

func TestRetryConnection_RestoresRemotePath(t *testing.T) {
	f := newFixture(t, connectivity.Down)
	ctx := context.Background()

	assert.Equal(t, connectivity.Up, f.coord.RetryConnection(ctx))
	_, err := f.coord.AnalyzeSentiment(ctx, "c1", false)
	require.NoError(t, err)
}

func TestCancelledContextDoesNotMarkDown(t *testing.T) {
	f := newFixture(t, connectivity.Up)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.backend.err = remote.NewNetworkError("GET /chat", context.Canceled)

	_, err := f.coord.GetAllChats(ctx)
	require.Error(t, err)
	assert.Equal(t, connectivity.Up, f.coord.Status())
}

func TestLocalOnlyCoordinator(t *testing.T) {
	s, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	c := New(nil, repository.New(s), nil, zerolog.Nop())
	ctx := context.Background()

	id, err := c.SaveChat(ctx, localChat())
	require.NoError(t, err)
	got, err := c.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Family", got.Name)
	assert.Equal(t, connectivity.Down, c.Status())

	entryID, err := c.SaveJournalEntry(ctx, &model.JournalEntry{ChatID: id, Date: "2024-03-01", Text: "x"})
	require.NoError(t, err)
	e, err := c.GetJournalEntryForDate(ctx, id, "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, entryID, e.ID)
}
