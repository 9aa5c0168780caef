package server

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryvault/memory-vault/internal/connectivity"
	"github.com/memoryvault/memory-vault/internal/docstore/sqlite"
	"github.com/memoryvault/memory-vault/internal/hybrid"
	"github.com/memoryvault/memory-vault/internal/importer"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/repository"
)

// TestHybridClientAgainstServer drives the client stack (remote client,
// coordinator, importer) against a real router and then takes the backend
// away.
func TestHybridClientAgainstServer(t *testing.T) {
	backend := newTestServer(t)
	srv := httptest.NewServer(backend.router)
	defer srv.Close()

	client, err := remote.New(srv.URL, remote.WithRetry(0, 0), remote.WithHTTPTimeout(5*time.Second))
	require.NoError(t, err)

	localStore, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = localStore.Close() })
	local := repository.New(localStore)

	state := connectivity.New(client, zerolog.Nop())
	coord := hybrid.New(client, local, state, zerolog.Nop())
	imp := importer.New(coord, client)

	ctx := context.Background()
	var progress []int
	res, err := imp.ImportBytes(ctx, "WhatsApp Chat with Bob.txt", "", []byte(pizzaExport), func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, importer.SourceBackend, res.Source)
	assert.Equal(t, 3, res.MessageCount)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Equal(t, connectivity.Up, coord.Status())

	// stored on both sides under the backend id
	_, err = backend.repo.GetChat(ctx, res.ChatID)
	require.NoError(t, err)
	localCopy, err := local.GetChat(ctx, res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", localCopy.Name)
	assert.Len(t, localCopy.Messages, 3)

	chats, err := coord.GetAllChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	st, err := coord.GetStatistics(ctx, res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalMessages)

	dates, err := coord.GetChatDates(ctx, res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-14", "2024-02-15"}, dates)

	raw, err := coord.ExportChat(ctx, res.ChatID, "zip")
	require.NoError(t, err)
	_, err = zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	// backend goes away: reads fall back to the local copy
	srv.Close()
	chats, err = coord.GetAllChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, connectivity.Down, coord.Status())

	msgs, err := coord.SearchMessages(ctx, res.ChatID, "pizza")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	// imports keep working offline
	res2, err := imp.ImportBytes(ctx, "WhatsApp Chat with Cid.txt", "", []byte(pizzaExport), nil)
	require.NoError(t, err)
	assert.Equal(t, importer.SourceLocal, res2.Source)

	_, err = coord.GetStatistics(ctx, res.ChatID)
	assert.Error(t, err, "statistics need the backend")
}
