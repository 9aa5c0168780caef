// Package hybrid routes chat operations to the backend when it is reachable
// and to the local repository otherwise.
package hybrid

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/analysis"
	"github.com/memoryvault/memory-vault/internal/connectivity"
	"github.com/memoryvault/memory-vault/internal/metrics"
	"github.com/memoryvault/memory-vault/internal/model"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/repository"
)

// Backend is the subset of remote.Client the coordinator uses.
type Backend interface {
	ListChats(ctx context.Context) ([]remote.BackendChat, error)
	GetChat(ctx context.Context, chatID string) (*remote.BackendChat, error)
	SaveChat(ctx context.Context, chat remote.BackendChat) (*remote.BackendChat, error)
	DeleteChat(ctx context.Context, chatID string) error
	GetMessages(ctx context.Context, chatID string) ([]remote.BackendMessage, error)
	GetMessagesByDate(ctx context.Context, chatID, date string) ([]remote.BackendMessage, error)
	SearchMessages(ctx context.Context, chatID, query string) ([]remote.BackendMessage, error)
	GetDates(ctx context.Context, chatID string) ([]string, error)
	GetStatistics(ctx context.Context, chatID string) (*remote.ChatStatistics, error)
	GetKeywords(ctx context.Context, chatID string, limit int) (*remote.KeywordsResponse, error)
	AnalyzeSentiment(ctx context.Context, chatID string, reanalyze bool) (*remote.SentimentResponse, error)
	ExportChat(ctx context.Context, chatID, format string) ([]byte, error)
}

// Coordinator is the single entry point for chat persistence. Only the
// coordinator swallows remote errors; every other layer propagates them.
type Coordinator struct {
	backend Backend
	local   *repository.Repository
	state   *connectivity.State
	log     zerolog.Logger
}

// New builds a Coordinator. backend may be nil for a local-only vault.
func New(backend Backend, local *repository.Repository, state *connectivity.State, log zerolog.Logger) *Coordinator {
	if state == nil {
		if p, ok := backend.(connectivity.Prober); ok {
			state = connectivity.New(p, log)
		} else {
			state = connectivity.NewWithStatus(nil, log, connectivity.Down)
		}
	}
	return &Coordinator{backend: backend, local: local, state: state, log: log}
}

// Repository exposes the local repository (backups, journal).
func (c *Coordinator) Repository() *repository.Repository { return c.local }

// State exposes the shared connectivity flag.
func (c *Coordinator) State() *connectivity.State { return c.state }

// Status returns the cached connectivity status.
func (c *Coordinator) Status() connectivity.Status { return c.state.Status() }

// RetryConnection re-probes the backend.
func (c *Coordinator) RetryConnection(ctx context.Context) connectivity.Status {
	return c.state.Retry(ctx)
}

func (c *Coordinator) useRemote(ctx context.Context) bool {
	return c.backend != nil && c.state.Available(ctx)
}

// fallback reports whether err allows serving op locally. Network errors
// and 5xx also flip the connectivity flag to Down.
func (c *Coordinator) fallback(ctx context.Context, op string, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case remote.IsNetworkError(err), remote.IsServerError(err):
		c.state.MarkDown(err)
	case remote.StatusOf(err) == http.StatusNotFound:
	default:
		return false
	}
	metrics.IncFallback(op)
	c.log.Warn().Err(err).Str("operation", op).Msg("backend unavailable, using local storage")
	return true
}

// --- Chats ---

// GetAllChats lists chats. Remote listings carry no messages.
func (c *Coordinator) GetAllChats(ctx context.Context) ([]model.Chat, error) {
	if c.useRemote(ctx) {
		list, err := c.backend.ListChats(ctx)
		if err == nil {
			out := make([]model.Chat, 0, len(list))
			for _, b := range list {
				out = append(out, ChatFromBackend(b))
			}
			return out, nil
		}
		if !c.fallback(ctx, "get_all_chats", err) {
			return nil, err
		}
	}
	return c.local.GetAllChats(ctx)
}

// GetChat returns one chat with its messages.
func (c *Coordinator) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	if c.useRemote(ctx) {
		b, err := c.backend.GetChat(ctx, id)
		if err == nil {
			chat := ChatFromBackend(*b)
			return &chat, nil
		}
		if !c.fallback(ctx, "get_chat", err) {
			return nil, err
		}
	}
	return c.local.GetChat(ctx, id)
}

// SaveChat stores chat and returns its id. On the remote path the saved chat
// is also written to the local repository so it can be read offline.
func (c *Coordinator) SaveChat(ctx context.Context, chat *model.Chat) (string, error) {
	if chat == nil {
		return "", model.NewValidationError("chat", "is nil")
	}
	repository.Normalize(chat)
	if c.useRemote(ctx) {
		saved, err := c.backend.SaveChat(ctx, ChatToBackend(*chat))
		if err == nil {
			if saved != nil && saved.ID != "" {
				chat.ID = saved.ID
			}
			if _, werr := c.local.SaveChat(ctx, chat); werr != nil {
				c.log.Warn().Err(werr).Str("chat_id", chat.ID).Msg("local write-through failed")
			}
			return chat.ID, nil
		}
		if !c.fallback(ctx, "save_chat", err) {
			return "", err
		}
	}
	return c.local.SaveChat(ctx, chat)
}

// DeleteChat removes a chat and its journal entries. After a remote delete
// the local copy is swept too; sweep failures are only logged.
func (c *Coordinator) DeleteChat(ctx context.Context, id string) error {
	if c.useRemote(ctx) {
		err := c.backend.DeleteChat(ctx, id)
		if err == nil {
			if serr := c.local.DeleteChat(ctx, id); serr != nil {
				c.log.Warn().Err(serr).Str("chat_id", id).Msg("local sweep after remote delete failed")
			}
			return nil
		}
		if !c.fallback(ctx, "delete_chat", err) {
			return err
		}
	}
	return c.local.DeleteChat(ctx, id)
}

// HasAnyData reports whether at least one chat exists.
func (c *Coordinator) HasAnyData(ctx context.Context) (bool, error) {
	if c.useRemote(ctx) {
		list, err := c.backend.ListChats(ctx)
		if err == nil {
			return len(list) > 0, nil
		}
		if !c.fallback(ctx, "has_any_data", err) {
			return false, err
		}
	}
	return c.local.HasAnyData(ctx)
}

// --- Message views ---

// GetMessages returns every message of a chat.
func (c *Coordinator) GetMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	if c.useRemote(ctx) {
		msgs, err := c.backend.GetMessages(ctx, chatID)
		if err == nil {
			return MessagesFromBackend(msgs), nil
		}
		if !c.fallback(ctx, "get_messages", err) {
			return nil, err
		}
	}
	return c.localMessages(ctx, chatID)
}

// GetMessagesForDate returns the messages of one day (YYYY-MM-DD).
func (c *Coordinator) GetMessagesForDate(ctx context.Context, chatID, date string) ([]model.Message, error) {
	if c.useRemote(ctx) {
		msgs, err := c.backend.GetMessagesByDate(ctx, chatID, date)
		if err == nil {
			return MessagesFromBackend(msgs), nil
		}
		if !c.fallback(ctx, "get_messages_for_date", err) {
			return nil, err
		}
	}
	msgs, err := c.localMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return analysis.MessagesForDate(msgs, date), nil
}

// SearchMessages returns messages containing query.
func (c *Coordinator) SearchMessages(ctx context.Context, chatID, query string) ([]model.Message, error) {
	if c.useRemote(ctx) {
		msgs, err := c.backend.SearchMessages(ctx, chatID, query)
		if err == nil {
			return MessagesFromBackend(msgs), nil
		}
		if !c.fallback(ctx, "search_messages", err) {
			return nil, err
		}
	}
	msgs, err := c.localMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return analysis.SearchMessages(msgs, query), nil
}

// GetChatDates returns the days that have messages, ascending.
func (c *Coordinator) GetChatDates(ctx context.Context, chatID string) ([]string, error) {
	if c.useRemote(ctx) {
		dates, err := c.backend.GetDates(ctx, chatID)
		if err == nil {
			return dates, nil
		}
		if !c.fallback(ctx, "get_chat_dates", err) {
			return nil, err
		}
	}
	msgs, err := c.localMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return analysis.ChatDates(msgs), nil
}

func (c *Coordinator) localMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	chat, err := c.local.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return chat.Messages, nil
}

// --- Backend-only ---

// GetStatistics returns backend statistics for a chat.
func (c *Coordinator) GetStatistics(ctx context.Context, chatID string) (*analysis.ChatStatistics, error) {
	if !c.useRemote(ctx) {
		return nil, &model.UnsupportedOperationError{Op: "statistics"}
	}
	st, err := c.backend.GetStatistics(ctx, chatID)
	if err != nil {
		return nil, c.backendOnly(ctx, "statistics", chatID, err)
	}
	return st, nil
}

// GetKeywords returns the top keywords of a chat.
func (c *Coordinator) GetKeywords(ctx context.Context, chatID string, limit int) (*remote.KeywordsResponse, error) {
	if !c.useRemote(ctx) {
		return nil, &model.UnsupportedOperationError{Op: "keywords"}
	}
	kw, err := c.backend.GetKeywords(ctx, chatID, limit)
	if err != nil {
		return nil, c.backendOnly(ctx, "keywords", chatID, err)
	}
	return kw, nil
}

// AnalyzeSentiment scores the chat on the backend.
func (c *Coordinator) AnalyzeSentiment(ctx context.Context, chatID string, reanalyze bool) (*remote.SentimentResponse, error) {
	if !c.useRemote(ctx) {
		return nil, &model.UnsupportedOperationError{Op: "sentiment analysis"}
	}
	sr, err := c.backend.AnalyzeSentiment(ctx, chatID, reanalyze)
	if err != nil {
		return nil, c.backendOnly(ctx, "sentiment analysis", chatID, err)
	}
	return sr, nil
}

// ExportChat downloads a chat export ("json" or "zip").
func (c *Coordinator) ExportChat(ctx context.Context, chatID, format string) ([]byte, error) {
	if !c.useRemote(ctx) {
		return nil, &model.UnsupportedOperationError{Op: "export"}
	}
	b, err := c.backend.ExportChat(ctx, chatID, format)
	if err != nil {
		return nil, c.backendOnly(ctx, "export", chatID, err)
	}
	return b, nil
}

// backendOnly maps a failed backend-only call. A 404 means the backend is
// reachable but does not know the chat (for example one imported offline).
func (c *Coordinator) backendOnly(ctx context.Context, op, chatID string, err error) error {
	if remote.StatusOf(err) == http.StatusNotFound {
		return &model.NotFoundError{Kind: "chat on backend", ID: chatID}
	}
	if c.fallback(ctx, op, err) {
		return &model.UnsupportedOperationError{Op: op}
	}
	return err
}

// --- Journal (local only) ---

// SaveJournalEntry stores a journal entry and returns its id.
func (c *Coordinator) SaveJournalEntry(ctx context.Context, e *model.JournalEntry) (string, error) {
	return c.local.SaveJournalEntry(ctx, e)
}

// GetJournalEntry returns a journal entry by id.
func (c *Coordinator) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	return c.local.GetJournalEntry(ctx, id)
}

// GetJournalEntryForDate returns the entry of chatID on date, or nil.
func (c *Coordinator) GetJournalEntryForDate(ctx context.Context, chatID, date string) (*model.JournalEntry, error) {
	return c.local.GetJournalEntryForDate(ctx, chatID, date)
}

// GetJournalEntriesForChat returns every entry of a chat by date.
func (c *Coordinator) GetJournalEntriesForChat(ctx context.Context, chatID string) ([]model.JournalEntry, error) {
	return c.local.GetJournalEntriesForChat(ctx, chatID)
}

// DeleteJournalEntry removes one journal entry.
func (c *Coordinator) DeleteJournalEntry(ctx context.Context, id string) error {
	return c.local.DeleteJournalEntry(ctx, id)
}
