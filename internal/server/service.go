// Package server is the backend REST service the vault client talks to. It
// keeps chats in the same document store the client uses locally.
package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/analysis"
	"github.com/memoryvault/memory-vault/internal/cache"
	"github.com/memoryvault/memory-vault/internal/hybrid"
	"github.com/memoryvault/memory-vault/internal/model"
	"github.com/memoryvault/memory-vault/internal/parser"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/repository"
	"github.com/memoryvault/memory-vault/internal/sentiment"
	"github.com/memoryvault/memory-vault/internal/server/validate"
)

// ProcessingCompleted is the processing status of a parsed upload.
const ProcessingCompleted = "completed"

// DefaultStatsTTL bounds how long cached statistics are served.
const DefaultStatsTTL = 10 * time.Minute

// Service holds the backend's chat operations. Handlers stay thin and
// translate between HTTP and these calls.
type Service struct {
	repo     *repository.Repository
	cache    cache.Cache
	analyzer sentiment.Analyzer
	parser   *parser.Parser
	statsTTL time.Duration
	log      zerolog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

func WithCache(c cache.Cache) ServiceOption { return func(s *Service) { s.cache = c } }

func WithAnalyzer(a sentiment.Analyzer) ServiceOption {
	return func(s *Service) { s.analyzer = a }
}

func WithParser(p *parser.Parser) ServiceOption { return func(s *Service) { s.parser = p } }

func WithStatsTTL(d time.Duration) ServiceOption { return func(s *Service) { s.statsTTL = d } }

func WithLogger(l zerolog.Logger) ServiceOption { return func(s *Service) { s.log = l } }

// NewService builds a Service over repo with an in-memory cache and the
// lexicon scorer unless overridden.
func NewService(repo *repository.Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		cache:    cache.NewMemory(),
		analyzer: sentiment.NewLexicon(),
		parser:   parser.New(parser.Options{}),
		statsTTL: DefaultStatsTTL,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error { return s.repo.Store().Ping(ctx) }

// ListChats returns every chat without its messages.
func (s *Service) ListChats(ctx context.Context) ([]remote.BackendChat, error) {
	chats, err := s.repo.GetAllChats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]remote.BackendChat, 0, len(chats))
	for _, c := range chats {
		b := hybrid.ChatToBackend(c)
		b.Messages = nil
		out = append(out, b)
	}
	return out, nil
}

// GetChat returns one chat with its messages.
func (s *Service) GetChat(ctx context.Context, id string) (*remote.BackendChat, error) {
	chat, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	b := hybrid.ChatToBackend(*chat)
	return &b, nil
}

// SaveChat creates or replaces a chat.
func (s *Service) SaveChat(ctx context.Context, in remote.BackendChat) (*remote.BackendChat, error) {
	chat := hybrid.ChatFromBackend(in)
	id, err := s.repo.SaveChat(ctx, &chat)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	b := hybrid.ChatToBackend(chat)
	return &b, nil
}

// Upload parses a raw export and stores the resulting chat. name overrides
// the title derived from the file name.
func (s *Service) Upload(ctx context.Context, filename, name string, data []byte) (*remote.BackendChat, error) {
	if err := validate.UploadName(name); err != nil {
		return nil, err
	}
	chat, err := s.parser.ParseBytes(filename, data)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		chat.Name = name
	}
	chat.Metadata = map[string]any{
		hybrid.MetaFilename:         filename,
		hybrid.MetaFileSize:         int64(len(data)),
		hybrid.MetaProcessingStatus: ProcessingCompleted,
		"emojiTotals":               analysis.EmojiTotals(chat.Messages),
	}
	if _, err := s.repo.SaveChat(ctx, chat); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("chat_id", chat.ID).
		Str("filename", filename).
		Int("messages", chat.MessageCount).
		Msg("chat uploaded")
	b := hybrid.ChatToBackend(*chat)
	return &b, nil
}

// DeleteChat removes a chat and its journal entries.
func (s *Service) DeleteChat(ctx context.Context, id string) error {
	if _, err := s.repo.GetChat(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteChat(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) messages(ctx context.Context, id string) ([]model.Message, error) {
	chat, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	return chat.Messages, nil
}

// Messages returns every message of a chat.
func (s *Service) Messages(ctx context.Context, id string) ([]remote.BackendMessage, error) {
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return hybrid.MessagesToBackend(msgs), nil
}

// MessagesByDate returns the messages of one UTC calendar day.
func (s *Service) MessagesByDate(ctx context.Context, id, date string) ([]remote.BackendMessage, error) {
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return hybrid.MessagesToBackend(analysis.MessagesForDate(msgs, date)), nil
}

// Search returns messages whose content contains q, ignoring case.
func (s *Service) Search(ctx context.Context, id, q string) ([]remote.BackendMessage, error) {
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return hybrid.MessagesToBackend(analysis.SearchMessages(msgs, q)), nil
}

// Dates returns the distinct message days of a chat in ascending order.
func (s *Service) Dates(ctx context.Context, id string) ([]string, error) {
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis.ChatDates(msgs), nil
}

// Statistics returns the chat statistics, served from cache when present.
func (s *Service) Statistics(ctx context.Context, id string) (*analysis.ChatStatistics, error) {
	key := cache.StatisticsKey(id)
	var cached analysis.ChatStatistics
	found, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.log.Warn().Err(err).Str("chat_id", id).Msg("statistics cache read failed")
	}
	if found {
		return &cached, nil
	}

	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	st := analysis.ComputeStatistics(id, msgs)
	if err := cache.SetJSON(ctx, s.cache, key, st, s.statsTTL); err != nil {
		s.log.Warn().Err(err).Str("chat_id", id).Msg("statistics cache write failed")
	}
	return &st, nil
}

// Keywords returns the limit most frequent keywords of the chat's text
// messages.
func (s *Service) Keywords(ctx context.Context, id string, limit int) (*remote.KeywordsResponse, error) {
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	words, total := analysis.ExtractKeywords(msgs, limit)
	if words == nil {
		words = []analysis.WordCount{}
	}
	return &remote.KeywordsResponse{ChatID: id, Keywords: words, TotalWords: total}, nil
}

// AnalyzeSentiment scores the chat's messages and stores the scores.
// Existing scores are kept unless reanalyze is set.
func (s *Service) AnalyzeSentiment(ctx context.Context, id string, reanalyze bool) (*remote.SentimentResponse, error) {
	chat, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := sentiment.AnalyzeMessages(ctx, s.analyzer, chat.Messages, reanalyze)
	if err != nil {
		return nil, fmt.Errorf("analyze sentiment: %w", err)
	}
	if n > 0 {
		if _, err := s.repo.SaveChat(ctx, chat); err != nil {
			return nil, err
		}
		s.invalidate(ctx, id)
	}
	s.log.Info().Str("chat_id", id).Int("scored", n).Bool("reanalyze", reanalyze).Msg("sentiment analyzed")
	resp := sentimentSummary(id, chat.Messages)
	resp.Analyzed = n
	return resp, nil
}

// Sentiment summarizes the stored scores without scoring anything.
func (s *Service) Sentiment(ctx context.Context, id string) (*remote.SentimentResponse, error) {
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return sentimentSummary(id, msgs), nil
}

func sentimentSummary(id string, msgs []model.Message) *remote.SentimentResponse {
	daily := analysis.GetDailySentiment(msgs)
	overall := analysis.OverallSentiment(daily)
	scores := map[string]float64{}
	for _, m := range msgs {
		if m.SentimentScore != nil {
			scores[m.ID] = *m.SentimentScore
		}
	}
	if daily == nil {
		daily = []analysis.DailySentiment{}
	}
	return &remote.SentimentResponse{
		ChatID:        id,
		OverallScore:  overall,
		OverallLabel:  analysis.SentimentLabel(overall),
		Daily:         daily,
		MessageScores: scores,
	}
}

// Export is a rendered chat download.
type Export struct {
	ContentType string
	Filename    string
	Body        []byte
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// ExportChat renders the chat as one JSON document, or as a zip holding
// messages.json and chat_info.json.
func (s *Service) ExportChat(ctx context.Context, id, format string) (*Export, error) {
	chat, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	full := hybrid.ChatToBackend(*chat)
	base := strings.Trim(unsafeFilename.ReplaceAllString(chat.Name, "_"), "_")
	if base == "" {
		base = "chat"
	}

	if format != "zip" {
		body, err := json.MarshalIndent(full, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode export: %w", err)
		}
		return &Export{ContentType: "application/json", Filename: base + ".json", Body: body}, nil
	}

	info := full
	info.Messages = nil
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct {
		name string
		v    any
	}{
		{"messages.json", full.Messages},
		{"chat_info.json", info},
	} {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", part.name, err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(part.v); err != nil {
			return nil, fmt.Errorf("export %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export zip: %w", err)
	}
	return &Export{ContentType: "application/zip", Filename: base + ".zip", Body: buf.Bytes()}, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cache.StatisticsKey(id)); err != nil {
		s.log.Warn().Err(err).Str("chat_id", id).Msg("statistics cache invalidation failed")
	}
}
