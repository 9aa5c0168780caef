// Package importer turns exported WhatsApp chat files into stored chats.
// Files are uploaded to the backend when it is reachable and parsed locally
// otherwise.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/connectivity"
	"github.com/memoryvault/memory-vault/internal/hybrid"
	"github.com/memoryvault/memory-vault/internal/metrics"
	"github.com/memoryvault/memory-vault/internal/model"
	"github.com/memoryvault/memory-vault/internal/parser"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/workqueue"
)

// DefaultMaxBytes is the client-side upload size hint (100 MiB).
const DefaultMaxBytes int64 = 100 << 20

// Import sources recorded in chat metadata and metrics.
const (
	SourceBackend = "backend"
	SourceLocal   = "local"

	MetaImportSource = "importSource"
)

var allowedExtensions = map[string]bool{".txt": true, ".zip": true}

// Uploader sends a raw export to the backend.
type Uploader interface {
	UploadChat(ctx context.Context, file remote.UploadFile, name string, onProgress remote.ProgressFunc) (*remote.UploadResponse, error)
}

// Store persists the imported chat.
type Store interface {
	SaveChat(ctx context.Context, chat *model.Chat) (string, error)
	Status() connectivity.Status
}

// Request names one file to import. Name overrides the chat name derived
// from the file name.
type Request struct {
	Path string
	Name string
}

// Result describes a finished import.
type Result struct {
	Path         string `json:"path"`
	ChatID       string `json:"chatId,omitempty"`
	Name         string `json:"name,omitempty"`
	MessageCount int    `json:"messageCount"`
	Source       string `json:"source,omitempty"`
	Err          error  `json:"-"`
}

// Importer runs the import pipeline.
type Importer struct {
	store    Store
	uploader Uploader
	parser   *parser.Parser
	maxBytes int64
	queue    workqueue.Config
	log      zerolog.Logger
}

// Option customizes an Importer.
type Option func(*Importer)

// WithParserOptions configures the local parser.
func WithParserOptions(o parser.Options) Option {
	return func(i *Importer) { i.parser = parser.New(o) }
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(i *Importer) {
		if n > 0 {
			i.maxBytes = n
		}
	}
}

// WithQueueConfig sets the worker pool used by ImportMany.
func WithQueueConfig(cfg workqueue.Config) Option {
	return func(i *Importer) { i.queue = cfg }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(i *Importer) { i.log = l }
}

// New builds an Importer. uploader may be nil for a local-only vault.
func New(store Store, uploader Uploader, opts ...Option) *Importer {
	i := &Importer{
		store:    store,
		uploader: uploader,
		parser:   parser.New(parser.Options{}),
		maxBytes: DefaultMaxBytes,
		queue:    workqueue.Config{Shards: 4},
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Validate checks the file extension and size before any I/O.
func Validate(name string, size, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return model.NewValidationError("file", "%q must be a .txt or .zip WhatsApp export", filepath.Base(name))
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if size > maxBytes {
		return model.NewValidationError("file", "%q is %d bytes, the limit is %d", filepath.Base(name), size, maxBytes)
	}
	return nil
}

// Import validates, uploads and persists one export. onProgress receives
// monotonically increasing percentages and always ends with 100 on success.
func (i *Importer) Import(ctx context.Context, req Request, onProgress remote.ProgressFunc) (Result, error) {
	res := Result{Path: req.Path}
	info, err := os.Stat(req.Path)
	if err != nil {
		return res, model.NewValidationError("file", "%v", err)
	}
	if info.IsDir() {
		return res, model.NewValidationError("file", "%q is a directory", req.Path)
	}
	if err := Validate(req.Path, info.Size(), i.maxBytes); err != nil {
		return res, err
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", req.Path, err)
	}
	res, err = i.ImportBytes(ctx, filepath.Base(req.Path), req.Name, data, onProgress)
	res.Path = req.Path
	return res, err
}

// ImportBytes runs the pipeline on an export already held in memory.
func (i *Importer) ImportBytes(ctx context.Context, fileName, name string, data []byte, onProgress remote.ProgressFunc) (Result, error) {
	res := Result{Path: fileName}
	if err := Validate(fileName, int64(len(data)), i.maxBytes); err != nil {
		return res, err
	}
	// the backend stores the upload before the chat is saved under this name
	if utf8.RuneCountInString(name) > model.MaxChatNameLength {
		return res, model.NewValidationError("name", "exceeds %d characters", model.MaxChatNameLength)
	}
	progress := &monotonic{fn: onProgress, last: -1}

	uploaded, err := i.upload(ctx, fileName, name, data, progress.report)
	if err != nil {
		metrics.IncImport(SourceBackend, "error")
		return res, err
	}

	local, perr := i.parser.ParseBytes(fileName, data)
	var chat *model.Chat
	switch {
	case uploaded != nil && perr != nil && len(uploaded.Messages) > 0:
		c := hybrid.ChatFromBackend(*uploaded)
		chat = &c
	case perr != nil:
		metrics.IncImport(sourceOf(uploaded), "error")
		return res, perr
	default:
		chat = local
		if uploaded != nil {
			merge(chat, *uploaded)
		}
	}
	if name != "" {
		chat.Name = name
	}
	if chat.Metadata == nil {
		chat.Metadata = map[string]any{}
	}
	chat.Metadata[hybrid.MetaFilename] = fileName
	chat.Metadata[hybrid.MetaFileSize] = int64(len(data))
	chat.Metadata[MetaImportSource] = sourceOf(uploaded)

	id, err := i.store.SaveChat(ctx, chat)
	if err != nil {
		metrics.IncImport(sourceOf(uploaded), "error")
		return res, fmt.Errorf("save imported chat: %w", err)
	}
	progress.report(100)
	metrics.IncImport(sourceOf(uploaded), "ok")

	res.ChatID = id
	res.Name = chat.Name
	res.MessageCount = chat.MessageCount
	res.Source = sourceOf(uploaded)
	i.log.Info().
		Str("chat_id", id).
		Str("file", fileName).
		Int("messages", chat.MessageCount).
		Str("source", res.Source).
		Msg("chat imported")
	return res, nil
}

// upload returns the backend's view of the chat, or nil when the import
// must be materialized locally.
func (i *Importer) upload(ctx context.Context, fileName, name string, data []byte, onProgress remote.ProgressFunc) (*remote.BackendChat, error) {
	if i.uploader == nil || i.store.Status() == connectivity.Down {
		return nil, nil
	}
	file := remote.UploadFile{Name: fileName, Size: int64(len(data)), Reader: bytes.NewReader(data)}
	resp, err := i.uploader.UploadChat(ctx, file, name, onProgress)
	if err != nil {
		if ctx.Err() == nil && (remote.IsNetworkError(err) || remote.IsServerError(err)) {
			i.log.Warn().Err(err).Str("file", fileName).Msg("upload failed, parsing locally")
			return nil, nil
		}
		return nil, err
	}
	return &resp.Chat, nil
}

// merge overlays the metadata the backend returned on the locally parsed
// aggregate. Messages stay local.
func merge(chat *model.Chat, b remote.BackendChat) {
	if b.ID != "" {
		chat.ID = b.ID
	}
	if b.Title != "" {
		chat.Name = b.Title
	}
	for _, p := range b.Participants {
		if !chat.HasParticipant(p) {
			chat.Participants = append(chat.Participants, p)
		}
	}
	chat.IsGroup = chat.IsGroup || b.IsGroupChat
	if b.FirstMessageDate != nil && (chat.StartDate.IsZero() || b.FirstMessageDate.Before(chat.StartDate)) {
		chat.StartDate = *b.FirstMessageDate
	}
	if b.LastMessageDate != nil && b.LastMessageDate.After(chat.EndDate) {
		chat.EndDate = *b.LastMessageDate
	}
	if chat.Metadata == nil {
		chat.Metadata = map[string]any{}
	}
	if b.ProcessingStatus != "" {
		chat.Metadata[hybrid.MetaProcessingStatus] = b.ProcessingStatus
	}
	if b.MessageCount > 0 {
		chat.Metadata["backendMessageCount"] = b.MessageCount
	}
}

func sourceOf(uploaded *remote.BackendChat) string {
	if uploaded != nil {
		return SourceBackend
	}
	return SourceLocal
}

// monotonic forwards only strictly increasing percentages.
type monotonic struct {
	mu   sync.Mutex
	fn   remote.ProgressFunc
	last int
}

func (m *monotonic) report(pct int) {
	if m.fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pct > 100 {
		pct = 100
	}
	if pct <= m.last {
		return
	}
	m.last = pct
	m.fn(pct)
}

// ImportMany imports reqs concurrently, keyed by chat name so files of the
// same chat are imported in order. A file whose local save hits a storage
// error is tried again; every other failure is final. Results keep the order
// of reqs; onResult, when set, is called for each of them once all imports
// have finished.
func (i *Importer) ImportMany(ctx context.Context, reqs []Request, onResult func(Result)) []Result {
	tasks := make([]workqueue.Task[Result], len(reqs))
	for idx, req := range reqs {
		req := req
		key := req.Name
		if key == "" {
			key = parser.ChatNameFromFile(req.Path)
		}
		tasks[idx] = workqueue.Task[Result]{
			Key: key,
			Run: func(ctx context.Context, attempt int) (Result, error) {
				if attempt > 1 {
					i.log.Info().Str("path", req.Path).Int("attempt", attempt).Msg("retrying import")
				}
				return i.Import(ctx, req, nil)
			},
		}
	}

	cfg := i.queue
	cfg.Logger = i.log
	outcomes := workqueue.Run(ctx, cfg, tasks)

	results := make([]Result, len(reqs))
	for idx, o := range outcomes {
		res := o.Value
		res.Path = reqs[idx].Path
		res.Err = o.Err
		results[idx] = res
		if onResult != nil {
			onResult(res)
		}
	}
	return results
}

