package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/memoryvault/memory-vault/internal/analysis"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/server/respond"
	"github.com/memoryvault/memory-vault/internal/server/validate"
)

const (
	defaultKeywordLimit = 20
	maxKeywordLimit     = 200
	// multipart overhead allowed on top of the file itself
	formOverhead = 1 << 20
)

// ChatHandler handles chat-related HTTP requests (thin transport layer)
type ChatHandler struct {
	svc       *Service
	maxUpload int64
}

// NewChatHandler creates a new chat handler
func NewChatHandler(svc *Service, maxUpload int64) *ChatHandler {
	return &ChatHandler{svc: svc, maxUpload: maxUpload}
}

// chatID extracts and validates the {id} path variable.
func chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if err := validate.ChatID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

func nonNil(msgs []remote.BackendMessage) []remote.BackendMessage {
	if msgs == nil {
		return []remote.BackendMessage{}
	}
	return msgs
}

// ListChats handles GET /chat
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.ListChats(r.Context())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, remote.ListChatsResponse{Chats: chats})
}

// CreateChat handles POST /chat
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req remote.BackendChat
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Title(req.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if req.ID != "" {
		if err := validate.ChatID(req.ID); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}
	saved, err := h.svc.SaveChat(r.Context(), req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, saved)
}

// GetChat handles GET /chat/{id}
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	chat, err := h.svc.GetChat(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, chat)
}

// DeleteChat handles DELETE /chat/{id}
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteChat(r.Context(), id); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadChat handles POST /chat/upload (multipart "file", optional "name")
func (h *ChatHandler) UploadChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.WriteError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respond.WriteBadRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.WriteBadRequest(w, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	if err := validate.UploadFile(header.Filename, header.Size, h.maxUpload); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.UploadName(r.FormValue("name")); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		respond.WriteBadRequest(w, "failed to read file")
		return
	}

	chat, err := h.svc.Upload(r.Context(), header.Filename, r.FormValue("name"), data)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, remote.UploadResponse{Chat: *chat, Message: "chat imported"})
}

// GetMessages handles GET /chat/{id}/messages
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	msgs, err := h.svc.Messages(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, remote.MessagesResponse{ChatID: id, Messages: nonNil(msgs)})
}

// GetMessagesByDate handles GET /chat/{id}/messages/date/{date}
func (h *ChatHandler) GetMessagesByDate(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	date := mux.Vars(r)["date"]
	if err := validate.Date(date); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	msgs, err := h.svc.MessagesByDate(r.Context(), id, date)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, remote.MessagesResponse{ChatID: id, Messages: nonNil(msgs)})
}

// SearchMessages handles GET /chat/{id}/search?q=
func (h *ChatHandler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	if err := validate.Query(q); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	msgs, err := h.svc.Search(r.Context(), id, q)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, remote.MessagesResponse{ChatID: id, Messages: nonNil(msgs)})
}

// GetDates handles GET /chat/{id}/dates
func (h *ChatHandler) GetDates(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	dates, err := h.svc.Dates(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	respond.WriteJSON(w, http.StatusOK, remote.DatesResponse{ChatID: id, Dates: dates})
}

// GetStatistics handles GET /chat/{id}/statistics
func (h *ChatHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Statistics(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if st.ByUser == nil {
		st.ByUser = []analysis.UserStat{}
	}
	respond.WriteJSON(w, http.StatusOK, st)
}

// GetKeywords handles GET /chat/{id}/keywords?limit=
func (h *ChatHandler) GetKeywords(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	limit, err := validate.Limit(r.URL.Query().Get("limit"), defaultKeywordLimit, maxKeywordLimit)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	kw, err := h.svc.Keywords(r.Context(), id, limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, kw)
}

// AnalyzeSentiment handles POST /chat/{id}/sentiment?reanalyze=
func (h *ChatHandler) AnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	reanalyze, err := validate.Bool("reanalyze", r.URL.Query().Get("reanalyze"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	res, err := h.svc.AnalyzeSentiment(r.Context(), id, reanalyze)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// GetSentiment handles GET /chat/{id}/sentiment
func (h *ChatHandler) GetSentiment(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Sentiment(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// ExportChat handles GET /chat/{id}/export?format=json|zip
func (h *ChatHandler) ExportChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	format, err := validate.ExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	exp, err := h.svc.ExportChat(r.Context(), id, format)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteBytes(w, exp.ContentType, exp.Filename, exp.Body)
}
