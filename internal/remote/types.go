package remote

import (
	"time"

	"github.com/memoryvault/memory-vault/internal/analysis"
)

// BackendChat is the chat representation used on the wire.
type BackendChat struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Filename         string           `json:"filename,omitempty"`
	IsGroupChat      bool             `json:"is_group_chat"`
	Participants     []string         `json:"participants"`
	MessageCount     int              `json:"message_count"`
	FirstMessageDate *time.Time       `json:"first_message_date,omitempty"`
	LastMessageDate  *time.Time       `json:"last_message_date,omitempty"`
	FileSize         int64            `json:"file_size,omitempty"`
	ProcessingStatus string           `json:"processing_status,omitempty"`
	Messages         []BackendMessage `json:"messages,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// BackendMessage is the message representation used on the wire.
type BackendMessage struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	MessageType    string    `json:"message_type,omitempty"`
	IsMedia        bool      `json:"is_media"`
	IsDeleted      bool      `json:"is_deleted"`
	IsForwarded    bool      `json:"is_forwarded"`
	EmojiCount     int       `json:"emoji_count"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
}

// ListChatsResponse wraps GET /chat.
type ListChatsResponse struct {
	Chats []BackendChat `json:"chats"`
}

// MessagesResponse wraps the message listing endpoints.
type MessagesResponse struct {
	ChatID   string           `json:"chat_id"`
	Messages []BackendMessage `json:"messages"`
}

// DatesResponse wraps GET /chat/{id}/dates.
type DatesResponse struct {
	ChatID string   `json:"chat_id"`
	Dates  []string `json:"dates"`
}

// UploadResponse is returned by POST /chat/upload.
type UploadResponse struct {
	Chat    BackendChat `json:"chat"`
	Message string      `json:"message,omitempty"`
}

// Analysis results share their JSON shape with the analysis package.
type (
	ChatStatistics = analysis.ChatStatistics
	UserStat       = analysis.UserStat
	Keyword        = analysis.WordCount
	DailySentiment = analysis.DailySentiment
)

// KeywordsResponse is returned by GET /chat/{id}/keywords.
type KeywordsResponse struct {
	ChatID     string    `json:"chat_id"`
	Keywords   []Keyword `json:"keywords"`
	TotalWords int       `json:"total_words"`
}

// SentimentResponse is returned by the sentiment endpoints.
type SentimentResponse struct {
	ChatID        string             `json:"chat_id"`
	Analyzed      int                `json:"analyzed"`
	OverallScore  float64            `json:"overall_score"`
	OverallLabel  string             `json:"overall_label"`
	Daily         []DailySentiment   `json:"daily"`
	MessageScores map[string]float64 `json:"message_scores,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
