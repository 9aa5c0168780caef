package model

import "time"

// MessageType mirrors the backend message classification.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageSticker  MessageType = "sticker"
	MessageContact  MessageType = "contact"
	MessageLocation MessageType = "location"
	MessageSystem   MessageType = "system"
)

// Chat is the aggregate root for an imported conversation.
type Chat struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Participants []string       `json:"participants"`
	Messages     []Message      `json:"messages"`
	IsGroup      bool           `json:"isGroup"`
	StartDate    time.Time      `json:"startDate"`
	EndDate      time.Time      `json:"endDate"`
	MessageCount int            `json:"messageCount"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HasParticipant reports whether name is listed in Participants.
func (c *Chat) HasParticipant(name string) bool {
	for _, p := range c.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// Message is a single line (or multi-line block) of a chat export.
type Message struct {
	ID             string      `json:"id"`
	Sender         string      `json:"sender"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	Type           MessageType `json:"type,omitempty"`
	IsMedia        bool        `json:"isMedia"`
	IsDeleted      bool        `json:"isDeleted"`
	IsForwarded    bool        `json:"isForwarded"`
	EmojiCount     int         `json:"emojiCount"`
	SentimentScore *float64    `json:"sentimentScore,omitempty"`
}

// Emotion is the primary feeling recorded in a journal entry.
type Emotion struct {
	Primary   string `json:"primary"`
	Intensity int    `json:"intensity"`
}

// JournalEntry is a diary note about one chat on one calendar day.
type JournalEntry struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chatId"`
	Date          string    `json:"date"`
	Text          string    `json:"text"`
	Emotion       *Emotion  `json:"emotion,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	AudioNoteURL  string    `json:"audioNoteUrl,omitempty"`
	AudioDuration float64   `json:"audioDuration,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MaxChatNameLength is the longest chat name, in characters, the backend accepts.
const MaxChatNameLength = 200

// DateLayout is the calendar-day format used for journal dates and grouping.
const DateLayout = "2006-01-02"
