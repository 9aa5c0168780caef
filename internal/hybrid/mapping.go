package hybrid

import (
	"time"

	"github.com/memoryvault/memory-vault/internal/model"
	"github.com/memoryvault/memory-vault/internal/remote"
)

// Metadata keys for backend-only chat fields that have no model.Chat field.
const (
	MetaFilename         = "filename"
	MetaFileSize         = "fileSize"
	MetaProcessingStatus = "processingStatus"
)

// ChatFromBackend converts the wire representation into the domain aggregate.
// Listings come without messages; MessageCount then keeps the backend count.
func ChatFromBackend(b remote.BackendChat) model.Chat {
	c := model.Chat{
		ID:           b.ID,
		Name:         b.Title,
		Participants: append([]string{}, b.Participants...),
		Messages:     MessagesFromBackend(b.Messages),
		IsGroup:      b.IsGroupChat,
		MessageCount: b.MessageCount,
	}
	if n := len(c.Messages); n > 0 {
		c.MessageCount = n
		c.StartDate = c.Messages[0].Timestamp
		c.EndDate = c.Messages[n-1].Timestamp
	}
	if b.FirstMessageDate != nil {
		c.StartDate = *b.FirstMessageDate
	}
	if b.LastMessageDate != nil {
		c.EndDate = *b.LastMessageDate
	}

	if len(b.Metadata) > 0 || b.Filename != "" || b.FileSize > 0 || b.ProcessingStatus != "" {
		c.Metadata = make(map[string]any, len(b.Metadata)+3)
		for k, v := range b.Metadata {
			c.Metadata[k] = v
		}
		if b.Filename != "" {
			c.Metadata[MetaFilename] = b.Filename
		}
		if b.FileSize > 0 {
			c.Metadata[MetaFileSize] = b.FileSize
		}
		if b.ProcessingStatus != "" {
			c.Metadata[MetaProcessingStatus] = b.ProcessingStatus
		}
	}
	return c
}

// ChatToBackend converts the domain aggregate into the wire representation.
func ChatToBackend(c model.Chat) remote.BackendChat {
	b := remote.BackendChat{
		ID:           c.ID,
		Title:        c.Name,
		IsGroupChat:  c.IsGroup,
		Participants: append([]string{}, c.Participants...),
		MessageCount: c.MessageCount,
		Messages:     MessagesToBackend(c.Messages),
	}
	if !c.StartDate.IsZero() {
		b.FirstMessageDate = timePtr(c.StartDate)
	}
	if !c.EndDate.IsZero() {
		b.LastMessageDate = timePtr(c.EndDate)
	}

	var meta map[string]any
	for k, v := range c.Metadata {
		switch k {
		case MetaFilename:
			b.Filename, _ = v.(string)
		case MetaFileSize:
			b.FileSize = toInt64(v)
		case MetaProcessingStatus:
			b.ProcessingStatus, _ = v.(string)
		default:
			if meta == nil {
				meta = map[string]any{}
			}
			meta[k] = v
		}
	}
	b.Metadata = meta
	return b
}

// MessageFromBackend converts one wire message.
func MessageFromBackend(b remote.BackendMessage) model.Message {
	return model.Message{
		ID:             b.ID,
		Sender:         b.Sender,
		Content:        b.Content,
		Timestamp:      b.Timestamp,
		Type:           model.MessageType(b.MessageType),
		IsMedia:        b.IsMedia,
		IsDeleted:      b.IsDeleted,
		IsForwarded:    b.IsForwarded,
		EmojiCount:     b.EmojiCount,
		SentimentScore: copyScore(b.SentimentScore),
	}
}

// MessageToBackend converts one domain message.
func MessageToBackend(m model.Message) remote.BackendMessage {
	return remote.BackendMessage{
		ID:             m.ID,
		Sender:         m.Sender,
		Content:        m.Content,
		Timestamp:      m.Timestamp,
		MessageType:    string(m.Type),
		IsMedia:        m.IsMedia,
		IsDeleted:      m.IsDeleted,
		IsForwarded:    m.IsForwarded,
		EmojiCount:     m.EmojiCount,
		SentimentScore: copyScore(m.SentimentScore),
	}
}

// MessagesFromBackend converts a message slice; nil stays empty, not nil.
func MessagesFromBackend(in []remote.BackendMessage) []model.Message {
	out := make([]model.Message, 0, len(in))
	for _, m := range in {
		out = append(out, MessageFromBackend(m))
	}
	return out
}

// MessagesToBackend converts a message slice.
func MessagesToBackend(in []model.Message) []remote.BackendMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]remote.BackendMessage, 0, len(in))
	for _, m := range in {
		out = append(out, MessageToBackend(m))
	}
	return out
}

func copyScore(s *float64) *float64 {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }

// toInt64 accepts the numeric shapes a metadata value takes after a JSON
// round trip through the local store.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
