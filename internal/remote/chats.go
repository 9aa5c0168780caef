package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

func chatPath(chatID string, sub ...string) string {
	p := "/chat/" + url.PathEscape(chatID)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

func requireID(chatID string) error {
	if chatID == "" {
		return fmt.Errorf("chat id is required")
	}
	return nil
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	var hr HealthResponse
	return c.Get(ctx, "/health", &hr)
}

// ListChats returns every chat known to the backend (without messages).
func (c *Client) ListChats(ctx context.Context) ([]BackendChat, error) {
	var lr ListChatsResponse
	if err := c.Get(ctx, "/chat", &lr); err != nil {
		return nil, err
	}
	return lr.Chats, nil
}

// GetChat returns one chat including its messages.
func (c *Client) GetChat(ctx context.Context, chatID string) (*BackendChat, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var chat BackendChat
	if err := c.Get(ctx, chatPath(chatID), &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// SaveChat creates or replaces a chat on the backend.
func (c *Client) SaveChat(ctx context.Context, chat BackendChat) (*BackendChat, error) {
	var saved BackendChat
	if err := c.Post(ctx, "/chat", chat, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteChat removes a chat on the backend.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	if err := requireID(chatID); err != nil {
		return err
	}
	return c.Delete(ctx, chatPath(chatID), nil)
}

// UploadChat uploads a raw export. name overrides the chat title when non-empty.
func (c *Client) UploadChat(ctx context.Context, file UploadFile, name string, onProgress ProgressFunc) (*UploadResponse, error) {
	fields := map[string]string{}
	if name != "" {
		fields["name"] = name
	}
	var ur UploadResponse
	if err := c.Upload(ctx, "/chat/upload", file, fields, onProgress, &ur); err != nil {
		return nil, err
	}
	return &ur, nil
}

// GetMessages returns all messages of a chat.
func (c *Client) GetMessages(ctx context.Context, chatID string) ([]BackendMessage, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var mr MessagesResponse
	if err := c.Get(ctx, chatPath(chatID, "messages"), &mr); err != nil {
		return nil, err
	}
	return mr.Messages, nil
}

// GetMessagesByDate returns the messages of one calendar day (YYYY-MM-DD).
func (c *Client) GetMessagesByDate(ctx context.Context, chatID, date string) ([]BackendMessage, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var mr MessagesResponse
	if err := c.Get(ctx, chatPath(chatID, "messages", "date", url.PathEscape(date)), &mr); err != nil {
		return nil, err
	}
	return mr.Messages, nil
}

// SearchMessages returns messages whose content contains query.
func (c *Client) SearchMessages(ctx context.Context, chatID, query string) ([]BackendMessage, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var mr MessagesResponse
	path := chatPath(chatID, "search") + "?q=" + url.QueryEscape(query)
	if err := c.Get(ctx, path, &mr); err != nil {
		return nil, err
	}
	return mr.Messages, nil
}

// GetDates returns the distinct message dates of a chat.
func (c *Client) GetDates(ctx context.Context, chatID string) ([]string, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var dr DatesResponse
	if err := c.Get(ctx, chatPath(chatID, "dates"), &dr); err != nil {
		return nil, err
	}
	return dr.Dates, nil
}

// GetStatistics returns the backend-computed statistics of a chat.
func (c *Client) GetStatistics(ctx context.Context, chatID string) (*ChatStatistics, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var st ChatStatistics
	if err := c.Get(ctx, chatPath(chatID, "statistics"), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetKeywords returns the top limit keywords of a chat.
func (c *Client) GetKeywords(ctx context.Context, chatID string, limit int) (*KeywordsResponse, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var kr KeywordsResponse
	path := chatPath(chatID, "keywords") + "?limit=" + strconv.Itoa(limit)
	if err := c.Get(ctx, path, &kr); err != nil {
		return nil, err
	}
	return &kr, nil
}

// AnalyzeSentiment asks the backend to score the chat's messages. Scores that
// already exist are kept unless reanalyze is set.
func (c *Client) AnalyzeSentiment(ctx context.Context, chatID string, reanalyze bool) (*SentimentResponse, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var sr SentimentResponse
	path := chatPath(chatID, "sentiment") + "?reanalyze=" + strconv.FormatBool(reanalyze)
	if err := c.Post(ctx, path, nil, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// GetSentiment returns the stored sentiment summary without re-scoring.
func (c *Client) GetSentiment(ctx context.Context, chatID string) (*SentimentResponse, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	var sr SentimentResponse
	if err := c.Get(ctx, chatPath(chatID, "sentiment"), &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// ExportChat downloads the chat export in format ("json" or "zip").
func (c *Client) ExportChat(ctx context.Context, chatID, format string) ([]byte, error) {
	if err := requireID(chatID); err != nil {
		return nil, err
	}
	path := chatPath(chatID, "export") + "?format=" + url.QueryEscape(format)
	var raw []byte
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
