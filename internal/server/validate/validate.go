package validate

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/memoryvault/memory-vault/internal/model"
)

// chat ids are UUIDs or client-generated tokens; keep them URL- and log-safe
var chatIDRx = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// ChatID validates a path chat id.
func ChatID(v string) error {
	if v == "" {
		return model.NewValidationError("chatId", "is required")
	}
	if !chatIDRx.MatchString(v) {
		return model.NewValidationError("chatId", "must match %s", chatIDRx.String())
	}
	return nil
}

// Date validates a YYYY-MM-DD calendar day.
func Date(v string) error {
	if _, err := time.Parse(model.DateLayout, v); err != nil {
		return model.NewValidationError("date", "%q is not YYYY-MM-DD", v)
	}
	return nil
}

// Title validates a chat title: non-empty after trimming, at most
// model.MaxChatNameLength characters.
func Title(v string) error {
	if strings.TrimSpace(v) == "" {
		return model.NewValidationError("title", "is required")
	}
	return nameLength("title", v)
}

// UploadName validates the optional name sent with an upload.
func UploadName(v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return nameLength("name", v)
}

func nameLength(field, v string) error {
	if utf8.RuneCountInString(v) > model.MaxChatNameLength {
		return model.NewValidationError(field, "exceeds %d characters", model.MaxChatNameLength)
	}
	return nil
}

// Query validates a search query.
func Query(v string) error {
	if strings.TrimSpace(v) == "" {
		return model.NewValidationError("q", "is required")
	}
	if utf8.RuneCountInString(v) > 500 {
		return model.NewValidationError("q", "exceeds 500 characters")
	}
	return nil
}

// Limit parses an optional positive integer query parameter capped at max.
func Limit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError("limit", "must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

// Bool parses an optional boolean query parameter.
func Bool(field, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewValidationError(field, "must be true or false")
	}
	return b, nil
}

// ExportFormat validates the export format.
func ExportFormat(v string) (string, error) {
	switch strings.ToLower(v) {
	case "", "json":
		return "json", nil
	case "zip":
		return "zip", nil
	default:
		return "", model.NewValidationError("format", "must be json or zip")
	}
}

// UploadFile validates the uploaded file name and size.
func UploadFile(name string, size, maxBytes int64) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".zip":
	default:
		return model.NewValidationError("file", "only .txt and .zip exports are supported")
	}
	if size > maxBytes {
		return model.NewValidationError("file", "exceeds %d bytes", maxBytes)
	}
	return nil
}
