// Package parser turns WhatsApp chat exports (.txt or .zip) into chats.
package parser

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/memoryvault/memory-vault/internal/model"
)

// DateOrder selects how the first two date fields are read.
type DateOrder int

const (
	// DayFirst reads DD/MM unless the second field cannot be a month.
	DayFirst DateOrder = iota
	// MonthFirst reads MM/DD.
	MonthFirst
)

// ParseDateOrder maps "DMY"/"MDY" (any case, empty means DMY).
func ParseDateOrder(s string) (DateOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DMY":
		return DayFirst, nil
	case "MDY":
		return MonthFirst, nil
	default:
		return DayFirst, fmt.Errorf("unknown date order %q (want DMY or MDY)", s)
	}
}

// DefaultChatName is used when the file name gives no hint.
const DefaultChatName = "Imported chat"

const maxEntryBytes = 256 << 20

// Options tune parsing. The zero value parses day-first in UTC and drops
// system lines.
type Options struct {
	DateOrder  DateOrder
	KeepSystem bool
	Location   *time.Location
}

// Parser is stateless and safe for concurrent use.
type Parser struct {
	opts Options
}

// New returns a Parser.
func New(opts Options) *Parser {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Parser{opts: opts}
}

var (
	bracketLine = regexp.MustCompile(`^\[(\d{1,2})/(\d{1,2})/(\d{2,4}),? (\d{1,2}):(\d{2})(?::(\d{2}))?(?: ?([AaPp][Mm]))?\] (.*)$`)
	dashLine    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4}),? (\d{1,2}):(\d{2})(?::(\d{2}))?(?: ?([AaPp][Mm]))? - (.*)$`)
	attachment  = regexp.MustCompile(`<attached: ([^>]+)>`)

	// whitespace and direction marks that WhatsApp sprinkles into exports
	invisibles = strings.NewReplacer("\u200e", "", "\u200f", "", "\ufeff", "", "\u202f", " ", "\u00a0", " ")
)

var systemContents = []string{
	"Messages and calls are end-to-end encrypted",
	"Your security code with",
	"security code changed",
}

var deletedContents = []string{
	"This message was deleted",
	"You deleted this message",
}

var omittedTypes = map[string]model.MessageType{
	"<Media omitted>":      "",
	"image omitted":        model.MessageImage,
	"video omitted":        model.MessageVideo,
	"audio omitted":        model.MessageAudio,
	"sticker omitted":      model.MessageSticker,
	"GIF omitted":          model.MessageImage,
	"document omitted":     model.MessageDocument,
	"Contact card omitted": model.MessageContact,
}

// ParseFile parses a .txt or .zip export from disk.
func (p *Parser) ParseFile(path string) (*model.Chat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.ParseBytes(filepath.Base(path), data)
}

// ParseBytes parses an export held in memory; name decides between zip and
// plain text and provides the chat name.
func (p *Parser) ParseBytes(name string, data []byte) (*model.Chat, error) {
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		return p.parseZip(name, data)
	}
	return p.Parse(bytes.NewReader(data), name)
}

func (p *Parser) parseZip(name string, data []byte) (*model.Chat, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, model.NewValidationError("file", "not a valid zip archive: %v", err)
	}
	var entry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if base == "_chat.txt" {
			entry = f
			break
		}
		if entry == nil && strings.EqualFold(filepath.Ext(base), ".txt") {
			entry = f
		}
	}
	if entry == nil {
		return nil, model.NewValidationError("file", "zip archive %s contains no chat text file", name)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", entry.Name, name, err)
	}
	defer func() { _ = rc.Close() }()

	chatName := name
	if filepath.Base(entry.Name) != "_chat.txt" {
		chatName = filepath.Base(entry.Name)
	}
	return p.Parse(io.LimitReader(rc, maxEntryBytes), chatName)
}

// Parse reads an export line by line. Lines that do not start a new message
// continue the previous one.
func (p *Parser) Parse(r io.Reader, name string) (*model.Chat, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	var (
		msgs    []model.Message
		current *model.Message
	)
	flush := func() {
		if current == nil {
			return
		}
		finish(current)
		if current.Type != model.MessageSystem || p.opts.KeepSystem {
			msgs = append(msgs, *current)
		}
		current = nil
	}

	for sc.Scan() {
		line := strings.TrimRight(invisibles.Replace(sc.Text()), "\r")
		ts, rest, ok := p.header(line)
		if !ok {
			if current != nil {
				current.Content += "\n" + line
			}
			continue
		}
		flush()

		m := model.Message{Timestamp: ts, Type: model.MessageText}
		if sender, text, found := strings.Cut(rest, ": "); found && sender != "" {
			m.Sender = strings.TrimSpace(sender)
			m.Content = text
			if isSystemContent(text) {
				m.Type = model.MessageSystem
			}
		} else {
			m.Content = rest
			m.Type = model.MessageSystem
		}
		current = &m
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(msgs) == 0 {
		return nil, model.NewValidationError("file", "no messages found in %s", name)
	}
	return buildChat(ChatNameFromFile(name), msgs), nil
}

// header recognizes the timestamp prefix of a message line.
func (p *Parser) header(line string) (time.Time, string, bool) {
	m := bracketLine.FindStringSubmatch(line)
	if m == nil {
		m = dashLine.FindStringSubmatch(line)
	}
	if m == nil {
		return time.Time{}, "", false
	}
	ts, err := p.timestamp(m[1], m[2], m[3], m[4], m[5], m[6], m[7])
	if err != nil {
		return time.Time{}, "", false
	}
	return ts, m[8], true
}

func (p *Parser) timestamp(first, second, year, hour, minute, sec, ampm string) (time.Time, error) {
	a, _ := strconv.Atoi(first)
	b, _ := strconv.Atoi(second)
	day, month := a, b
	if p.opts.DateOrder == MonthFirst || b > 12 {
		day, month = b, a
	}

	y, _ := strconv.Atoi(year)
	if len(year) == 2 {
		y += 2000
	}
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)
	s := 0
	if sec != "" {
		s, _ = strconv.Atoi(sec)
	}
	switch strings.ToUpper(ampm) {
	case "AM":
		if h == 12 {
			h = 0
		}
	case "PM":
		if h < 12 {
			h += 12
		}
	}

	if month < 1 || month > 12 || day < 1 || h > 23 || mi > 59 || s > 59 {
		return time.Time{}, fmt.Errorf("invalid timestamp %s/%s/%s %s:%s", first, second, year, hour, minute)
	}
	t := time.Date(y, time.Month(month), day, h, mi, s, 0, p.opts.Location)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid day %d for month %d", day, month)
	}
	return t, nil
}

func isSystemContent(s string) bool {
	for _, c := range systemContents {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

// finish classifies a complete message: media, deleted, forwarded, emoji.
func finish(m *model.Message) {
	if m.Type == model.MessageSystem {
		return
	}
	if first, rest, ok := strings.Cut(m.Content, "\n"); ok && isForwardMarker(first) {
		m.IsForwarded = true
		m.Content = rest
	} else if isForwardMarker(m.Content) {
		m.IsForwarded = true
	}

	content := strings.TrimSpace(m.Content)
	for _, d := range deletedContents {
		if content == d {
			m.IsDeleted = true
			return
		}
	}
	if typ, ok := mediaType(content); ok {
		m.IsMedia = true
		m.Type = typ
		return
	}
	if strings.HasPrefix(content, "location: ") {
		m.Type = model.MessageLocation
		return
	}
	m.EmojiCount = CountEmoji(m.Content)
}

func isForwardMarker(s string) bool {
	s = strings.TrimSpace(s)
	return s == "Forwarded" || s == "<Forwarded>" || s == "Forwarded message"
}

func mediaType(content string) (model.MessageType, bool) {
	if t, ok := omittedTypes[content]; ok {
		if t == "" {
			// Android exports do not say which kind; most shared media is photos
			t = model.MessageImage
		}
		return t, true
	}
	if m := attachment.FindStringSubmatch(content); m != nil {
		return typeForAttachment(m[1]), true
	}
	return "", false
}

func typeForAttachment(name string) model.MessageType {
	upper := strings.ToUpper(name)
	if strings.Contains(upper, "STICKER") {
		return model.MessageSticker
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".heic":
		return model.MessageImage
	case ".webp":
		return model.MessageSticker
	case ".mp4", ".mov", ".3gp", ".mkv":
		return model.MessageVideo
	case ".opus", ".ogg", ".mp3", ".m4a", ".aac", ".wav":
		return model.MessageAudio
	case ".vcf":
		return model.MessageContact
	default:
		return model.MessageDocument
	}
}

// ChatNameFromFile derives a chat name from an export file name:
// "WhatsApp Chat with Ann.txt" and "WhatsApp Chat - Ann.zip" both give "Ann".
func ChatNameFromFile(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, prefix := range []string{"WhatsApp Chat with ", "WhatsApp Chat - "} {
		if strings.HasPrefix(base, prefix) {
			base = strings.TrimPrefix(base, prefix)
			break
		}
	}
	base = strings.TrimSpace(base)
	if base == "" || base == "_chat" || base == "." {
		return DefaultChatName
	}
	return base
}

func buildChat(name string, msgs []model.Message) *model.Chat {
	chat := &model.Chat{Name: name, Messages: msgs, Participants: []string{}}
	seen := map[string]bool{}
	for i := range chat.Messages {
		m := &chat.Messages[i]
		m.ID = fmt.Sprintf("msg_%d", i+1)
		if m.Sender != "" && m.Type != model.MessageSystem && !seen[m.Sender] {
			seen[m.Sender] = true
			chat.Participants = append(chat.Participants, m.Sender)
		}
	}
	chat.MessageCount = len(msgs)
	chat.StartDate = msgs[0].Timestamp
	chat.EndDate = msgs[len(msgs)-1].Timestamp
	for _, m := range msgs {
		if m.Timestamp.Before(chat.StartDate) {
			chat.StartDate = m.Timestamp
		}
		if m.Timestamp.After(chat.EndDate) {
			chat.EndDate = m.Timestamp
		}
	}
	chat.IsGroup = len(chat.Participants) > 2
	return chat
}
