// Package analysis derives read-only views from an in-memory message set.
// Every function is pure: no I/O, inputs are never modified.
package analysis

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/memoryvault/memory-vault/internal/model"
)

// DefaultMinWordLength applies when GetMostCommonWords gets minLength <= 0.
const DefaultMinWordLength = 3

// WordCount is one entry of a word frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// DayKey returns the UTC calendar day of m as YYYY-MM-DD.
func DayKey(m model.Message) string {
	return m.Timestamp.UTC().Format(model.DateLayout)
}

// GroupMessagesByDate partitions messages by UTC day. Each group keeps the
// input order.
func GroupMessagesByDate(messages []model.Message) map[string][]model.Message {
	groups := make(map[string][]model.Message)
	for _, m := range messages {
		k := DayKey(m)
		groups[k] = append(groups[k], m)
	}
	return groups
}

// SortedDates returns the keys of groups in ascending order.
func SortedDates(groups map[string][]model.Message) []string {
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// ChatDates returns the distinct days that have at least one message.
func ChatDates(messages []model.Message) []string {
	return SortedDates(GroupMessagesByDate(messages))
}

// MessagesForDate returns the messages of one UTC day (YYYY-MM-DD).
func MessagesForDate(messages []model.Message, date string) []model.Message {
	var out []model.Message
	for _, m := range messages {
		if DayKey(m) == date {
			out = append(out, m)
		}
	}
	return out
}

// SearchMessages returns messages whose content contains query,
// case-insensitively. An empty query matches nothing.
func SearchMessages(messages []model.Message, query string) []model.Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []model.Message
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			out = append(out, m)
		}
	}
	return out
}

// GetMostCommonWords counts words across all message contents and returns
// the top limit by descending count. Ties keep first-seen order.
func GetMostCommonWords(messages []model.Message, limit, minLength int) []WordCount {
	if minLength <= 0 {
		minLength = DefaultMinWordLength
	}
	counts := map[string]int{}
	var order []string
	for _, m := range messages {
		for _, w := range strings.Fields(stripPunctuation(strings.ToLower(m.Content))) {
			if len([]rune(w)) < minLength || isStopWord(w) {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	return topWords(order, counts, limit)
}

func topWords(order []string, counts map[string]int, limit int) []WordCount {
	out := make([]WordCount, 0, len(order))
	for _, w := range order {
		out = append(out, WordCount{Word: w, Count: counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
}

// GetHighActivityDays returns, ascending, the days whose message count is at
// least the count found at index floor(n*percentile) of the ascending count
// list. This is index-based thresholding, not an interpolated percentile:
// ties at the threshold are all included.
func GetHighActivityDays(messages []model.Message, percentile float64) []string {
	groups := GroupMessagesByDate(messages)
	if len(groups) == 0 {
		return nil
	}
	counts := make([]int, 0, len(groups))
	for _, msgs := range groups {
		counts = append(counts, len(msgs))
	}
	sort.Ints(counts)

	idx := int(math.Floor(float64(len(counts)) * percentile))
	if idx < 0 {
		idx = 0
	}
	if idx > len(counts)-1 {
		idx = len(counts) - 1
	}
	threshold := counts[idx]

	var out []string
	for _, d := range SortedDates(groups) {
		if len(groups[d]) >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// GetSentimentEmoji buckets a score in [-1, 1] into one of five faces.
func GetSentimentEmoji(score float64) string {
	switch {
	case score >= 0.6:
		return "😄"
	case score >= 0.2:
		return "🙂"
	case score > -0.2:
		return "😐"
	case score > -0.6:
		return "🙁"
	default:
		return "😢"
	}
}

// EmojiTotals sums EmojiCount per sender.
func EmojiTotals(messages []model.Message) map[string]int {
	out := map[string]int{}
	for _, m := range messages {
		if m.EmojiCount > 0 {
			out[m.Sender] += m.EmojiCount
		}
	}
	return out
}
