package analysis

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/memoryvault/memory-vault/internal/model"
)

// UserStat is the message share of one sender.
type UserStat struct {
	Sender     string  `json:"sender"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ChatStatistics summarizes the activity of a chat.
type ChatStatistics struct {
	ChatID          string         `json:"chat_id"`
	TotalMessages   int            `json:"total_messages"`
	MediaMessages   int            `json:"media_messages"`
	DeletedMessages int            `json:"deleted_messages"`
	FirstMessage    string         `json:"first_message,omitempty"`
	LastMessage     string         `json:"last_message,omitempty"`
	DaysActive      int            `json:"days_active"`
	AveragePerDay   float64        `json:"average_per_day"`
	ByUser          []UserStat     `json:"by_user"`
	ByWeekday       map[string]int `json:"by_weekday"`
	ByHour          map[int]int    `json:"by_hour"`
	BusiestDay      string         `json:"busiest_day,omitempty"`
	BusiestDayCount int            `json:"busiest_day_count"`
	QuietestDay     string         `json:"quietest_day,omitempty"`
	BusiestHour     int            `json:"busiest_hour"`
}

// ComputeStatistics aggregates messages (in any order). Weekdays and hours
// are taken in UTC; ties resolve to the earliest weekday (Sunday first) or
// the lowest hour.
func ComputeStatistics(chatID string, messages []model.Message) ChatStatistics {
	st := ChatStatistics{
		ChatID:    chatID,
		ByUser:    []UserStat{},
		ByWeekday: map[string]int{},
		ByHour:    map[int]int{},
	}
	if len(messages) == 0 {
		return st
	}

	var first, last time.Time
	users := map[string]int{}
	var userOrder []string
	days := map[string]struct{}{}
	for i, m := range messages {
		ts := m.Timestamp.UTC()
		if i == 0 || ts.Before(first) {
			first = ts
		}
		if i == 0 || ts.After(last) {
			last = ts
		}
		if _, seen := users[m.Sender]; !seen {
			userOrder = append(userOrder, m.Sender)
		}
		users[m.Sender]++
		st.ByWeekday[ts.Weekday().String()]++
		st.ByHour[ts.Hour()]++
		days[ts.Format(model.DateLayout)] = struct{}{}
		if m.IsMedia {
			st.MediaMessages++
		}
		if m.IsDeleted {
			st.DeletedMessages++
		}
	}

	st.TotalMessages = len(messages)
	st.FirstMessage = first.Format(model.DateLayout)
	st.LastMessage = last.Format(model.DateLayout)
	st.DaysActive = len(days)
	st.AveragePerDay = float64(st.TotalMessages) / float64(st.DaysActive)

	for _, u := range userOrder {
		st.ByUser = append(st.ByUser, UserStat{
			Sender:     u,
			Count:      users[u],
			Percentage: float64(users[u]) * 100 / float64(st.TotalMessages),
		})
	}
	sort.SliceStable(st.ByUser, func(i, j int) bool { return st.ByUser[i].Count > st.ByUser[j].Count })

	quietest := -1
	for d := time.Sunday; d <= time.Saturday; d++ {
		n, ok := st.ByWeekday[d.String()]
		if !ok {
			continue
		}
		if n > st.BusiestDayCount {
			st.BusiestDay, st.BusiestDayCount = d.String(), n
		}
		if quietest < 0 || n < quietest {
			st.QuietestDay, quietest = d.String(), n
		}
	}

	best := -1
	for h := 0; h < 24; h++ {
		if n := st.ByHour[h]; n > best {
			st.BusiestHour, best = h, n
		}
	}
	return st
}

// ExtractKeywords returns the topN alphabetic words (longer than two
// letters, stop words removed) of the text messages, and the number of
// words that passed the filter.
func ExtractKeywords(messages []model.Message, topN int) ([]WordCount, int) {
	counts := map[string]int{}
	var order []string
	total := 0
	for _, m := range messages {
		if !isTextMessage(m) {
			continue
		}
		for _, tok := range strings.Fields(strings.ToLower(m.Content)) {
			tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) })
			if len([]rune(tok)) <= 2 || !isAlpha(tok) || isStopWord(tok) {
				continue
			}
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
			total++
		}
	}
	return topWords(order, counts, topN), total
}

func isTextMessage(m model.Message) bool {
	if m.IsMedia || m.IsDeleted {
		return false
	}
	return m.Type == "" || m.Type == model.MessageText
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
