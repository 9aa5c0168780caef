package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryvault/memory-vault/internal/model"
)

func msg(sender, content string, ts time.Time) model.Message {
	return model.Message{Sender: sender, Content: content, Timestamp: ts, Type: model.MessageText}
}

func day(d, h int) time.Time {
	return time.Date(2024, time.March, d, h, 0, 0, 0, time.UTC)
}

func TestGetMostCommonWords(t *testing.T) {
	got := GetMostCommonWords([]model.Message{{Content: "hi hi bye"}}, 5, 2)
	assert.Equal(t, []WordCount{{Word: "hi", Count: 2}, {Word: "bye", Count: 1}}, got)
}

func TestGetMostCommonWords_DefaultsAndTies(t *testing.T) {
	msgs := []model.Message{
		{Content: "Pizza, tonight? The pizza place!"},
		{Content: "ok tonight movie"},
		{Content: "movie"},
	}
	got := GetMostCommonWords(msgs, 10, 0)
	// "ok" is too short for the default, "the" is a stop word; ties keep first-seen order
	assert.Equal(t, []WordCount{
		{Word: "pizza", Count: 2},
		{Word: "tonight", Count: 2},
		{Word: "movie", Count: 2},
		{Word: "place", Count: 1},
	}, got)

	assert.Len(t, GetMostCommonWords(msgs, 1, 0), 1)
	assert.Empty(t, GetMostCommonWords(nil, 5, 0))
}

func TestGetHighActivityDays(t *testing.T) {
	var msgs []model.Message
	for d := 1; d <= 10; d++ {
		for i := 0; i < d; i++ {
			msgs = append(msgs, msg("A", "x", day(d, i)))
		}
	}
	assert.Equal(t, []string{"2024-03-10"}, GetHighActivityDays(msgs, 0.9))
	assert.Equal(t, []string{"2024-03-09", "2024-03-10"}, GetHighActivityDays(msgs, 0.8))
	// clamped to the last index
	assert.Equal(t, []string{"2024-03-10"}, GetHighActivityDays(msgs, 1.5))
	assert.Len(t, GetHighActivityDays(msgs, 0), 10)
	assert.Nil(t, GetHighActivityDays(nil, 0.9))
}

func TestGetHighActivityDays_TiesAtThreshold(t *testing.T) {
	var msgs []model.Message
	for d := 1; d <= 4; d++ {
		msgs = append(msgs, msg("A", "x", day(d, 1)), msg("B", "y", day(d, 2)))
	}
	// every day has two messages, so every day reaches the threshold
	assert.Len(t, GetHighActivityDays(msgs, 0.9), 4)
}

func TestGetSentimentEmoji(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{1, "😄"}, {0.6, "😄"}, {0.59, "🙂"}, {0.2, "🙂"}, {0.19, "😐"},
		{-0.19, "😐"}, {-0.2, "🙁"}, {-0.59, "🙁"}, {-0.6, "😢"}, {-1, "😢"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.score), func(t *testing.T) {
			assert.Equal(t, tc.want, GetSentimentEmoji(tc.score))
		})
	}
}

func TestGroupMessagesByDate_UsesUTCDayAndKeepsOrder(t *testing.T) {
	plus5 := time.FixedZone("plus5", 5*3600)
	msgs := []model.Message{
		msg("A", "late", day(2, 23)),
		msg("B", "early", day(2, 1)),
		// 2024-03-03 02:00 at +05:00 is still March 2nd in UTC
		msg("C", "tz", time.Date(2024, time.March, 3, 2, 0, 0, 0, plus5)),
		msg("A", "next", day(3, 8)),
	}
	groups := GroupMessagesByDate(msgs)
	require.Equal(t, []string{"2024-03-02", "2024-03-03"}, SortedDates(groups))
	second := groups["2024-03-02"]
	require.Len(t, second, 3)
	assert.Equal(t, "late", second[0].Content)
	assert.Equal(t, "early", second[1].Content)
	assert.Equal(t, "tz", second[2].Content)

	assert.Equal(t, []string{"2024-03-02", "2024-03-03"}, ChatDates(msgs))
	assert.Len(t, MessagesForDate(msgs, "2024-03-03"), 1)
}

func TestSearchMessages(t *testing.T) {
	msgs := []model.Message{msg("A", "Happy Birthday!", day(1, 1)), msg("B", "thanks", day(1, 2))}
	got := SearchMessages(msgs, "birthday")
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Sender)
	assert.Empty(t, SearchMessages(msgs, "  "))
}

func TestComputeStatistics(t *testing.T) {
	msgs := []model.Message{
		msg("Ann", "hello", day(4, 9)), // Monday
		msg("Bob", "hi", day(4, 9)),
		msg("Ann", "later", day(5, 21)), // Tuesday
		{Sender: "Ann", Content: "<Media omitted>", Timestamp: day(5, 22), IsMedia: true, Type: model.MessageImage},
	}
	st := ComputeStatistics("c1", msgs)

	assert.Equal(t, "c1", st.ChatID)
	assert.Equal(t, 4, st.TotalMessages)
	assert.Equal(t, 1, st.MediaMessages)
	assert.Equal(t, "2024-03-04", st.FirstMessage)
	assert.Equal(t, "2024-03-05", st.LastMessage)
	assert.Equal(t, 2, st.DaysActive)
	assert.InDelta(t, 2.0, st.AveragePerDay, 1e-9)
	require.Len(t, st.ByUser, 2)
	assert.Equal(t, UserStat{Sender: "Ann", Count: 3, Percentage: 75}, st.ByUser[0])
	assert.Equal(t, 2, st.ByWeekday["Monday"])
	assert.Equal(t, "Monday", st.BusiestDay)
	assert.Equal(t, 2, st.BusiestDayCount)
	assert.Equal(t, "Monday", st.QuietestDay)
	assert.Equal(t, 9, st.BusiestHour)
}

func TestComputeStatistics_Empty(t *testing.T) {
	st := ComputeStatistics("c1", nil)
	assert.Zero(t, st.TotalMessages)
	assert.NotNil(t, st.ByUser)
	assert.Empty(t, st.FirstMessage)
}

func TestExtractKeywords(t *testing.T) {
	msgs := []model.Message{
		msg("A", "Dinner at grandma's tonight, dinner!", day(1, 1)),
		msg("B", "ok 123 dinner", day(1, 2)),
		{Sender: "A", Content: "photo dinner", IsMedia: true, Type: model.MessageImage, Timestamp: day(1, 3)},
	}
	kw, total := ExtractKeywords(msgs, 2)
	assert.Equal(t, []WordCount{{Word: "dinner", Count: 3}, {Word: "tonight", Count: 1}}, kw)
	// dinner x3, tonight; grandma's is not alphabetic
	assert.Equal(t, 4, total)
}

func TestDailySentiment(t *testing.T) {
	pos, neg, flat := 0.5, -0.4, 0.02
	msgs := []model.Message{
		{Timestamp: day(1, 1), SentimentScore: &pos},
		{Timestamp: day(1, 2), SentimentScore: &flat},
		{Timestamp: day(2, 1), SentimentScore: &neg},
		{Timestamp: day(3, 1)},
	}
	daily := GetDailySentiment(msgs)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-03-01", daily[0].Date)
	assert.InDelta(t, 0.26, daily[0].AverageScore, 1e-9)
	assert.Equal(t, LabelPositive, daily[0].Label)
	assert.Equal(t, 2, daily[0].MessageCount)
	assert.Equal(t, LabelNegative, daily[1].Label)
	assert.InDelta(t, -0.07, OverallSentiment(daily), 1e-9)
	assert.Equal(t, LabelNeutral, SentimentLabel(0.01))
	assert.Zero(t, OverallSentiment(nil))
}

func TestEmojiTotals(t *testing.T) {
	msgs := []model.Message{{Sender: "A", EmojiCount: 2}, {Sender: "B"}, {Sender: "A", EmojiCount: 1}}
	assert.Equal(t, map[string]int{"A": 3}, EmojiTotals(msgs))
}
