package analysis

import (
	"github.com/memoryvault/memory-vault/internal/model"
)

// Sentiment labels.
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// DailySentiment is the mean sentiment of the scored messages of one day.
type DailySentiment struct {
	Date         string  `json:"date"`
	AverageScore float64 `json:"average_score"`
	Label        string  `json:"label"`
	MessageCount int     `json:"message_count"`
}

// SentimentLabel maps a score to positive (>= 0.05), negative (<= -0.05)
// or neutral.
func SentimentLabel(score float64) string {
	switch {
	case score >= 0.05:
		return LabelPositive
	case score <= -0.05:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// GetDailySentiment averages the present sentiment scores per UTC day.
// Days without any scored message are omitted. Output is ascending by date.
func GetDailySentiment(messages []model.Message) []DailySentiment {
	groups := GroupMessagesByDate(messages)
	out := []DailySentiment{}
	for _, d := range SortedDates(groups) {
		var sum float64
		n := 0
		for _, m := range groups[d] {
			if m.SentimentScore != nil {
				sum += *m.SentimentScore
				n++
			}
		}
		if n == 0 {
			continue
		}
		avg := sum / float64(n)
		out = append(out, DailySentiment{Date: d, AverageScore: avg, Label: SentimentLabel(avg), MessageCount: n})
	}
	return out
}

// OverallSentiment is the mean of the daily averages, 0 when there are none.
func OverallSentiment(daily []DailySentiment) float64 {
	if len(daily) == 0 {
		return 0
	}
	var sum float64
	for _, d := range daily {
		sum += d.AverageScore
	}
	return sum / float64(len(daily))
}
