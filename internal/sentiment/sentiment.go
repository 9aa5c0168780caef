// Package sentiment scores message text in [-1, 1].
package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/memoryvault/memory-vault/internal/model"
)

// Analyzer scores one piece of text. Implementations must be safe for
// concurrent use.
type Analyzer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// normalization constant; larger values flatten scores towards zero
const alpha = 15.0

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true,
	"cant": true, "can't": true, "isnt": true, "isn't": true, "wasnt": true,
	"wasn't": true, "didnt": true, "didn't": true, "wont": true, "won't": true,
}

var boosters = map[string]float64{
	"very": 0.3, "really": 0.3, "so": 0.2, "extremely": 0.5, "super": 0.3, "too": 0.1,
}

// Lexicon is a deterministic word-list scorer.
type Lexicon struct {
	words map[string]float64
}

// NewLexicon returns a scorer over the built-in English word list.
func NewLexicon() *Lexicon {
	return &Lexicon{words: defaultLexicon}
}

// NewLexiconWith returns a scorer that also knows extra; extra wins on
// conflicts.
func NewLexiconWith(extra map[string]float64) *Lexicon {
	words := make(map[string]float64, len(defaultLexicon)+len(extra))
	for w, v := range defaultLexicon {
		words[w] = v
	}
	for w, v := range extra {
		words[strings.ToLower(w)] = v
	}
	return &Lexicon{words: words}
}

// Score implements Analyzer. Text without known words scores 0.
func (l *Lexicon) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var sum float64
	negate := false
	boost := 0.0
	for _, tok := range tokenize(text) {
		if negations[tok] {
			negate = true
			continue
		}
		if b, ok := boosters[tok]; ok {
			boost += b
			continue
		}
		v, ok := l.words[tok]
		if !ok {
			continue
		}
		if v > 0 {
			v += boost
		} else {
			v -= boost
		}
		if negate {
			v = -v * 0.74
		}
		sum += v
		negate = false
		boost = 0
	}
	sum += emojiScore(text)
	if sum == 0 {
		return 0, nil
	}
	return sum / math.Sqrt(sum*sum+alpha), nil
}

// tokenize lower-cases text and splits it on anything but letters and
// apostrophes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func emojiScore(text string) float64 {
	var s float64
	for _, r := range text {
		s += emojiWeights[r]
	}
	return s
}

// Scorable reports whether m carries text worth scoring.
func Scorable(m model.Message) bool {
	if m.IsMedia || m.IsDeleted || m.Type == model.MessageSystem {
		return false
	}
	return strings.TrimSpace(m.Content) != ""
}

// AnalyzeMessages scores msgs in place and returns how many were scored.
// Messages that already have a score keep it unless reanalyze is set.
func AnalyzeMessages(ctx context.Context, a Analyzer, msgs []model.Message, reanalyze bool) (int, error) {
	scored := 0
	for i := range msgs {
		m := &msgs[i]
		if !Scorable(*m) {
			continue
		}
		if m.SentimentScore != nil && !reanalyze {
			continue
		}
		s, err := a.Score(ctx, m.Content)
		if err != nil {
			return scored, err
		}
		s = math.Round(s*1000) / 1000
		m.SentimentScore = &s
		scored++
	}
	return scored, nil
}
