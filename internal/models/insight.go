// Package models defines the data structures shared by the pipeline, the
// store and the outward event surfaces.
package models

import (
	"strings"
	"time"
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Sentiment is a classifier label with its confidence in [0, 1].
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NeutralSentiment is used whenever classification is unavailable.
func NeutralSentiment() Sentiment {
	return Sentiment{Label: SentimentNeutral, Score: 0.5}
}

// Insight is one transcribed and enriched utterance.
type Insight struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
	Sentiment  Sentiment `json:"sentiment"`
	Advice     string    `json:"advice"`
	Provider   string    `json:"provider,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// Transcript is the ordered list of a session's insights.
type Transcript []Insight

// Text joins insight texts with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t))
	for _, in := range t {
		if in.Text != "" {
			parts = append(parts, in.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the transcript holds no text.
func (t Transcript) Empty() bool {
	for _, in := range t {
		if in.Text != "" {
			return false
		}
	}
	return true
}
