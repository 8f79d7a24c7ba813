package models

import "time"

// End reasons recorded on a closed session.
const (
	EndReasonStopped  = "stopped"
	EndReasonSilence  = "silence"
	EndReasonShutdown = "shutdown"
)

// Summary placeholders.
const (
	SummaryUnavailable = "Summary service not available"
	SummaryFailed      = "Unable to generate summary"
	SummaryMissing     = "No summary available"
)

// Summary is the end-of-session digest.
type Summary struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []string `json:"actionItems"`
}

// PlaceholderSummary returns a summary carrying only text.
func PlaceholderSummary(text string) Summary {
	return Summary{Summary: text, KeyPoints: []string{}, ActionItems: []string{}}
}

// SessionRecord is a session as persisted at close.
type SessionRecord struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	Transcript string     `json:"transcript,omitempty"`
	Summary    *Summary   `json:"summary,omitempty"`
	EndReason  string     `json:"endReason,omitempty"`
	Insights   int        `json:"insights"`
}
