// Package summary produces the end-of-session digest.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/clients/openai"
	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
)

const systemPrompt = `Summarize meetings with key points and action items in JSON format: {"summary": "...", "keyPoints": [...], "actionItems": [...]}`

// DefaultTimeout bounds one summarization call.
const DefaultTimeout = 30 * time.Second

// Chatter is the chat completion contract, satisfied by *openai.Client.
type Chatter interface {
	Chat(ctx context.Context, r openai.ChatRequest) (string, error)
}

// Summarizer calls a chat model in JSON mode. It never fails: errors and
// missing fields become placeholders.
type Summarizer struct {
	chat    Chatter
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a summarizer. A nil chat yields the unavailable placeholder.
func New(chat Chatter, model string, timeout time.Duration) *Summarizer {
	if model == "" {
		model = openai.DefaultChatModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Summarizer{
		chat:    chat,
		model:   model,
		timeout: timeout,
		logger:  logging.WithComponent("summary"),
	}
}

type response struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []string `json:"actionItems"`
}

// Summarize digests the full transcript.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) models.Summary {
	if s.chat == nil {
		return models.PlaceholderSummary(models.SummaryUnavailable)
	}
	start := time.Now()
	defer func() { metrics.DefaultMetrics.RecordSummary(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.chat.Chat(ctx, openai.ChatRequest{
		Model: s.model,
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		MaxTokens:   500,
		Temperature: 0.5,
		JSON:        true,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Summary generation failed")
		return models.PlaceholderSummary(models.SummaryFailed)
	}

	out, err := parse(content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Summary response was not valid JSON")
		return models.PlaceholderSummary(models.SummaryFailed)
	}
	return out
}

func parse(content string) (models.Summary, error) {
	var r response
	if strings.TrimSpace(content) == "" {
		content = "{}"
	}
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return models.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	out := models.Summary{
		Summary:     strings.TrimSpace(r.Summary),
		KeyPoints:   r.KeyPoints,
		ActionItems: r.ActionItems,
	}
	if out.Summary == "" {
		out.Summary = models.SummaryMissing
	}
	if out.KeyPoints == nil {
		out.KeyPoints = []string{}
	}
	if out.ActionItems == nil {
		out.ActionItems = []string{}
	}
	return out, nil
}
