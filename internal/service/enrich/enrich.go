// Package enrich adds sentiment and advice to transcribed text.
package enrich

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
)

// Advice defaults.
const (
	AdviceUnavailable = "Advice service not available"
	AdviceFailed      = "Unable to generate advice"
)

// DefaultTimeout bounds each collaborator call.
const DefaultTimeout = 15 * time.Second

// Classifier labels text with a sentiment.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Sentiment, error)
}

// Advisor produces a short piece of advice for text.
type Advisor interface {
	Advise(ctx context.Context, text string) (string, error)
}

// Result is the merged enrichment for one utterance.
type Result struct {
	Sentiment models.Sentiment
	Advice    string
}

// Enricher runs sentiment and advice concurrently. It never fails; every
// collaborator error becomes a default value.
type Enricher struct {
	classifier Classifier
	advisor    Advisor
	timeout    time.Duration
	logger     zerolog.Logger
}

// New creates an enricher. Either collaborator may be nil.
func New(c Classifier, a Advisor, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{
		classifier: c,
		advisor:    a,
		timeout:    timeout,
		logger:     logging.WithComponent("enrich"),
	}
}

// Enrich classifies and advises on text.
func (e *Enricher) Enrich(ctx context.Context, text string) Result {
	start := time.Now()
	var res Result
	var g errgroup.Group

	g.Go(func() error {
		res.Sentiment = e.sentiment(ctx, text)
		return nil
	})
	g.Go(func() error {
		res.Advice = e.advice(ctx, text)
		return nil
	})
	g.Wait()

	metrics.DefaultMetrics.RecordEnrichment(time.Since(start).Seconds())
	return res
}

func (e *Enricher) sentiment(ctx context.Context, text string) models.Sentiment {
	if e.classifier == nil {
		metrics.DefaultMetrics.RecordEnrichmentDefault("sentiment")
		return models.NeutralSentiment()
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	s, err := e.classifier.Classify(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Sentiment classification failed, using neutral")
		metrics.DefaultMetrics.RecordEnrichmentDefault("sentiment")
		return models.NeutralSentiment()
	}
	return Normalize(s)
}

func (e *Enricher) advice(ctx context.Context, text string) string {
	if e.advisor == nil {
		metrics.DefaultMetrics.RecordEnrichmentDefault("advice")
		return AdviceUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	a, err := e.advisor.Advise(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Advice generation failed")
		metrics.DefaultMetrics.RecordEnrichmentDefault("advice")
		return AdviceFailed
	}
	if a = strings.TrimSpace(a); a == "" {
		return AdviceFailed
	}
	return a
}

// rawLabels maps the index labels some models emit.
var rawLabels = map[string]string{
	"label_0": models.SentimentNegative,
	"label_1": models.SentimentNeutral,
	"label_2": models.SentimentPositive,
}

// Normalize restricts the label to positive, negative or neutral and
// clamps the score to [0, 1].
func Normalize(s models.Sentiment) models.Sentiment {
	label := strings.ToLower(strings.TrimSpace(s.Label))
	if mapped, ok := rawLabels[label]; ok {
		label = mapped
	}
	switch label {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		label = models.SentimentNeutral
	}

	score := s.Score
	switch {
	case math.IsNaN(score):
		score = 0.5
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return models.Sentiment{Label: label, Score: score}
}
