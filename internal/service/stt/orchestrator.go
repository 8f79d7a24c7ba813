package stt

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
)

// Status summarizes an orchestrated transcription.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"       // at least one strategy ran, none produced text
	StatusUnavailable Status = "unavailable" // no strategy could be attempted
)

// Outcome of a single strategy attempt.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// DefaultCallTimeout bounds one strategy call.
const DefaultCallTimeout = 20 * time.Second

// Attempt records one strategy invocation.
type Attempt struct {
	Provider string
	Outcome  string
	Err      error
	Latency  time.Duration
}

// Result is the orchestrator's uniform output.
type Result struct {
	Text     string
	Provider string
	Status   Status
	Attempts []Attempt
}

// Orchestrator tries strategies in order; the first non-empty text wins.
// It never returns an error: every failure degrades to empty text.
type Orchestrator struct {
	strategies  []Strategy
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewOrchestrator creates an orchestrator over the given ordered strategies.
// Nil strategies are ignored.
func NewOrchestrator(callTimeout time.Duration, strategies ...Strategy) *Orchestrator {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	o := &Orchestrator{
		callTimeout: callTimeout,
		logger:      logging.WithComponent("stt-orchestrator"),
	}
	for _, s := range strategies {
		if s != nil {
			o.strategies = append(o.strategies, s)
		}
	}
	return o
}

// Providers returns strategy names in fallback order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.strategies))
	for i, s := range o.strategies {
		names[i] = s.Name()
	}
	return names
}

// Transcribe runs the fallback policy for one utterance.
func (o *Orchestrator) Transcribe(ctx context.Context, a Audio) Result {
	var res Result
	attempted := false

	for _, s := range o.strategies {
		if ctx.Err() != nil {
			break
		}
		name := s.Name()
		if !s.Available(ctx) {
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: OutcomeSkipped})
			continue
		}
		attempted = true

		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		start := time.Now()
		text, err := s.Transcribe(callCtx, a)
		cancel()
		latency := time.Since(start)
		text = strings.TrimSpace(text)

		at := Attempt{Provider: name, Err: err, Latency: latency}
		switch {
		case err != nil:
			at.Outcome = OutcomeError
			o.logger.Warn().Err(err).Str("provider", name).Dur("latency", latency).
				Msg("Transcription failed, trying next provider")
		case text == "":
			at.Outcome = OutcomeEmpty
			o.logger.Debug().Str("provider", name).Msg("Transcription returned empty text")
		default:
			at.Outcome = OutcomeSuccess
		}
		metrics.DefaultMetrics.RecordTranscription(name, at.Outcome, latency.Seconds())
		res.Attempts = append(res.Attempts, at)

		if at.Outcome == OutcomeSuccess {
			res.Text = text
			res.Provider = name
			res.Status = StatusOK
			return res
		}
	}

	if !attempted {
		res.Status = StatusUnavailable
		o.logger.Warn().Msg("no transcription service available")
	} else {
		res.Status = StatusEmpty
	}
	metrics.DefaultMetrics.RecordTranscriptionEmpty()
	return res
}
