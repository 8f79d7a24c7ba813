// Package gate drops utterance buffers that are not worth transcribing and
// hands the rest to the transcription orchestrator.
package gate

import (
	"context"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/pcm"
	"ai-session-insights-service/internal/service/stt"
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonPass           Reason = "pass"
	ReasonEmpty          Reason = "empty"
	ReasonTooShort       Reason = "too_short"
	ReasonNoSpeechEnergy Reason = "no_speech_energy"
)

// Config holds gate thresholds.
type Config struct {
	MinUtteranceMs  int64
	MinSpeechEnergy float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinUtteranceMs:  1000,
		MinSpeechEnergy: 500,
	}
}

// Decision is the outcome of Admit.
type Decision struct {
	Pass       bool
	Reason     Reason
	DurationMs int64
	Energy     float64
}

// Transcriber is the orchestrator contract the gate feeds.
type Transcriber interface {
	Transcribe(ctx context.Context, a stt.Audio) stt.Result
}

// Gate admits or drops buffers.
type Gate struct {
	cfg    Config
	t      Transcriber
	logger zerolog.Logger
}

// New creates a gate in front of t.
func New(cfg Config, t Transcriber) *Gate {
	return &Gate{
		cfg:    cfg,
		t:      t,
		logger: logging.WithComponent("gate"),
	}
}

// Admit decides whether buf should be transcribed. It does not log.
func (g *Gate) Admit(buf pcm.Buffer) Decision {
	if buf.Empty() {
		return Decision{Reason: ReasonEmpty}
	}
	d := Decision{DurationMs: buf.DurationMs(), Energy: buf.Energy()}
	switch {
	case d.DurationMs < g.cfg.MinUtteranceMs:
		d.Reason = ReasonTooShort
	case d.Energy < g.cfg.MinSpeechEnergy:
		d.Reason = ReasonNoSpeechEnergy
	default:
		d.Pass = true
		d.Reason = ReasonPass
	}
	return d
}

// Transcribe admits buf and, on pass, runs the orchestrator with both the
// raw samples and a WAV copy. A dropped buffer yields an empty result and
// the orchestrator is not called.
func (g *Gate) Transcribe(ctx context.Context, buf pcm.Buffer) (stt.Result, Decision) {
	d := g.Admit(buf)
	metrics.DefaultMetrics.RecordGateDecision(string(d.Reason))
	if !d.Pass {
		g.logger.Debug().
			Str("reason", string(d.Reason)).
			Int64("durationMs", d.DurationMs).
			Float64("energy", d.Energy).
			Msg("Utterance dropped before transcription")
		return stt.Result{}, d
	}

	rate := buf.SampleRate
	if rate <= 0 {
		rate = pcm.SampleRate
	}
	return g.t.Transcribe(ctx, stt.Audio{
		PCM:        buf.PCM,
		WAV:        buf.WAV(),
		SampleRate: rate,
	}), d
}
