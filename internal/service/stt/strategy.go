package stt

import (
	"context"

	"ai-session-insights-service/internal/pcm"
	"ai-session-insights-service/internal/resilience"
)

type localStrategy struct {
	name string
	t    LocalTranscriber
}

// Local adapts a LocalTranscriber into a Strategy fed with normalized samples.
func Local(name string, t LocalTranscriber) Strategy {
	return &localStrategy{name: name, t: t}
}

func (s *localStrategy) Name() string { return s.name }

func (s *localStrategy) Available(ctx context.Context) bool {
	return s.t != nil && s.t.Available(ctx)
}

func (s *localStrategy) Transcribe(ctx context.Context, a Audio) (string, error) {
	rate := a.SampleRate
	if rate <= 0 {
		rate = pcm.SampleRate
	}
	return s.t.Transcribe(ctx, pcm.ToFloat32(a.PCM), rate)
}

// RemoteOptions are the per-call parameters sent to a remote API.
type RemoteOptions struct {
	Language string
	Prompt   string
}

type remoteStrategy struct {
	name string
	t    RemoteTranscriber
	opts RemoteOptions
}

// Remote adapts a RemoteTranscriber into a Strategy fed with WAV bytes.
// A remote strategy is available whenever it is configured.
func Remote(name string, t RemoteTranscriber, opts RemoteOptions) Strategy {
	return &remoteStrategy{name: name, t: t, opts: opts}
}

func (s *remoteStrategy) Name() string { return s.name }

func (s *remoteStrategy) Available(context.Context) bool { return s.t != nil }

func (s *remoteStrategy) Transcribe(ctx context.Context, a Audio) (string, error) {
	wav := a.WAV
	if len(wav) == 0 {
		rate := a.SampleRate
		if rate <= 0 {
			rate = pcm.SampleRate
		}
		wav = pcm.EncodeWAV(a.PCM, rate)
	}
	return s.t.Transcribe(ctx, wav, s.opts.Language, s.opts.Prompt)
}

type guardedStrategy struct {
	inner   Strategy
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// Guard wraps s with a circuit breaker and retry. While the breaker is open
// the strategy reports itself unavailable so the orchestrator moves on.
func Guard(s Strategy, b *resilience.Breaker, retry resilience.RetryConfig) Strategy {
	return &guardedStrategy{inner: s, breaker: b, retry: retry}
}

func (g *guardedStrategy) Name() string { return g.inner.Name() }

func (g *guardedStrategy) Available(ctx context.Context) bool {
	return g.breaker.Ready() && g.inner.Available(ctx)
}

func (g *guardedStrategy) Transcribe(ctx context.Context, a Audio) (string, error) {
	return resilience.ExecuteWithResult(g.breaker, func() (string, error) {
		var text string
		err := resilience.Retry(ctx, g.retry, func(ctx context.Context) error {
			var err error
			text, err = g.inner.Transcribe(ctx, a)
			return err
		})
		return text, err
	})
}
