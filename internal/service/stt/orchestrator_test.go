package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-session-insights-service/internal/pcm"
	"ai-session-insights-service/internal/resilience"
)

type fakeStrategy struct {
	name      string
	available bool
	text      string
	err       error
	calls     int
}

func (f *fakeStrategy) Name() string                   { return f.name }
func (f *fakeStrategy) Available(context.Context) bool { return f.available }
func (f *fakeStrategy) Transcribe(context.Context, Audio) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeLocal struct {
	available bool
	samples   int
	rate      int
}

func (f *fakeLocal) Available(context.Context) bool { return f.available }
func (f *fakeLocal) Transcribe(_ context.Context, samples []float32, rate int) (string, error) {
	f.samples = len(samples)
	f.rate = rate
	return "local text", nil
}

type fakeRemote struct {
	wav      []byte
	language string
	prompt   string
}

func (f *fakeRemote) Transcribe(_ context.Context, wav []byte, language, prompt string) (string, error) {
	f.wav = wav
	f.language = language
	f.prompt = prompt
	return "remote text", nil
}

func TestOrchestrator_Fallback(t *testing.T) {
	tests := []struct {
		name         string
		strategies   []*fakeStrategy
		wantText     string
		wantProvider string
		wantStatus   Status
	}{
		{
			name: "local empty falls back to remote",
			strategies: []*fakeStrategy{
				{name: "local", available: true, text: ""},
				{name: "openai", available: true, text: "hello world"},
			},
			wantText:     "hello world",
			wantProvider: "openai",
			wantStatus:   StatusOK,
		},
		{
			name: "first success wins",
			strategies: []*fakeStrategy{
				{name: "local", available: true, text: "  quick check  "},
				{name: "openai", available: true, text: "should not run"},
			},
			wantText:     "quick check",
			wantProvider: "local",
			wantStatus:   StatusOK,
		},
		{
			name: "error falls back",
			strategies: []*fakeStrategy{
				{name: "local", available: true, err: errors.New("boom")},
				{name: "openai", available: true, text: "recovered"},
			},
			wantText:     "recovered",
			wantProvider: "openai",
			wantStatus:   StatusOK,
		},
		{
			name: "unavailable skipped",
			strategies: []*fakeStrategy{
				{name: "local", available: false, text: "never"},
				{name: "openai", available: true, text: "remote"},
			},
			wantText:     "remote",
			wantProvider: "openai",
			wantStatus:   StatusOK,
		},
		{
			name: "all empty",
			strategies: []*fakeStrategy{
				{name: "local", available: true},
				{name: "openai", available: true, text: "   "},
			},
			wantStatus: StatusEmpty,
		},
		{
			name: "none available",
			strategies: []*fakeStrategy{
				{name: "local", available: false},
			},
			wantStatus: StatusUnavailable,
		},
		{
			name:       "no strategies",
			wantStatus: StatusUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ss []Strategy
			for _, s := range tt.strategies {
				ss = append(ss, s)
			}
			res := NewOrchestrator(time.Second, ss...).Transcribe(t.Context(), Audio{PCM: make([]byte, 320)})
			if res.Text != tt.wantText {
				t.Errorf("expected text %q, got %q", tt.wantText, res.Text)
			}
			if res.Provider != tt.wantProvider {
				t.Errorf("expected provider %q, got %q", tt.wantProvider, res.Provider)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, res.Status)
			}
			if len(res.Attempts) > len(tt.strategies) {
				t.Errorf("expected at most %d attempts, got %d", len(tt.strategies), len(res.Attempts))
			}
		})
	}
}

func TestOrchestrator_StopsAfterSuccess(t *testing.T) {
	first := &fakeStrategy{name: "local", available: true, text: "done"}
	second := &fakeStrategy{name: "openai", available: true, text: "unused"}

	NewOrchestrator(time.Second, first, second).Transcribe(t.Context(), Audio{})

	if second.calls != 0 {
		t.Errorf("expected second strategy not to run, got %d calls", second.calls)
	}
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	s := &fakeStrategy{name: "local", available: true, text: "x"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewOrchestrator(time.Second, s).Transcribe(ctx, Audio{})
	if s.calls != 0 {
		t.Errorf("expected no calls after cancel, got %d", s.calls)
	}
	if res.Status != StatusUnavailable {
		t.Errorf("expected unavailable, got %s", res.Status)
	}
}

func TestOrchestrator_IgnoresNil(t *testing.T) {
	o := NewOrchestrator(0, nil, &fakeStrategy{name: "openai"})
	if got := o.Providers(); len(got) != 1 || got[0] != "openai" {
		t.Errorf("expected [openai], got %v", got)
	}
}

func TestLocal_ConvertsSamples(t *testing.T) {
	l := &fakeLocal{available: true}
	s := Local("local", l)

	if !s.Available(t.Context()) {
		t.Fatal("expected local strategy available")
	}
	text, err := s.Transcribe(t.Context(), Audio{PCM: make([]byte, 640)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "local text" {
		t.Errorf("expected local text, got %q", text)
	}
	if l.samples != 320 {
		t.Errorf("expected 320 samples, got %d", l.samples)
	}
	if l.rate != pcm.SampleRate {
		t.Errorf("expected default rate %d, got %d", pcm.SampleRate, l.rate)
	}
}

func TestLocal_NilUnavailable(t *testing.T) {
	if Local("local", nil).Available(t.Context()) {
		t.Error("expected nil local transcriber to be unavailable")
	}
}

func TestRemote_EncodesWAV(t *testing.T) {
	r := &fakeRemote{}
	s := Remote("openai", r, RemoteOptions{Language: "en", Prompt: "meeting"})

	if _, err := s.Transcribe(t.Context(), Audio{PCM: make([]byte, 320), SampleRate: 16000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.wav) != pcm.WAVHeaderSize+320 {
		t.Errorf("expected %d wav bytes, got %d", pcm.WAVHeaderSize+320, len(r.wav))
	}
	if r.language != "en" || r.prompt != "meeting" {
		t.Errorf("expected en/meeting, got %s/%s", r.language, r.prompt)
	}
}

func TestGuard_OpenBreakerUnavailable(t *testing.T) {
	inner := &fakeStrategy{name: "openai", available: true, err: errors.New("down")}
	b := resilience.NewBreaker("openai", resilience.Config{Threshold: 1, ResetTimeout: time.Hour})
	retry := resilience.RetryConfig{Name: "openai", MaxRetries: -1}
	g := Guard(inner, b, retry)

	if !g.Available(t.Context()) {
		t.Fatal("expected guarded strategy available while closed")
	}
	if _, err := g.Transcribe(t.Context(), Audio{}); err == nil {
		t.Fatal("expected error from failing inner strategy")
	}
	if b.State() != resilience.Open {
		t.Fatalf("expected breaker open, got %s", b.State())
	}
	if g.Available(t.Context()) {
		t.Error("expected guarded strategy unavailable while open")
	}

	res := NewOrchestrator(time.Second, g).Transcribe(t.Context(), Audio{})
	if res.Status != StatusUnavailable {
		t.Errorf("expected unavailable, got %s", res.Status)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}
