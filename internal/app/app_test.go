package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"ai-session-insights-service/internal/config"
	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/pcm"
	"ai-session-insights-service/internal/service/stt/mock"
)

type collectingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (c *collectingNotifier) add(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, t)
}

func (c *collectingNotifier) UtteranceReady(_ context.Context, ev models.UtteranceReady) {
	c.add(ev.EventType)
}

func (c *collectingNotifier) SessionEnding(_ context.Context, ev models.SessionEnding) {
	c.add(ev.EventType)
}

func (c *collectingNotifier) SessionClosed(_ context.Context, ev models.SessionClosed) {
	c.add(ev.EventType)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("STT_REMOTE_PROVIDER", "mock")
	t.Setenv("STT_LOCAL_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SENTIMENT_URL", "")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "insights.db"))
	return config.Load()
}

func loudFrame(samples int) []byte {
	s := make([]int16, samples)
	for i := range s {
		if i%2 == 0 {
			s[i] = 3000
		} else {
			s[i] = -3000
		}
	}
	return pcm.FromInt16(s)
}

func TestApplication_EndToEnd(t *testing.T) {
	n := &collectingNotifier{}
	a, err := New(context.Background(), testConfig(t), WithNotifier(n))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Ready() {
		t.Error("expected not ready before Start")
	}
	a.Start()
	if !a.Ready() {
		t.Error("expected ready after Start")
	}
	if got := a.Orchestrator.Providers(); len(got) != 1 || got[0] != "mock" {
		t.Errorf("expected mock provider only, got %v", got)
	}

	ctx := context.Background()
	res, err := a.Manager.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// 1.5s of speech, flushed by Stop
	frame := loudFrame(a.FrameBytes() / pcm.BytesPerSample)
	for i := 0; i < 15; i++ {
		a.Manager.HandleFrame(frame)
	}

	rec, err := a.Manager.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a session record")
	}
	if err := a.Manager.WaitDelivered(ctx); err != nil {
		t.Fatalf("wait delivered: %v", err)
	}
	if rec.ID != res.SessionID {
		t.Errorf("expected record %s, got %s", res.SessionID, rec.ID)
	}
	if rec.Transcript != mock.DefaultUtterances[0] {
		t.Errorf("expected transcript %q, got %q", mock.DefaultUtterances[0], rec.Transcript)
	}
	if rec.Summary == nil || rec.Summary.Summary != models.SummaryUnavailable {
		t.Errorf("expected unavailable summary, got %+v", rec.Summary)
	}

	stored, err := a.Store.SessionInsights(ctx, rec.ID)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored insight, got %d", len(stored))
	}
	if stored[0].Sentiment.Label != models.SentimentNeutral {
		t.Errorf("expected neutral default sentiment, got %s", stored[0].Sentiment.Label)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	want := []string{models.EventUtteranceReady, models.EventSessionEnding, models.EventSessionClosed}
	if len(n.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, n.events)
	}
	for i := range want {
		if n.events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], n.events[i])
		}
	}
}

func TestApplication_WithoutStore(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), WithoutStore())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Store != nil {
		t.Error("expected no store")
	}
	res, err := a.Manager.Start(context.Background())
	if err != nil || res.SessionID == "" {
		t.Fatalf("expected generated session id, got %q err=%v", res.SessionID, err)
	}
}

func TestApplication_NoRemoteProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.STT.RemoteProvider = "openai"

	a, err := New(context.Background(), cfg, WithoutStore())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Shutdown(context.Background())

	// No API key: the openai strategy is left out.
	if got := a.Orchestrator.Providers(); len(got) != 0 {
		t.Errorf("expected no providers, got %v", got)
	}
}
