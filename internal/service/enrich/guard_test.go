package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-session-insights-service/internal/clients"
	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/resilience"
)

type flakyClassifier struct {
	calls int
	fails int
}

func (f *flakyClassifier) Classify(context.Context, string) (models.Sentiment, error) {
	f.calls++
	if f.calls <= f.fails {
		return models.Sentiment{}, &clients.StatusError{StatusCode: 503}
	}
	return models.Sentiment{Label: models.SentimentPositive, Score: 0.9}, nil
}

func fastRetry(name string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig(name)
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

func TestGuardClassifier_RetriesTransientErrors(t *testing.T) {
	inner := &flakyClassifier{fails: 1}
	c := GuardClassifier(inner, resilience.NewBreaker("sentiment-test", resilience.DefaultConfig()), fastRetry("sentiment-test"))

	s, err := c.Classify(context.Background(), "great")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Label != models.SentimentPositive {
		t.Errorf("expected positive, got %s", s.Label)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestGuardAdvisor_OpenBreaker(t *testing.T) {
	b := resilience.NewBreaker("advice-test", resilience.Config{Threshold: 1, ResetTimeout: time.Hour})
	retry := fastRetry("advice-test")
	retry.MaxRetries = -1
	a := GuardAdvisor(fakeAdvisor{err: errors.New("down")}, b, retry)

	if _, err := a.Advise(context.Background(), "x"); err == nil {
		t.Fatal("expected first call to fail")
	}
	if _, err := a.Advise(context.Background(), "x"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}

	// The enricher turns the open breaker into the failure default.
	res := New(nil, a, time.Second).Enrich(context.Background(), "x")
	if res.Advice != AdviceFailed {
		t.Errorf("expected %q, got %q", AdviceFailed, res.Advice)
	}
}
