package enrich

import (
	"context"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/resilience"
)

type guardedClassifier struct {
	inner   Classifier
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// GuardClassifier wraps c with a circuit breaker and retry.
func GuardClassifier(c Classifier, b *resilience.Breaker, retry resilience.RetryConfig) Classifier {
	return &guardedClassifier{inner: c, breaker: b, retry: retry}
}

func (g *guardedClassifier) Classify(ctx context.Context, text string) (models.Sentiment, error) {
	return resilience.ExecuteWithResult(g.breaker, func() (models.Sentiment, error) {
		var s models.Sentiment
		err := resilience.Retry(ctx, g.retry, func(ctx context.Context) error {
			var err error
			s, err = g.inner.Classify(ctx, text)
			return err
		})
		return s, err
	})
}

type guardedAdvisor struct {
	inner   Advisor
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// GuardAdvisor wraps a with a circuit breaker and retry.
func GuardAdvisor(a Advisor, b *resilience.Breaker, retry resilience.RetryConfig) Advisor {
	return &guardedAdvisor{inner: a, breaker: b, retry: retry}
}

func (g *guardedAdvisor) Advise(ctx context.Context, text string) (string, error) {
	return resilience.ExecuteWithResult(g.breaker, func() (string, error) {
		var advice string
		err := resilience.Retry(ctx, g.retry, func(ctx context.Context) error {
			var err error
			advice, err = g.inner.Advise(ctx, text)
			return err
		})
		return advice, err
	})
}
