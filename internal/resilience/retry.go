package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	Name         string // metrics label
	MaxRetries   int    // retries after the first attempt; negative disables
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool
}

// DefaultRetryConfig returns settings for remote collaborators that sit on
// the utterance path: few retries, short delays.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		Name:         name,
		MaxRetries:   2,
		BaseDelay:    250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		JitterFactor: 0.2,
		IsRetryable:  IsRetryable,
	}
}

// Retryable is implemented by errors that know whether a retry may succeed.
type Retryable interface {
	Retryable() bool
}

// IsRetryable classifies collaborator errors. Context errors are never
// retried; typed errors decide for themselves; gRPC codes and network
// timeouts follow the usual transient set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// retries are exhausted. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	logger := logging.WithComponent("retry")
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || !cfg.IsRetryable(lastErr) {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		metrics.DefaultMetrics.RecordRetry(cfg.Name)
		logger.Debug().
			Str("call", cfg.Name).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Retrying after error")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
}

// backoffDelay doubles BaseDelay per attempt up to MaxDelay, with jitter of
// +/- JitterFactor/2.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << min(attempt, 8)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryable
	}
	if c.Name == "" {
		c.Name = "unnamed"
	}
	return c
}
