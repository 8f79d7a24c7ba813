// Package resilience guards calls to remote collaborators with circuit
// breakers and retry with exponential backoff.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
)

// State represents circuit breaker state.
type State int

const (
	Closed   State = iota // calls flow
	Open                  // failing fast
	HalfOpen              // one probe at a time
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probe successes needed to close
}

// DefaultConfig returns the default breaker settings.
func DefaultConfig() Config {
	return Config{
		Threshold:         5,
		ResetTimeout:      30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = d.HalfOpenSuccesses
	}
	return c
}

// Breaker is a named circuit breaker.
type Breaker struct {
	name   string
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
	onChange  func(from, to State)
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg Config) *Breaker {
	return &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logging.WithComponent("breaker").With().Str("breaker", name).Logger(),
	}
}

// OnStateChange registers a transition callback. fn runs with the breaker
// locked and must not call back into it.
func (b *Breaker) OnStateChange(fn func(from, to State)) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ready reports whether a call would currently be allowed, without
// reserving the half-open probe.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout
	case HalfOpen:
		return !b.probing
	default:
		return true
	}
}

// Allow reserves a call slot. Every nil return must be followed by exactly
// one Success or Failure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transitionLocked(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.transitionLocked(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		b.transitionLocked(Open)
	case Closed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.transitionLocked(Open)
		}
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	b.transitionLocked(Closed)
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

// ExecuteWithResult runs fn under breaker protection and returns its value.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return v, nil
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0

	switch to {
	case Closed:
		b.failures = 0
		b.logger.Info().Msg("Circuit breaker closed")
	case Open:
		b.openedAt = b.now()
		b.logger.Warn().Int("failures", b.failures).Msg("Circuit breaker opened")
	case HalfOpen:
		b.logger.Info().Msg("Circuit breaker half-open")
	}

	metrics.DefaultMetrics.RecordBreakerState(b.name, int(to))
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
