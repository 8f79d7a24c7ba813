// Package mock provides a canned remote transcriber for running the pipeline
// without cloud credentials. Each call returns the next meeting phrase.
package mock

import (
	"context"
	"sync"
	"time"
)

// DefaultUtterances are cycled through in order.
var DefaultUtterances = []string{
	"Let's start with a quick update on the release",
	"The migration is done but we still need to verify the backups",
	"I think we should move the launch to next Thursday",
	"Can someone follow up with the design team about the onboarding flow",
	"Great, thanks everyone, let's wrap up here",
}

// Adapter implements stt.RemoteTranscriber with canned responses.
type Adapter struct {
	mu         sync.Mutex
	utterances []string
	next       int
	latency    time.Duration
	calls      int
}

// Option configures the adapter.
type Option func(*Adapter)

// WithUtterances replaces the canned phrases.
func WithUtterances(u ...string) Option {
	return func(a *Adapter) { a.utterances = u }
}

// WithLatency delays every response to simulate a network call.
func WithLatency(d time.Duration) Option {
	return func(a *Adapter) { a.latency = d }
}

// New creates a new mock transcriber.
func New(opts ...Option) *Adapter {
	a := &Adapter{utterances: DefaultUtterances}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Transcribe returns the next canned phrase. Empty audio yields empty text.
func (a *Adapter) Transcribe(ctx context.Context, wav []byte, _, _ string) (string, error) {
	if a.latency > 0 {
		t := time.NewTimer(a.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(wav) == 0 || len(a.utterances) == 0 {
		return "", nil
	}
	text := a.utterances[a.next%len(a.utterances)]
	a.next++
	return text, nil
}

// Calls returns how many times Transcribe ran to completion.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
