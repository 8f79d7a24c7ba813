// Package stt defines the transcription collaborator contracts and the
// orchestrator that tries them in order.
package stt

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a collaborator that cannot serve requests.
var ErrUnavailable = errors.New("transcription service unavailable")

// Audio is one gated utterance ready for transcription.
type Audio struct {
	PCM        []byte // 16-bit mono little-endian
	WAV        []byte // PCM wrapped in a WAV container
	SampleRate int
}

// LocalTranscriber is an on-host inference engine taking normalized samples.
type LocalTranscriber interface {
	// Available reports whether the engine is loaded and reachable.
	Available(ctx context.Context) bool

	// Transcribe returns text for samples in [-1, 1).
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// RemoteTranscriber is a speech-to-text API taking a WAV file.
type RemoteTranscriber interface {
	Transcribe(ctx context.Context, wav []byte, language, prompt string) (string, error)
}

// Strategy is one entry in the orchestrator's ordered fallback list.
type Strategy interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Available reports whether the strategy should be attempted.
	Available(ctx context.Context) bool

	// Transcribe returns plain text, possibly empty.
	Transcribe(ctx context.Context, a Audio) (string, error)
}
