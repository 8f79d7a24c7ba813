// Package openai adapts the OpenAI transcription endpoint to stt.RemoteTranscriber.
package openai

import (
	"context"

	"ai-session-insights-service/internal/clients/openai"
)

// DefaultPrompt biases whisper toward meeting vocabulary.
const DefaultPrompt = "This is a professional business meeting conversation. Participants are discussing projects, deadlines, action items, and business strategy. Use proper punctuation and capitalization."

// Adapter implements stt.RemoteTranscriber.
type Adapter struct {
	client *openai.Client
	model  string
}

// New wraps client, or returns nil when client is nil.
func New(client *openai.Client, model string) *Adapter {
	if client == nil {
		return nil
	}
	if model == "" {
		model = openai.DefaultTranscriptionModel
	}
	return &Adapter{client: client, model: model}
}

// Transcribe sends wav at temperature 0.
func (a *Adapter) Transcribe(ctx context.Context, wav []byte, language, prompt string) (string, error) {
	return a.client.Transcribe(ctx, openai.TranscriptionRequest{
		Model:       a.model,
		WAV:         wav,
		Language:    language,
		Prompt:      prompt,
		Temperature: 0,
	})
}
