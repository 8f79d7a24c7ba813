package enrich

import (
	"context"
	"fmt"

	"ai-session-insights-service/internal/clients/openai"
)

const adviceSystemPrompt = "You are a helpful assistant providing brief, actionable advice based on conversation transcripts. Keep responses under 50 words."

// OpenAIAdvisor implements Advisor with a chat completion.
type OpenAIAdvisor struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdvisor returns nil when client is nil.
func NewOpenAIAdvisor(client *openai.Client, model string) *OpenAIAdvisor {
	if client == nil {
		return nil
	}
	if model == "" {
		model = openai.DefaultChatModel
	}
	return &OpenAIAdvisor{client: client, model: model}
}

// Advise asks for brief advice on one utterance.
func (a *OpenAIAdvisor) Advise(ctx context.Context, text string) (string, error) {
	return a.client.Chat(ctx, openai.ChatRequest{
		Model: a.model,
		Messages: []openai.Message{
			{Role: "system", Content: adviceSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Based on this conversation excerpt, provide brief advice: \"%s\"", text)},
		},
		MaxTokens:   100,
		Temperature: 0.7,
	})
}
