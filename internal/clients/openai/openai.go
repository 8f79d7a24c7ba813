// Package openai is a minimal client for the OpenAI audio transcription and
// chat completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ai-session-insights-service/internal/clients"
)

const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultTranscriptionModel = "whisper-1"
	DefaultChatModel          = "gpt-4o-mini"

	service = "openai"
)

// ErrNoChoices is returned when a chat completion has no message.
var ErrNoChoices = errors.New("openai: no choices in response")

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the OpenAI REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a client. It returns nil when no API key is configured so
// callers can treat a nil client as "service not available".
func New(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		http:    clients.NewHTTPClient(cfg.Timeout),
	}
}

// TranscriptionRequest is one audio transcription call.
type TranscriptionRequest struct {
	Model       string
	WAV         []byte
	Language    string
	Prompt      string
	Temperature float64
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe posts a WAV file to /audio/transcriptions and returns the text.
func (c *Client) Transcribe(ctx context.Context, r TranscriptionRequest) (string, error) {
	if r.Model == "" {
		r.Model = DefaultTranscriptionModel
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"model":           r.Model,
		"response_format": "json",
		"temperature":     strconv.FormatFloat(r.Temperature, 'f', -1, 64),
	}
	if r.Language != "" {
		fields["language"] = r.Language
	}
	if r.Prompt != "" {
		fields["prompt"] = r.Prompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("openai form field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("openai form file: %w", err)
	}
	if _, err := fw.Write(r.WAV); err != nil {
		return "", fmt.Errorf("openai form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("openai form close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai transcribe: %w", err)
	}
	defer resp.Body.Close()

	if err := clients.CheckResponse(service, resp); err != nil {
		return "", err
	}
	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai transcribe decode: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one chat completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSON        bool // request a JSON object response
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat runs a chat completion and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, r ChatRequest) (string, error) {
	in := chatRequest{
		Model:       r.Model,
		Messages:    r.Messages,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}
	if in.Model == "" {
		in.Model = DefaultChatModel
	}
	if r.JSON {
		in.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var out chatResponse
	if err := clients.PostJSON(ctx, c.http, service, c.baseURL+"/chat/completions", header, in, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
