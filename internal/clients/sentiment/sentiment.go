// Package sentiment is the HTTP client for a text sentiment classifier
// service (for example a transformers sidecar serving
// twitter-roberta-base-sentiment).
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ai-session-insights-service/internal/clients"
	"ai-session-insights-service/internal/models"
)

const service = "sentiment"

// ErrEmptyResult is returned when the classifier returns no label.
var ErrEmptyResult = errors.New("sentiment: empty result")

// score is one label with its confidence as returned by the service.
type score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Client calls POST {baseURL}/classify.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client, or returns nil when baseURL is empty.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    clients.NewHTTPClient(timeout),
	}
}

// Classify returns the highest-scoring label for text. The service may
// answer with a single object or a list of scores.
func (c *Client) Classify(ctx context.Context, text string) (models.Sentiment, error) {
	var raw json.RawMessage
	if err := clients.PostJSON(ctx, c.http, service, c.baseURL+"/classify", nil, classifyRequest{Text: text}, &raw); err != nil {
		return models.Sentiment{}, err
	}
	return decodeScores(raw)
}

func decodeScores(raw json.RawMessage) (models.Sentiment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return models.Sentiment{}, ErrEmptyResult
	}

	var scores []score
	if raw[0] == '[' {
		// Some pipelines nest one list per input.
		if err := json.Unmarshal(raw, &scores); err != nil {
			var nested [][]score
			if err2 := json.Unmarshal(raw, &nested); err2 != nil || len(nested) == 0 {
				return models.Sentiment{}, fmt.Errorf("sentiment decode: %w", err)
			}
			scores = nested[0]
		}
	} else {
		var one score
		if err := json.Unmarshal(raw, &one); err != nil {
			return models.Sentiment{}, fmt.Errorf("sentiment decode: %w", err)
		}
		scores = []score{one}
	}

	best := score{Score: -1}
	for _, s := range scores {
		if s.Label != "" && s.Score > best.Score {
			best = s
		}
	}
	if best.Label == "" {
		return models.Sentiment{}, ErrEmptyResult
	}
	return models.Sentiment{Label: strings.ToLower(best.Label), Score: best.Score}, nil
}
