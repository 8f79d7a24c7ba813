// Package local is the HTTP client for an on-host whisper engine.
package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ai-session-insights-service/internal/clients"
	"ai-session-insights-service/internal/observability/logging"
)

const service = "local-stt"

// HealthTTL is how long an availability probe result is reused.
const HealthTTL = 10 * time.Second

type transcribeResponse struct {
	Text string `json:"text"`
}

// Client implements stt.LocalTranscriber against
// POST {url}/transcribe and GET {url}/health.
type Client struct {
	baseURL string
	http    *http.Client
	probe   *http.Client
	now     func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	healthy   bool
}

// New creates a client, or returns nil when baseURL is empty.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    clients.NewHTTPClient(timeout),
		probe:   clients.NewHTTPClient(2 * time.Second),
		now:     time.Now,
	}
}

// Available probes /health at most once per HealthTTL.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checkedAt.IsZero() && c.now().Sub(c.checkedAt) < HealthTTL {
		return c.healthy
	}

	healthy := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err == nil {
		if resp, err := c.probe.Do(req); err == nil {
			resp.Body.Close()
			healthy = resp.StatusCode == http.StatusOK
		}
	}
	if healthy != c.healthy || c.checkedAt.IsZero() {
		logger := logging.WithComponent(service)
		logger.Info().Bool("healthy", healthy).Msg("Local transcriber availability changed")
	}
	c.healthy = healthy
	c.checkedAt = c.now()
	return healthy
}

// Transcribe posts little-endian float32 samples and returns the text.
func (c *Client) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	body := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(s))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Sample-Rate", strconv.Itoa(sampleRate))

	resp, err := c.http.Do(req)
	if err != nil {
		c.markUnhealthy()
		return "", fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	if err := clients.CheckResponse(service, resp); err != nil {
		return "", err
	}
	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s decode: %w", service, err)
	}
	return strings.TrimSpace(out.Text), nil
}

// markUnhealthy forces the next Available call to report false until the
// cached probe expires.
func (c *Client) markUnhealthy() {
	c.mu.Lock()
	c.healthy = false
	c.checkedAt = c.now()
	c.mu.Unlock()
}
