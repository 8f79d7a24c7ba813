// Package audio adapts inbound audio streams of arbitrary chunk sizes into
// the fixed-size frames the session manager classifies.
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/pcm"
)

var (
	ErrChunkTooLarge = errors.New("audio chunk exceeds limit")
	ErrStreamTooLong = errors.New("audio stream exceeds limit")
	ErrClosed        = errors.New("audio handler closed")
)

// FrameSink consumes fixed-size 16-bit mono PCM frames.
type FrameSink interface {
	HandleFrame(frame []byte)
}

// Limits are per-stream safety guardrails.
type Limits struct {
	MaxChunkBytes  int           // largest single inbound chunk
	MaxStreamBytes int64         // total bytes per stream; 0 disables
	MaxDuration    time.Duration // wall-clock stream length; 0 disables
}

// DefaultLimits returns the default stream limits.
func DefaultLimits() Limits {
	return Limits{
		MaxChunkBytes:  64 * 1024,
		MaxStreamBytes: 256 * 1024 * 1024, // ~2.3h at 16kHz 16-bit mono
		MaxDuration:    2 * time.Hour,
	}
}

// FrameBytes returns the byte size of one frame of d at sampleRate.
func FrameBytes(d time.Duration, sampleRate int) int {
	n := pcm.BytesFor(d, sampleRate)
	if n < pcm.BytesPerSample {
		n = pcm.BytesPerSample
	}
	return n
}

// Stats describes a stream so far.
type Stats struct {
	Bytes    int64
	Frames   int
	Duration time.Duration
}

// Handler re-chunks one inbound stream into frames. It is safe for use by
// one writer and concurrent Stats readers.
type Handler struct {
	sink       FrameSink
	frameBytes int
	limits     Limits
	now        func() time.Time
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	mu        sync.Mutex
	pending   []byte
	startedAt time.Time
	bytes     int64
	frames    int
	closed    bool
}

// NewHandler creates a handler that forwards frameBytes-sized frames to sink.
func NewHandler(sink FrameSink, frameBytes int, limits Limits) *Handler {
	if frameBytes <= 0 {
		frameBytes = FrameBytes(100*time.Millisecond, pcm.SampleRate)
	}
	// Frames must hold whole samples.
	frameBytes -= frameBytes % pcm.BytesPerSample
	return &Handler{
		sink:       sink,
		frameBytes: frameBytes,
		limits:     limits,
		now:        time.Now,
		logger:     logging.WithComponent("audio"),
		metrics:    metrics.DefaultMetrics,
		pending:    make([]byte, 0, frameBytes),
		startedAt:  time.Now(),
	}
}

// Write accepts one inbound chunk and forwards every complete frame. A
// limit violation closes the handler; buffered audio is discarded.
func (h *Handler) Write(chunk []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.limits.MaxChunkBytes > 0 && len(chunk) > h.limits.MaxChunkBytes {
		h.metrics.RecordChunkRejected("chunk_size")
		return fmt.Errorf("%w: %d > %d bytes", ErrChunkTooLarge, len(chunk), h.limits.MaxChunkBytes)
	}
	if h.limits.MaxStreamBytes > 0 && h.bytes+int64(len(chunk)) > h.limits.MaxStreamBytes {
		h.rejectLocked("stream_bytes")
		return fmt.Errorf("%w: more than %d bytes", ErrStreamTooLong, h.limits.MaxStreamBytes)
	}
	if h.limits.MaxDuration > 0 && h.now().Sub(h.startedAt) > h.limits.MaxDuration {
		h.rejectLocked("stream_duration")
		return fmt.Errorf("%w: longer than %v", ErrStreamTooLong, h.limits.MaxDuration)
	}

	h.bytes += int64(len(chunk))
	for len(chunk) > 0 {
		n := min(h.frameBytes-len(h.pending), len(chunk))
		h.pending = append(h.pending, chunk[:n]...)
		chunk = chunk[n:]
		if len(h.pending) == h.frameBytes {
			h.emitLocked()
		}
	}
	return nil
}

// Close forwards any whole samples still buffered and stops the handler.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.pending = h.pending[:len(h.pending)-len(h.pending)%pcm.BytesPerSample]
	if len(h.pending) > 0 {
		h.emitLocked()
	}
	h.closed = true
}

// Stats returns the stream totals so far.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Bytes:    h.bytes,
		Frames:   h.frames,
		Duration: time.Duration(pcm.DurationMs(int(h.bytes), pcm.SampleRate)) * time.Millisecond,
	}
}

func (h *Handler) emitLocked() {
	frame := make([]byte, len(h.pending))
	copy(frame, h.pending)
	h.pending = h.pending[:0]
	h.frames++
	h.sink.HandleFrame(frame)
}

func (h *Handler) rejectLocked(reason string) {
	h.metrics.RecordChunkRejected(reason)
	h.logger.Warn().
		Str("reason", reason).
		Int64("bytes", h.bytes).
		Int("frames", h.frames).
		Msg("Audio stream rejected, dropping buffered audio")
	h.pending = h.pending[:0]
	h.closed = true
}
