package segment

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/pcm"
)

// Trigger names the boundary event that emitted a buffer.
type Trigger string

const (
	TriggerPause     Trigger = "pause"
	TriggerMaxLength Trigger = "max_length"
	TriggerFlush     Trigger = "flush"
)

// Config holds segmentation thresholds.
type Config struct {
	PauseThreshold   time.Duration // inactive gap that ends an utterance
	SilenceThreshold time.Duration // no speech at all for this long ends the session
	MaxUtterance     time.Duration // force-emit a buffer that never pauses; 0 disables
	EnergyThreshold  float64
	SampleRate       int
}

// DefaultConfig returns the default segmentation thresholds.
func DefaultConfig() Config {
	return Config{
		PauseThreshold:   2 * time.Second,
		SilenceThreshold: 60 * time.Second,
		MaxUtterance:     30 * time.Second,
		EnergyThreshold:  pcm.DefaultEnergyThreshold,
		SampleRate:       pcm.SampleRate,
	}
}

// Listener receives segmenter output.
//
// OnUtterance is invoked synchronously from OnFrame, in segmentation order.
// It must not block and must not call back into the Segmenter.
// OnSilence is invoked from the timer goroutine at most once per Arm.
type Listener interface {
	OnUtterance(buf pcm.Buffer, trigger Trigger)
	OnSilence()
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithClock overrides the clock used for pause detection.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) {
		s.now = now
	}
}

// Segmenter accumulates active frames and emits an utterance buffer once a
// pause of at least PauseThreshold follows them. It owns the silence timer.
//
// Timer lifecycle:
//
//	Arm() ──→ armed ──(active frame)──→ re-armed
//	            │
//	            ├── SilenceThreshold without speech ──→ OnSilence, disarmed
//	            └── Disarm() / Reset() ──→ disarmed
type Segmenter struct {
	cfg        Config
	classifier pcm.Classifier
	listener   Listener
	now        func() time.Time
	maxBytes   int
	logger     zerolog.Logger

	mu             sync.Mutex
	speech         []byte
	frames         int
	startedAt      time.Time
	lastSpeechAt   time.Time
	lastAnyAudioAt time.Time

	running    bool
	timer      *time.Timer
	generation uint64
}

// NewSegmenter creates a segmenter reporting to l.
func NewSegmenter(cfg Config, l Listener, opts ...Option) *Segmenter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.SampleRate
	}
	s := &Segmenter{
		cfg:        cfg,
		classifier: pcm.NewClassifier(cfg.EnergyThreshold),
		listener:   l,
		now:        time.Now,
		logger:     logging.WithComponent("segmenter"),
	}
	if cfg.MaxUtterance > 0 {
		s.maxBytes = pcm.BytesFor(cfg.MaxUtterance, cfg.SampleRate)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFrame classifies one frame and advances segmentation state.
func (s *Segmenter) OnFrame(frame []byte) pcm.Classification {
	c := s.classifier.Classify(frame)
	metrics.DefaultMetrics.RecordFrame(len(frame), c.Active)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Active {
		if len(s.speech) == 0 {
			s.startedAt = now
		}
		s.speech = append(s.speech, frame[:len(frame)&^1]...)
		s.frames++
		s.lastSpeechAt = now
		s.lastAnyAudioAt = now
		s.armLocked()

		if s.maxBytes > 0 && len(s.speech) >= s.maxBytes {
			s.emitLocked(now, TriggerMaxLength)
		}
		return c
	}

	if len(s.speech) > 0 && now.Sub(s.lastSpeechAt) >= s.cfg.PauseThreshold {
		s.emitLocked(now, TriggerPause)
	}
	return c
}

// Flush returns the pending buffer and clears it. It reports false when
// nothing was buffered.
func (s *Segmenter) Flush() (pcm.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.speech) == 0 {
		return pcm.Buffer{}, false
	}
	buf := s.takeLocked(s.now())
	metrics.DefaultMetrics.RecordUtterance(string(TriggerFlush), buf.Duration().Seconds())
	return buf, true
}

// Arm starts the silence timer. Active frames re-arm it until it fires or
// is disarmed.
func (s *Segmenter) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.armLocked()
}

// Disarm stops the silence timer without touching the buffer.
func (s *Segmenter) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

// Reset clears the buffer and disarms the timer.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	s.speech = nil
	s.frames = 0
	s.startedAt = time.Time{}
	s.lastSpeechAt = time.Time{}
	s.lastAnyAudioAt = time.Time{}
}

// Armed reports whether the silence timer is pending.
func (s *Segmenter) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.timer != nil
}

// Pending returns the number of buffered bytes.
func (s *Segmenter) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.speech)
}

// LastSpeechAt returns the time of the most recent active frame.
func (s *Segmenter) LastSpeechAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSpeechAt
}

func (s *Segmenter) armLocked() {
	if !s.running || s.cfg.SilenceThreshold <= 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	s.timer = time.AfterFunc(s.cfg.SilenceThreshold, func() {
		s.fireSilence(gen)
	})
}

func (s *Segmenter) disarmLocked() {
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Segmenter) fireSilence(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.timer = nil
	lastSpeech := s.lastSpeechAt
	s.mu.Unlock()

	metrics.DefaultMetrics.RecordSilence()
	s.logger.Info().
		Dur("threshold", s.cfg.SilenceThreshold).
		Time("lastSpeechAt", lastSpeech).
		Msg("Sustained silence detected")

	if s.listener != nil {
		s.listener.OnSilence()
	}
}

func (s *Segmenter) takeLocked(now time.Time) pcm.Buffer {
	buf := pcm.Buffer{
		PCM:        s.speech,
		SampleRate: s.cfg.SampleRate,
		Frames:     s.frames,
		StartedAt:  s.startedAt,
		EndedAt:    s.lastSpeechAt,
	}
	if buf.EndedAt.IsZero() {
		buf.EndedAt = now
	}
	// The slice now belongs to buf; the next utterance allocates fresh.
	s.speech = nil
	s.frames = 0
	return buf
}

func (s *Segmenter) emitLocked(now time.Time, trigger Trigger) {
	buf := s.takeLocked(now)
	metrics.DefaultMetrics.RecordUtterance(string(trigger), buf.Duration().Seconds())
	s.logger.Debug().
		Str("trigger", string(trigger)).
		Int("frames", buf.Frames).
		Int64("durationMs", buf.DurationMs()).
		Msg("Utterance segmented")

	if s.listener != nil {
		s.listener.OnUtterance(buf, trigger)
	}
}
