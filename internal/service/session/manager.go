package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/pcm"
	"ai-session-insights-service/internal/service/enrich"
	"ai-session-insights-service/internal/service/gate"
	"ai-session-insights-service/internal/service/segment"
	"ai-session-insights-service/internal/service/stt"
)

// DefaultFlushTimeout bounds how long a closing session waits for
// in-flight utterances.
const DefaultFlushTimeout = 5 * time.Second

// persistTimeout bounds each store call.
const persistTimeout = 5 * time.Second

// Transcriber gates and transcribes one utterance buffer.
type Transcriber interface {
	Transcribe(ctx context.Context, buf pcm.Buffer) (stt.Result, gate.Decision)
}

// Enricher adds sentiment and advice to text.
type Enricher interface {
	Enrich(ctx context.Context, text string) enrich.Result
}

// Summarizer digests a full transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) models.Summary
}

// Store persists sessions and insights.
type Store interface {
	CreateSession(ctx context.Context, startedAt time.Time) (string, error)
	AppendInsight(ctx context.Context, in models.Insight) error
	CloseSession(ctx context.Context, rec models.SessionRecord) error
}

// Notifier receives the outward session events. Implementations must not
// call back into the Manager.
type Notifier interface {
	UtteranceReady(ctx context.Context, ev models.UtteranceReady)
	SessionEnding(ctx context.Context, ev models.SessionEnding)
	SessionClosed(ctx context.Context, ev models.SessionClosed)
}

// Config holds manager settings.
type Config struct {
	Segmenter    segment.Config
	FlushTimeout time.Duration
}

// DefaultConfig returns the default manager settings.
func DefaultConfig() Config {
	return Config{
		Segmenter:    segment.DefaultConfig(),
		FlushTimeout: DefaultFlushTimeout,
	}
}

// Deps are the manager's collaborators. Transcriber is required; the rest
// may be nil.
type Deps struct {
	Transcriber Transcriber
	Enricher    Enricher
	Summarizer  Summarizer
	Store       Store
	Notifier    Notifier
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID        string `json:"sessionId"`
	AlreadyRecording bool   `json:"alreadyRecording"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for timestamps and pause detection.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// run is the state of one session from Start until Closed.
type run struct {
	id        string
	startedAt time.Time
	reason    string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ids    *segment.Generator
	seq    *sequencer
	out    *outbox

	mu         sync.Mutex
	transcript models.Transcript
	notes      []string

	closing chan struct{}
	record  *models.SessionRecord
}

func (r *run) snapshot() models.Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(models.Transcript(nil), r.transcript...)
}

// Manager owns the single recording session of the process. It feeds
// frames to the segmenter, processes every utterance on its own goroutine
// and appends the results to the transcript in segmentation order. Store
// writes and events leave through the session's outbox, so no sink ever
// blocks frame intake or the close.
//
// Lock order: intake, then the segmenter lock, then m.mu. HandleFrame holds
// intake shared while the segmenter calls OnUtterance under its own lock.
// end takes intake exclusively before m.mu, so no frame is accepted between
// leaving Recording and the final flush.
type Manager struct {
	cfg    Config
	deps   Deps
	seg    *segment.Segmenter
	life   *Lifecycle
	now    func() time.Time
	logger zerolog.Logger

	startMu sync.Mutex // serializes Start
	intake  sync.RWMutex
	mu      sync.Mutex
	current *run
}

// NewManager creates a manager in Idle.
func NewManager(cfg Config, deps Deps, opts ...Option) *Manager {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if deps.Enricher == nil {
		deps.Enricher = enrich.New(nil, nil, 0)
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	m := &Manager{
		cfg:    cfg,
		deps:   deps,
		life:   NewLifecycle(),
		now:    time.Now,
		logger: logging.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.seg = segment.NewSegmenter(cfg.Segmenter, m, segment.WithClock(m.now))
	return m
}

// SetNotifier replaces the event notifier. It must be called before the
// first Start.
func (m *Manager) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.deps.Notifier = n
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return m.life.State()
}

// SessionID returns the current or last session id.
func (m *Manager) SessionID() string {
	return m.life.SessionId()
}

// Transcript returns a copy of the current session's released insights.
func (m *Manager) Transcript() models.Transcript {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.snapshot()
}

// Start begins a session. While recording it returns the current id with
// AlreadyRecording set. A closed session is reset first.
func (m *Manager) Start(ctx context.Context) (StartResult, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	prev := m.current
	switch m.life.State() {
	case StateRecording:
		id := m.life.SessionId()
		m.mu.Unlock()
		return StartResult{SessionID: id, AlreadyRecording: true}, nil
	case StateEnding:
		m.mu.Unlock()
		return StartResult{}, ErrSessionEnding
	case StateClosed:
		if err := m.life.Reset(); err != nil {
			m.mu.Unlock()
			return StartResult{}, err
		}
	}
	m.mu.Unlock()

	startedAt := m.now()
	id := m.createSession(ctx, startedAt)
	m.seg.Reset()

	var after <-chan struct{}
	if prev != nil {
		after = prev.out.done
	}

	rctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:        id,
		startedAt: startedAt,
		ctx:       rctx,
		cancel:    cancel,
		ids:       segment.New(),
		out:       newOutbox(after),
		closing:   make(chan struct{}),
	}
	r.seq = newSequencer(func(in models.Insight) { m.release(r, in) })

	m.mu.Lock()
	if err := m.life.Start(id); err != nil {
		m.mu.Unlock()
		cancel()
		r.out.close()
		return StartResult{}, fmt.Errorf("start session: %w", err)
	}
	m.current = r
	m.mu.Unlock()

	m.seg.Arm()
	metrics.DefaultMetrics.RecordSessionStart()
	logger := logging.WithSession(id)
	logger.Info().Msg("Session recording")
	return StartResult{SessionID: id}, nil
}

func (m *Manager) createSession(ctx context.Context, startedAt time.Time) string {
	if m.deps.Store == nil {
		return uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	id, err := m.deps.Store.CreateSession(ctx, startedAt)
	if err != nil || id == "" {
		id = uuid.NewString()
		metrics.DefaultMetrics.RecordPersistenceFailure("create_session")
		m.logger.Error().Err(err).Str("sessionId", id).Msg("Failed to persist session, using generated id")
	}
	return id
}

// HandleFrame forwards one PCM frame to the segmenter while recording.
// Frames outside Recording are dropped.
func (m *Manager) HandleFrame(frame []byte) {
	m.intake.RLock()
	defer m.intake.RUnlock()
	if !m.life.IsRecording() {
		metrics.DefaultMetrics.RecordFrameIgnored()
		return
	}
	m.seg.OnFrame(frame)
}

// OnUtterance implements segment.Listener.
func (m *Manager) OnUtterance(buf pcm.Buffer, trigger segment.Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.life.IsRecording() {
		metrics.DefaultMetrics.RecordUtteranceDropped("not_recording")
		return
	}
	m.dispatchLocked(m.current, buf, trigger)
}

// OnSilence implements segment.Listener. It runs on the timer goroutine.
func (m *Manager) OnSilence() {
	if _, err := m.end(context.Background(), models.EndReasonSilence); err != nil {
		m.logger.Error().Err(err).Msg("Failed to close session after silence")
	}
}

func (m *Manager) dispatchLocked(r *run, buf pcm.Buffer, trigger segment.Trigger) {
	id := r.ids.Next(r.id)
	r.seq.track(id.Seq)
	r.wg.Add(1)

	logger := logging.WithUtterance(r.id, id.Value, id.Seq)
	logger.Debug().
		Str("trigger", string(trigger)).
		Int64("durationMs", buf.DurationMs()).
		Msg("Utterance dispatched")

	go m.process(r, id, buf)
}

func (m *Manager) process(r *run, id segment.ID, buf pcm.Buffer) {
	defer r.wg.Done()
	logger := logging.WithUtterance(r.id, id.Value, id.Seq)

	res, d := m.deps.Transcriber.Transcribe(r.ctx, buf)
	if !d.Pass {
		metrics.DefaultMetrics.RecordUtteranceDropped(string(d.Reason))
		r.seq.skip(id.Seq)
		return
	}
	if res.Text == "" {
		metrics.DefaultMetrics.RecordUtteranceDropped("empty_transcript")
		logger.Debug().Str("status", string(res.Status)).Msg("Utterance produced no text")
		r.seq.skip(id.Seq)
		return
	}

	e := m.deps.Enricher.Enrich(r.ctx, res.Text)
	ts := buf.EndedAt
	if ts.IsZero() {
		ts = m.now()
	}
	r.seq.complete(id.Seq, models.Insight{
		ID:         id.Value,
		SessionID:  r.id,
		Sequence:   id.Seq,
		Timestamp:  ts,
		Text:       res.Text,
		Sentiment:  e.Sentiment,
		Advice:     e.Advice,
		Provider:   res.Provider,
		DurationMs: buf.DurationMs(),
	})
}

// release runs under the sequencer lock, once per insight, in order. It
// only appends to the transcript and queues the sinks, so it never blocks.
func (m *Manager) release(r *run, in models.Insight) {
	r.mu.Lock()
	r.transcript = append(r.transcript, in)
	r.mu.Unlock()
	metrics.DefaultMetrics.RecordInsight()

	ev := models.UtteranceReady{
		EventType: models.EventUtteranceReady,
		SessionID: r.id,
		Timestamp: m.now().UnixMilli(),
		Insight:   in,
	}
	r.out.push(func() {
		if m.deps.Store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			if err := m.deps.Store.AppendInsight(ctx, in); err != nil {
				metrics.DefaultMetrics.RecordPersistenceFailure("append_insight")
				logger := logging.WithUtterance(r.id, in.ID, in.Sequence)
				logger.Error().Err(err).Msg("Failed to persist insight")
			}
			cancel()
		}
		m.deps.Notifier.UtteranceReady(context.Background(), ev)
	})
}

// Stop ends the session and returns its record. It is a no-op in Idle and
// Closed. During Ending it waits for the close in progress.
func (m *Manager) Stop(ctx context.Context) (*models.SessionRecord, error) {
	return m.end(ctx, models.EndReasonStopped)
}

// Shutdown stops an active session with the shutdown reason and waits for
// its store writes and events to be delivered.
func (m *Manager) Shutdown(ctx context.Context) error {
	if _, err := m.end(ctx, models.EndReasonShutdown); err != nil {
		return err
	}
	return m.WaitDelivered(ctx)
}

// WaitDelivered blocks until the current session has closed and every one
// of its store writes and events has been handed to its sink, or ctx is
// done. Stop returns before delivery completes.
func (m *Manager) WaitDelivered(ctx context.Context) error {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.out.wait(ctx)
}

func (m *Manager) end(ctx context.Context, reason string) (*models.SessionRecord, error) {
	m.intake.Lock()
	m.mu.Lock()
	r := m.current
	switch m.life.State() {
	case StateIdle, StateClosed:
		m.mu.Unlock()
		m.intake.Unlock()
		return nil, nil
	case StateEnding:
		m.mu.Unlock()
		m.intake.Unlock()
		select {
		case <-r.closing:
			return r.record, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.life.End(); err != nil {
		m.mu.Unlock()
		m.intake.Unlock()
		return nil, err
	}
	r.reason = reason
	m.mu.Unlock()
	m.intake.Unlock()

	logger := logging.WithSession(r.id)
	logger.Info().Str("reason", reason).Msg("Session ending")

	m.seg.Disarm()
	buf, flushed := m.seg.Flush()
	if flushed {
		m.mu.Lock()
		m.dispatchLocked(r, buf, segment.TriggerFlush)
		m.mu.Unlock()
	}

	ending := models.SessionEnding{
		EventType:   models.EventSessionEnding,
		SessionID:   r.id,
		Timestamp:   m.now().UnixMilli(),
		Reason:      reason,
		ForcedFlush: flushed,
		InFlight:    r.seq.outstanding(),
	}
	r.out.push(func() { m.deps.Notifier.SessionEnding(context.Background(), ending) })

	m.drain(r, logger)

	rec := m.closeRecord(r)

	m.mu.Lock()
	if err := m.life.Close(); err != nil {
		logger.Error().Err(err).Msg("Unexpected lifecycle state on close")
	}
	m.mu.Unlock()

	r.mu.Lock()
	notes := append([]string(nil), r.notes...)
	r.mu.Unlock()

	metrics.DefaultMetrics.RecordSessionClosed(reason)
	closed := models.SessionClosed{
		EventType: models.EventSessionClosed,
		SessionID: r.id,
		Timestamp: m.now().UnixMilli(),
		Record:    rec,
		Notes:     notes,
	}
	r.out.push(func() {
		m.persistClose(r.id, rec)
		m.deps.Notifier.SessionClosed(context.Background(), closed)
	})
	r.out.close()
	logger.Info().Int("insights", rec.Insights).Strs("notes", notes).Msg("Session closed")

	r.record = &rec
	close(r.closing)
	return &rec, nil
}

// drain waits for in-flight utterances up to FlushTimeout, then cancels and
// drops whatever has not been released.
func (m *Manager) drain(r *run, logger zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(m.cfg.FlushTimeout)
	defer t.Stop()

	select {
	case <-done:
	case <-t.C:
		dropped := r.seq.close()
		r.cancel()
		if dropped > 0 {
			note := fmt.Sprintf("dropped %d incomplete utterance(s)", dropped)
			r.mu.Lock()
			r.notes = append(r.notes, note)
			r.mu.Unlock()
			for i := 0; i < dropped; i++ {
				metrics.DefaultMetrics.RecordUtteranceDropped("flush_timeout")
			}
			logger.Warn().Int("dropped", dropped).Dur("timeout", m.cfg.FlushTimeout).Msg("Flush timed out")
		}
	}
	r.seq.close()
	r.cancel()
}

func (m *Manager) closeRecord(r *run) models.SessionRecord {
	transcript := r.snapshot()
	endedAt := m.now()
	rec := models.SessionRecord{
		ID:        r.id,
		StartedAt: r.startedAt,
		EndedAt:   &endedAt,
		EndReason: r.reason,
		Insights:  len(transcript),
	}

	if !transcript.Empty() {
		text := transcript.Text()
		var sum models.Summary
		if m.deps.Summarizer != nil {
			sum = m.deps.Summarizer.Summarize(context.Background(), text)
		} else {
			sum = models.PlaceholderSummary(models.SummaryUnavailable)
		}
		rec.Transcript = text
		rec.Summary = &sum
	}
	return rec
}

func (m *Manager) persistClose(sessionID string, rec models.SessionRecord) {
	if m.deps.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.deps.Store.CloseSession(ctx, rec); err != nil {
		metrics.DefaultMetrics.RecordPersistenceFailure("close_session")
		logger := logging.WithSession(sessionID)
		logger.Error().Err(err).Msg("Failed to persist session close")
	}
}

type nopNotifier struct{}

func (nopNotifier) UtteranceReady(context.Context, models.UtteranceReady) {}
func (nopNotifier) SessionEnding(context.Context, models.SessionEnding)   {}
func (nopNotifier) SessionClosed(context.Context, models.SessionClosed)   {}
