package segment

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"ai-session-insights-service/internal/pcm"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu       sync.Mutex
	bufs     []pcm.Buffer
	triggers []Trigger
	silences int
}

func (r *recorder) OnUtterance(buf pcm.Buffer, trigger Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufs = append(r.bufs, buf)
	r.triggers = append(r.triggers, trigger)
}

func (r *recorder) OnSilence() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silences++
}

func (r *recorder) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bufs), r.silences
}

func frame(amplitude int16) []byte {
	s := make([]int16, 160)
	for i := range s {
		s[i] = amplitude
	}
	return pcm.FromInt16(s)
}

func silence() []byte {
	return frame(0)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SilenceThreshold = 0
	cfg.MaxUtterance = 0
	return cfg
}

func TestSegmenter_AllInactiveNeverEmits(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	s := NewSegmenter(testConfig(), rec, WithClock(clock.Now))

	for i := 0; i < 500; i++ {
		s.OnFrame(silence())
		clock.Advance(100 * time.Millisecond)
	}

	if n, _ := rec.count(); n != 0 {
		t.Errorf("expected no utterances, got %d", n)
	}
	if _, ok := s.Flush(); ok {
		t.Error("expected flush of empty buffer to be a no-op")
	}
}

func TestSegmenter_ActiveRunThenPauseEmitsOnce(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	s := NewSegmenter(testConfig(), rec, WithClock(clock.Now))

	var expected []byte
	for i := 0; i < 5; i++ {
		f := frame(int16(2000 + i))
		expected = append(expected, f...)
		s.OnFrame(f)
		clock.Advance(100 * time.Millisecond)
	}

	// Last active frame at +400ms; the pause completes at +2400ms.
	for clock.Now().Sub(s.LastSpeechAt()) < 2*time.Second-100*time.Millisecond {
		s.OnFrame(silence())
		if n, _ := rec.count(); n != 0 {
			t.Fatalf("emitted before pause threshold at %v", clock.Now().Sub(s.LastSpeechAt()))
		}
		clock.Advance(100 * time.Millisecond)
	}
	clock.Advance(100 * time.Millisecond)
	s.OnFrame(silence())

	for i := 0; i < 50; i++ {
		clock.Advance(100 * time.Millisecond)
		s.OnFrame(silence())
	}

	if n, _ := rec.count(); n != 1 {
		t.Fatalf("expected exactly 1 utterance, got %d", n)
	}
	buf := rec.bufs[0]
	if rec.triggers[0] != TriggerPause {
		t.Errorf("expected pause trigger, got %s", rec.triggers[0])
	}
	if buf.Frames != 5 {
		t.Errorf("expected 5 frames, got %d", buf.Frames)
	}
	if !bytes.Equal(buf.PCM, expected) {
		t.Error("expected buffer to contain exactly the active frames in order")
	}
	if s.Pending() != 0 {
		t.Errorf("expected empty buffer after emit, got %d bytes", s.Pending())
	}
}

func TestSegmenter_ShortPauseDoesNotSplit(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	s := NewSegmenter(testConfig(), rec, WithClock(clock.Now))

	s.OnFrame(frame(3000))
	for i := 0; i < 15; i++ {
		clock.Advance(100 * time.Millisecond)
		s.OnFrame(silence())
	}
	clock.Advance(100 * time.Millisecond)
	s.OnFrame(frame(4000))

	clock.Advance(2 * time.Second)
	s.OnFrame(silence())

	if n, _ := rec.count(); n != 1 {
		t.Fatalf("expected 1 utterance, got %d", n)
	}
	if rec.bufs[0].Frames != 2 {
		t.Errorf("expected only the 2 active frames, got %d", rec.bufs[0].Frames)
	}
}

func TestSegmenter_MaxUtteranceForcesEmit(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	cfg := testConfig()
	cfg.MaxUtterance = 100 * time.Millisecond // 1600 samples = 10 frames of 160
	s := NewSegmenter(cfg, rec, WithClock(clock.Now))

	for i := 0; i < 25; i++ {
		s.OnFrame(frame(5000))
		clock.Advance(10 * time.Millisecond)
	}

	if n, _ := rec.count(); n != 2 {
		t.Fatalf("expected 2 forced utterances, got %d", n)
	}
	for i, trig := range rec.triggers {
		if trig != TriggerMaxLength {
			t.Errorf("utterance %d: expected max_length, got %s", i, trig)
		}
		if rec.bufs[i].Frames != 10 {
			t.Errorf("utterance %d: expected 10 frames, got %d", i, rec.bufs[i].Frames)
		}
	}
	if s.Pending() != 5*320 {
		t.Errorf("expected 5 frames pending, got %d bytes", s.Pending())
	}
}

func TestSegmenter_FlushDrainsPending(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	s := NewSegmenter(testConfig(), rec, WithClock(clock.Now))

	s.OnFrame(frame(2500))
	s.OnFrame(frame(2500))

	buf, ok := s.Flush()
	if !ok {
		t.Fatal("expected pending buffer")
	}
	if buf.Frames != 2 || buf.Len() != 640 {
		t.Errorf("expected 2 frames / 640 bytes, got %d / %d", buf.Frames, buf.Len())
	}
	if _, ok := s.Flush(); ok {
		t.Error("expected second flush to be a no-op")
	}
	if n, _ := rec.count(); n != 0 {
		t.Errorf("flush must not notify the listener, got %d", n)
	}
}

func TestSegmenter_UndersizedFrameIsInactive(t *testing.T) {
	s := NewSegmenter(testConfig(), &recorder{})

	for _, f := range [][]byte{nil, {}, {0xff}} {
		if c := s.OnFrame(f); c.Active {
			t.Errorf("expected frame of %d bytes to be inactive", len(f))
		}
	}
	if s.Pending() != 0 {
		t.Errorf("expected nothing buffered, got %d", s.Pending())
	}
}

func TestSegmenter_EmittedBufferNotReused(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	s := NewSegmenter(testConfig(), rec, WithClock(clock.Now))

	s.OnFrame(frame(2000))
	clock.Advance(3 * time.Second)
	s.OnFrame(silence())

	first := append([]byte(nil), rec.bufs[0].PCM...)

	s.OnFrame(frame(7000))
	clock.Advance(3 * time.Second)
	s.OnFrame(silence())

	if n, _ := rec.count(); n != 2 {
		t.Fatalf("expected 2 utterances, got %d", n)
	}
	if !bytes.Equal(rec.bufs[0].PCM, first) {
		t.Error("first buffer was mutated after hand-off")
	}
}

func TestSegmenter_SilenceFiresExactlyOnce(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	cfg.SilenceThreshold = 50 * time.Millisecond
	s := NewSegmenter(cfg, rec)

	s.Arm()
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.OnFrame(silence())
		time.Sleep(5 * time.Millisecond)
	}

	if _, silences := rec.count(); silences != 1 {
		t.Errorf("expected silence to fire exactly once, got %d", silences)
	}
	if s.Armed() {
		t.Error("expected timer to disarm after firing")
	}
}

func TestSegmenter_ActiveFramesRearmTimer(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	cfg.SilenceThreshold = 100 * time.Millisecond
	s := NewSegmenter(cfg, rec)

	s.Arm()
	for i := 0; i < 6; i++ {
		time.Sleep(30 * time.Millisecond)
		s.OnFrame(frame(3000))
	}
	if _, silences := rec.count(); silences != 0 {
		t.Fatalf("expected no silence while speaking, got %d", silences)
	}

	time.Sleep(250 * time.Millisecond)
	if _, silences := rec.count(); silences != 1 {
		t.Errorf("expected 1 silence after speech stopped, got %d", silences)
	}
}

func TestSegmenter_ResetDisarmsAndClears(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	cfg.SilenceThreshold = 40 * time.Millisecond
	s := NewSegmenter(cfg, rec)

	s.Arm()
	s.OnFrame(frame(3000))
	s.Reset()

	time.Sleep(120 * time.Millisecond)

	if _, silences := rec.count(); silences != 0 {
		t.Errorf("expected no silence after reset, got %d", silences)
	}
	if s.Pending() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", s.Pending())
	}
	if s.Armed() {
		t.Error("expected timer disarmed after reset")
	}
}

func TestSegmenter_UnarmedNeverFires(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	cfg.SilenceThreshold = 20 * time.Millisecond
	s := NewSegmenter(cfg, rec)

	s.OnFrame(frame(3000))
	time.Sleep(80 * time.Millisecond)

	if _, silences := rec.count(); silences != 0 {
		t.Errorf("expected no silence without Arm, got %d", silences)
	}
}
