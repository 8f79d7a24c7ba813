package session

import (
	"sync"

	"ai-session-insights-service/internal/models"
)

// sequencer releases completed utterances strictly in sequence order.
// Sequences start at 1. A skipped sequence releases nothing but unblocks
// its successors. deliver runs with the sequencer locked and must not block.
type sequencer struct {
	mu      sync.Mutex
	next    uint64
	issued  uint64
	ready   map[uint64]slot
	closed  bool
	deliver func(models.Insight)
}

type slot struct {
	insight models.Insight
	ok      bool
}

func newSequencer(deliver func(models.Insight)) *sequencer {
	return &sequencer{
		next:    1,
		ready:   make(map[uint64]slot),
		deliver: deliver,
	}
}

// track records that seq was handed out.
func (s *sequencer) track(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.issued {
		s.issued = seq
	}
}

// complete marks seq done with an insight to release.
func (s *sequencer) complete(seq uint64, in models.Insight) {
	s.settle(seq, slot{insight: in, ok: true})
}

// skip marks seq done with nothing to release.
func (s *sequencer) skip(seq uint64) {
	s.settle(seq, slot{})
}

func (s *sequencer) settle(seq uint64, sl slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq < s.next {
		return
	}
	s.ready[seq] = sl
	for {
		next, ok := s.ready[s.next]
		if !ok {
			return
		}
		delete(s.ready, s.next)
		s.next++
		if next.ok && s.deliver != nil {
			s.deliver(next.insight)
		}
	}
}

// outstanding returns the number of tracked sequences not yet released.
func (s *sequencer) outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.issued - (s.next - 1))
}

// close stops all further releases and returns how many tracked sequences
// were never released. Later calls return 0.
func (s *sequencer) close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	dropped := int(s.issued - (s.next - 1))
	s.ready = nil
	return dropped
}
