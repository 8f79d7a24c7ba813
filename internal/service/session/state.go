// Package session drives the recording session lifecycle: it ties segmenter
// output to transcription, enrichment and transcript accumulation, and
// closes the session with a summary.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of the process's session.
type State int

const (
	// StateIdle - No session; waiting for start.
	StateIdle State = iota
	// StateRecording - Frames are accepted and segmented.
	StateRecording
	// StateEnding - Intake stopped; pending utterances are being drained.
	StateEnding
	// StateClosed - Summary produced and persisted. Terminal for that session.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateEnding:
		return "ENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsActive returns true while a session is recording or ending.
func (s State) IsActive() bool {
	return s == StateRecording || s == StateEnding
}

// Errors for invalid state transitions.
var (
	ErrAlreadyRecording  = errors.New("session already recording")
	ErrNotRecording      = errors.New("no session is recording")
	ErrSessionEnding     = errors.New("session is ending")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Lifecycle manages the state machine for the single process session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE ──Start()──→ RECORDING ──End()──→ ENDING ──Close()──→ CLOSED
//	 ↑                                                          │
//	 └──────────────────────────Reset()─────────────────────────┘
//
// Rules:
//   - No state may be skipped.
//   - RECORDING: Start() reports ErrAlreadyRecording; the session is kept.
//   - ENDING: Start() and End() report ErrSessionEnding.
//   - CLOSED: must Reset() to IDLE before the next Start().
type Lifecycle struct {
	mu        sync.RWMutex
	sessionId string
	state     State
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// SessionId returns the current or last session ID.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsRecording returns true if frames should be accepted.
func (l *Lifecycle) IsRecording() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRecording
}

// Start transitions IDLE to RECORDING under the given session ID.
func (l *Lifecycle) Start(sessionId string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.sessionId = sessionId
		l.state = StateRecording
		return nil
	case StateRecording:
		return ErrAlreadyRecording
	case StateEnding:
		return ErrSessionEnding
	case StateClosed:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, l.state)
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// End transitions RECORDING to ENDING.
func (l *Lifecycle) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRecording:
		l.state = StateEnding
		return nil
	case StateEnding:
		return ErrSessionEnding
	case StateIdle, StateClosed:
		return ErrNotRecording
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Close transitions ENDING to CLOSED.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateEnding {
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, l.state)
	}
	l.state = StateClosed
	return nil
}

// Reset transitions CLOSED back to IDLE. Idempotent in IDLE.
func (l *Lifecycle) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateClosed:
		l.state = StateIdle
		return nil
	case StateIdle:
		return nil
	default:
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, l.state)
	}
}
