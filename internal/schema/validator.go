// Package schema checks outward session events before they leave the
// process.
package schema

import (
	"errors"
	"fmt"

	"ai-session-insights-service/internal/models"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidEvent = errors.New("invalid event")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate reports whether event is a well-formed session event: the
// eventType matches its payload, a session id is set, and nested ids agree
// with it.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.UtteranceReady:
		if err := envelope(ev.EventType, models.EventUtteranceReady, ev.SessionID); err != nil {
			return err
		}
		return sameSession(ev.SessionID, ev.Insight.SessionID, "insight")
	case models.SessionEnding:
		if err := envelope(ev.EventType, models.EventSessionEnding, ev.SessionID); err != nil {
			return err
		}
		if ev.InFlight < 0 {
			return fmt.Errorf("%w: negative inFlight %d", ErrInvalidEvent, ev.InFlight)
		}
		return nil
	case models.SessionClosed:
		if err := envelope(ev.EventType, models.EventSessionClosed, ev.SessionID); err != nil {
			return err
		}
		return sameSession(ev.SessionID, ev.Record.ID, "record")
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

func envelope(got, want, sessionID string) error {
	if got != want {
		return fmt.Errorf("%w: eventType %q, expected %q", ErrInvalidEvent, got, want)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: %s without sessionId", ErrInvalidEvent, want)
	}
	return nil
}

func sameSession(sessionID, nested, what string) error {
	if nested != "" && nested != sessionID {
		return fmt.Errorf("%w: %s belongs to session %q, not %q", ErrInvalidEvent, what, nested, sessionID)
	}
	return nil
}
