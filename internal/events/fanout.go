package events

import (
	"context"

	"ai-session-insights-service/internal/models"
)

// Notifier receives outward session events.
type Notifier interface {
	UtteranceReady(ctx context.Context, ev models.UtteranceReady)
	SessionEnding(ctx context.Context, ev models.SessionEnding)
	SessionClosed(ctx context.Context, ev models.SessionClosed)
}

// Fanout delivers every event to each notifier in order.
type Fanout []Notifier

// NewFanout drops nil notifiers.
func NewFanout(ns ...Notifier) Fanout {
	var f Fanout
	for _, n := range ns {
		if n != nil {
			f = append(f, n)
		}
	}
	return f
}

func (f Fanout) UtteranceReady(ctx context.Context, ev models.UtteranceReady) {
	for _, n := range f {
		n.UtteranceReady(ctx, ev)
	}
}

func (f Fanout) SessionEnding(ctx context.Context, ev models.SessionEnding) {
	for _, n := range f {
		n.SessionEnding(ctx, ev)
	}
}

func (f Fanout) SessionClosed(ctx context.Context, ev models.SessionClosed) {
	for _, n := range f {
		n.SessionClosed(ctx, ev)
	}
}
