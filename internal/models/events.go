package models

// Event types carried in the eventType field and Kafka header.
const (
	EventUtteranceReady = "session.utterance.ready"
	EventSessionEnding  = "session.ending"
	EventSessionClosed  = "session.closed"
)

// UtteranceReady is emitted for every released insight, in sequence order.
type UtteranceReady struct {
	EventType string  `json:"eventType"`
	SessionID string  `json:"sessionId"`
	Timestamp int64   `json:"timestamp"`
	Insight   Insight `json:"insight"`
}

// SessionEnding is emitted once when a session leaves Recording.
type SessionEnding struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	Timestamp   int64  `json:"timestamp"`
	Reason      string `json:"reason"`
	ForcedFlush bool   `json:"forcedFlush"`
	InFlight    int    `json:"inFlight"`
}

// SessionClosed is emitted once when a session reaches Closed.
type SessionClosed struct {
	EventType string        `json:"eventType"`
	SessionID string        `json:"sessionId"`
	Timestamp int64         `json:"timestamp"`
	Record    SessionRecord `json:"record"`
	Notes     []string      `json:"notes,omitempty"`
}
