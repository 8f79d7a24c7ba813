package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordKafkaPublish(t *testing.T) {
	m := DefaultMetrics
	total := m.KafkaPublishTotal.WithLabelValues("metrics-test", "session.closed")
	failed := m.KafkaPublishErrors.WithLabelValues("metrics-test", "session.closed")
	beforeTotal, beforeFailed := testutil.ToFloat64(total), testutil.ToFloat64(failed)

	m.RecordKafkaPublish("metrics-test", "session.closed", nil, 0.01)
	m.RecordKafkaPublish("metrics-test", "session.closed", errors.New("broker down"), 0.02)

	if got := testutil.ToFloat64(total) - beforeTotal; got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestRecordSession(t *testing.T) {
	m := DefaultMetrics
	closed := m.SessionsClosed.WithLabelValues("metrics-test")
	before := testutil.ToFloat64(closed)

	m.RecordSessionStart()
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}
	m.RecordSessionClosed("metrics-test")
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("expected 0 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(closed) - before; got != 1 {
		t.Errorf("expected 1 close, got %v", got)
	}
}

func TestRecordFrame(t *testing.T) {
	m := DefaultMetrics
	active := m.AudioFramesReceived.WithLabelValues("active")
	inactive := m.AudioFramesReceived.WithLabelValues("inactive")
	beforeActive, beforeInactive := testutil.ToFloat64(active), testutil.ToFloat64(inactive)
	beforeBytes := testutil.ToFloat64(m.AudioBytesReceived)

	m.RecordFrame(3200, true)
	m.RecordFrame(3200, false)
	m.RecordFrame(3200, false)

	if got := testutil.ToFloat64(active) - beforeActive; got != 1 {
		t.Errorf("expected 1 active frame, got %v", got)
	}
	if got := testutil.ToFloat64(inactive) - beforeInactive; got != 2 {
		t.Errorf("expected 2 inactive frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.AudioBytesReceived) - beforeBytes; got != 9600 {
		t.Errorf("expected 9600 bytes, got %v", got)
	}
}

func TestRecordBreakerState(t *testing.T) {
	m := DefaultMetrics
	m.RecordBreakerState("metrics-test", 2)
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("metrics-test")); got != 2 {
		t.Errorf("expected state 2, got %v", got)
	}
}
