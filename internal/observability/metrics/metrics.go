// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_session_insights"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived *prometheus.CounterVec
	FramesIgnored       prometheus.Counter
	AudioChunksRejected *prometheus.CounterVec

	// Segmentation metrics
	UtterancesSegmented *prometheus.CounterVec
	UtteranceDuration   prometheus.Histogram
	SilenceDetected     prometheus.Counter

	// Gate metrics
	GateDecisions *prometheus.CounterVec

	// Transcription metrics
	TranscriptionAttempts *prometheus.CounterVec
	TranscriptionLatency  *prometheus.HistogramVec
	TranscriptionEmpty    prometheus.Counter

	// Enrichment metrics
	EnrichmentLatency  prometheus.Histogram
	EnrichmentDefaults *prometheus.CounterVec

	// Session metrics
	SessionsStarted     prometheus.Counter
	SessionsClosed      *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
	InsightsAppended    prometheus.Counter
	UtterancesDropped   *prometheus.CounterVec
	SummaryLatency      prometheus.Histogram
	PersistenceFailures *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Resilience metrics
	BreakerState *prometheus.GaugeVec
	Retries      *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of gRPC audio streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active gRPC audio streams",
		}),
		StreamsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of failed audio streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of gRPC audio streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received by classification",
		}, []string{"class"}),
		FramesIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_ignored_total",
			Help:      "Frames received while no session was recording",
		}),
		AudioChunksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_rejected_total",
			Help:      "Inbound audio chunks rejected by stream limits",
		}, []string{"reason"}),

		UtterancesSegmented: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_segmented_total",
			Help:      "Utterance buffers emitted by the segmenter",
		}, []string{"trigger"}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_duration_seconds",
			Help:      "Audio duration of emitted utterance buffers",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		SilenceDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silence_detected_total",
			Help:      "Sustained silence timer firings",
		}),

		GateDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Transcription gate decisions by reason",
		}, []string{"reason"}),

		TranscriptionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_attempts_total",
			Help:      "Transcription strategy attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		TranscriptionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Transcription call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		TranscriptionEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_empty_total",
			Help:      "Utterances that produced no text from any strategy",
		}),

		EnrichmentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_latency_seconds",
			Help:      "Combined sentiment and advice latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		EnrichmentDefaults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_defaults_total",
			Help:      "Enrichment results replaced by defaults",
		}, []string{"kind"}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of sessions closed by reason",
		}, []string{"reason"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "1 while a session is recording or ending",
		}),
		InsightsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_appended_total",
			Help:      "Insights appended to session transcripts",
		}),
		UtterancesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_total",
			Help:      "Utterances dropped before reaching the transcript",
		}, []string{"reason"}),
		SummaryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_latency_seconds",
			Help:      "Session summarization latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		PersistenceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Persistence collaborator failures by operation",
		}, []string{"op"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried collaborator calls",
		}, []string{"name"}),
	}
}

// RecordStreamStart records a new audio stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records an audio stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if !success {
		m.StreamsFailed.Inc()
	}
}

// RecordFrame records a classified audio frame.
func (m *Metrics) RecordFrame(bytes int, active bool) {
	m.AudioBytesReceived.Add(float64(bytes))
	if active {
		m.AudioFramesReceived.WithLabelValues("active").Inc()
	} else {
		m.AudioFramesReceived.WithLabelValues("inactive").Inc()
	}
}

// RecordFrameIgnored records a frame received outside of Recording.
func (m *Metrics) RecordFrameIgnored() {
	m.FramesIgnored.Inc()
}

// RecordChunkRejected records an inbound chunk refused by a stream limit.
func (m *Metrics) RecordChunkRejected(reason string) {
	m.AudioChunksRejected.WithLabelValues(reason).Inc()
}

// RecordUtterance records an utterance boundary emitted by the segmenter.
func (m *Metrics) RecordUtterance(trigger string, durationSeconds float64) {
	m.UtterancesSegmented.WithLabelValues(trigger).Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordSilence records a sustained silence detection.
func (m *Metrics) RecordSilence() {
	m.SilenceDetected.Inc()
}

// RecordGateDecision records a gate admission or rejection reason.
func (m *Metrics) RecordGateDecision(reason string) {
	m.GateDecisions.WithLabelValues(reason).Inc()
}

// RecordTranscription records one strategy attempt.
func (m *Metrics) RecordTranscription(provider, outcome string, latencySeconds float64) {
	m.TranscriptionAttempts.WithLabelValues(provider, outcome).Inc()
	m.TranscriptionLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordTranscriptionEmpty records an utterance no strategy could transcribe.
func (m *Metrics) RecordTranscriptionEmpty() {
	m.TranscriptionEmpty.Inc()
}

// RecordEnrichment records the enrichment latency.
func (m *Metrics) RecordEnrichment(latencySeconds float64) {
	m.EnrichmentLatency.Observe(latencySeconds)
}

// RecordEnrichmentDefault records an enrichment result replaced by its default.
func (m *Metrics) RecordEnrichmentDefault(kind string) {
	m.EnrichmentDefaults.WithLabelValues(kind).Inc()
}

// RecordSessionStart records a session entering Recording.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Set(1)
}

// RecordSessionClosed records a session reaching Closed.
func (m *Metrics) RecordSessionClosed(reason string) {
	m.SessionsClosed.WithLabelValues(reason).Inc()
	m.SessionsActive.Set(0)
}

// RecordInsight records an insight appended to the transcript.
func (m *Metrics) RecordInsight() {
	m.InsightsAppended.Inc()
}

// RecordUtteranceDropped records an utterance that never reached the transcript.
func (m *Metrics) RecordUtteranceDropped(reason string) {
	m.UtterancesDropped.WithLabelValues(reason).Inc()
}

// RecordSummary records summarization latency.
func (m *Metrics) RecordSummary(latencySeconds float64) {
	m.SummaryLatency.Observe(latencySeconds)
}

// RecordPersistenceFailure records a failed persistence call.
func (m *Metrics) RecordPersistenceFailure(op string) {
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordBreakerState records a circuit breaker state change.
func (m *Metrics) RecordBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRetry records a retried collaborator call.
func (m *Metrics) RecordRetry(name string) {
	m.Retries.WithLabelValues(name).Inc()
}
