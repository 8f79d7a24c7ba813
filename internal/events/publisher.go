// Package events publishes session events to Kafka and fans them out to
// other outward surfaces.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/schema"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes session events to two Kafka topics: one for
// utterance insights and one for lifecycle transitions.
type Publisher struct {
	writerInsights  messageWriter
	writerLifecycle messageWriter
	principal       string
	topicInsights   string
	topicLifecycle  string
	enabled         bool
	timeout         time.Duration
	metrics         *metrics.Metrics
	validator       *schema.Validator
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicInsights  string
	TopicLifecycle string
	Principal      string
	Enabled        bool
}

// New creates a new Kafka event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:   false,
			timeout:   10 * time.Second,
			metrics:   m,
			validator: schema.New(),
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicInsights:  cfg.TopicInsights,
			topicLifecycle: cfg.TopicLifecycle,
			enabled:        false,
			timeout:        10 * time.Second,
			metrics:        m,
			validator:      schema.New(),
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicInsights", cfg.TopicInsights).
		Str("topicLifecycle", cfg.TopicLifecycle).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerInsights:  newWriter(cfg.TopicInsights),
		writerLifecycle: newWriter(cfg.TopicLifecycle),
		principal:       cfg.Principal,
		topicInsights:   cfg.TopicInsights,
		topicLifecycle:  cfg.TopicLifecycle,
		enabled:         true,
		timeout:         10 * time.Second,
		metrics:         m,
		validator:       schema.New(),
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// UtteranceReady publishes to the insights topic. Errors are logged.
func (p *Publisher) UtteranceReady(ctx context.Context, ev models.UtteranceReady) {
	if !p.valid(ev.EventType, ev) {
		return
	}
	p.publish(ctx, p.writerInsights, p.topicInsights, ev.EventType, ev.SessionID, ev)
}

// SessionEnding publishes to the lifecycle topic. Errors are logged.
func (p *Publisher) SessionEnding(ctx context.Context, ev models.SessionEnding) {
	if !p.valid(ev.EventType, ev) {
		return
	}
	p.publish(ctx, p.writerLifecycle, p.topicLifecycle, ev.EventType, ev.SessionID, ev)
}

// SessionClosed publishes to the lifecycle topic. Errors are logged.
func (p *Publisher) SessionClosed(ctx context.Context, ev models.SessionClosed) {
	if !p.valid(ev.EventType, ev) {
		return
	}
	p.publish(ctx, p.writerLifecycle, p.topicLifecycle, ev.EventType, ev.SessionID, ev)
}

func (p *Publisher) valid(eventType string, event any) bool {
	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("eventType", eventType).Msg("Dropping invalid event")
		p.metrics.RecordKafkaPublish("invalid", eventType, err, 0)
		return false
	}
	return true
}

// publish writes one event keyed by session id, so a session's events stay
// on one partition.
func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("eventType", eventType).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerInsights != nil {
		if e := p.writerInsights.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing insights writer")
			err = e
		}
	}
	if p.writerLifecycle != nil {
		if e := p.writerLifecycle.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing lifecycle writer")
			err = e
		}
	}
	return err
}
