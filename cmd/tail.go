package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ai-session-insights-service/internal/config"
	"ai-session-insights-service/internal/models"
)

func newTailCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow session events on the Kafka topics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if len(cfg.Kafka.Brokers) == 0 {
				return fmt.Errorf("no Kafka brokers configured (KAFKA_BROKERS)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := &lineWriter{w: cmd.OutOrStdout()}
			g, ctx := errgroup.WithContext(ctx)
			for _, topic := range []string{cfg.Kafka.TopicInsights, cfg.Kafka.TopicLifecycle} {
				g.Go(func() error {
					return consume(ctx, cfg.Kafka.Brokers, topic, since, out)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().DurationVar(&since, "since", time.Hour, "replay events newer than this")
	return cmd
}

// consume reads partition 0 of topic without a consumer group, starting
// since ago, until ctx is done.
func consume(ctx context.Context, brokers []string, topic string, since time.Duration, out *lineWriter) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		return fmt.Errorf("seek %s: %w", topic, err)
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming session events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		out.write(describe(msg))
	}
}

// describe renders one Kafka message as a single line.
func describe(msg kafka.Message) string {
	eventType := ""
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			eventType = string(h.Value)
		}
	}

	switch eventType {
	case models.EventUtteranceReady:
		var ev models.UtteranceReady
		if err := json.Unmarshal(msg.Value, &ev); err == nil {
			in := ev.Insight
			return fmt.Sprintf("%s #%d [%s] %s | %s", ev.SessionID, in.Sequence, in.Sentiment.Label, in.Text, in.Advice)
		}
	case models.EventSessionEnding:
		var ev models.SessionEnding
		if err := json.Unmarshal(msg.Value, &ev); err == nil {
			return fmt.Sprintf("%s ending (%s, %d in flight)", ev.SessionID, ev.Reason, ev.InFlight)
		}
	case models.EventSessionClosed:
		var ev models.SessionClosed
		if err := json.Unmarshal(msg.Value, &ev); err == nil {
			summary := models.SummaryMissing
			if ev.Record.Summary != nil {
				summary = ev.Record.Summary.Summary
			}
			return fmt.Sprintf("%s closed (%s, %d insights): %s", ev.SessionID, ev.Record.EndReason, ev.Record.Insights, summary)
		}
	}
	return fmt.Sprintf("%s %s", msg.Topic, msg.Value)
}

type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, line)
}
