package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai-session-insights-service/internal/app"
	"ai-session-insights-service/internal/config"
	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/pcm"
	"ai-session-insights-service/internal/service/audio"
)

func newReplayCmd() *cobra.Command {
	var (
		fast    bool
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "replay FILE.wav",
		Short: "Run a WAV file through the pipeline as a single session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replay(cmd.Context(), args[0], fast, noStore, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&fast, "fast", false, "feed frames without real-time pacing (pause detection is disabled)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the session")
	return cmd
}

func replay(ctx context.Context, path string, fast, noStore bool, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format, err := pcm.ReadWAVHeader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cfg := config.Load()
	cfg.Audio.SampleRateHz = int(format.SampleRate)
	cfg.Capture.Enabled = false

	opts := []app.Option{app.WithNotifier(newEventPrinter(out))}
	if noStore {
		opts = append(opts, app.WithoutStore())
	}
	a, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	if _, err := a.Manager.Start(ctx); err != nil {
		return err
	}

	pace := cfg.Audio.FrameDuration
	if fast {
		pace = 0
	}
	stats, err := audio.Replay(ctx, io.LimitReader(f, int64(format.DataLen)), a.Manager, a.FrameBytes(), pace)
	if err != nil {
		return err
	}
	log.Info().
		Int64("bytes", stats.Bytes).
		Int("frames", stats.Frames).
		Dur("audio", stats.Duration).
		Msg("Replay finished")

	_, err = a.Manager.Stop(ctx)
	return err
}

// eventPrinter writes every session event as one JSON line.
type eventPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{enc: json.NewEncoder(out)}
}

func (p *eventPrinter) print(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to print event")
	}
}

func (p *eventPrinter) UtteranceReady(_ context.Context, ev models.UtteranceReady) { p.print(ev) }
func (p *eventPrinter) SessionEnding(_ context.Context, ev models.SessionEnding)   { p.print(ev) }
func (p *eventPrinter) SessionClosed(_ context.Context, ev models.SessionClosed)   { p.print(ev) }
