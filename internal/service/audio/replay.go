package audio

import (
	"context"
	"errors"
	"io"
	"time"
)

// Replay reads PCM from r and forwards it to sink in frameBytes frames,
// sleeping pace between frames. A zero pace replays as fast as possible.
func Replay(ctx context.Context, r io.Reader, sink FrameSink, frameBytes int, pace time.Duration) (Stats, error) {
	h := NewHandler(sink, frameBytes, Limits{})
	buf := make([]byte, h.frameBytes)

	var ticker *time.Ticker
	if pace > 0 {
		ticker = time.NewTicker(pace)
		defer ticker.Stop()
	}

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := h.Write(buf[:n]); werr != nil {
				return h.Stats(), werr
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return h.Stats(), err
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return h.Stats(), ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return h.Stats(), err
		}
	}
	h.Close()
	return h.Stats(), nil
}
