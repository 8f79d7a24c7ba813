// Package capture reads the local microphone into session frames.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/pcm"
)

// ErrNoInputDevice is returned when no device can record.
var ErrNoInputDevice = errors.New("no audio input device")

// FrameSink consumes 16-bit mono PCM frames.
type FrameSink interface {
	HandleFrame(frame []byte)
}

// Config selects the device and frame size. A negative DeviceIndex uses
// the system default input.
type Config struct {
	DeviceIndex   int
	SampleRate    int
	FrameDuration time.Duration
}

// Microphone captures one input device.
type Microphone struct {
	cfg    Config
	sink   FrameSink
	logger zerolog.Logger
}

// New creates a microphone feeding sink.
func New(cfg Config, sink FrameSink) *Microphone {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.SampleRate
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 100 * time.Millisecond
	}
	return &Microphone{cfg: cfg, sink: sink, logger: logging.WithComponent("capture")}
}

// framesPerBuffer is the sample count of one frame.
func (m *Microphone) framesPerBuffer() int {
	n := pcm.BytesFor(m.cfg.FrameDuration, m.cfg.SampleRate) / pcm.BytesPerSample
	return max(n, 1)
}

// Run captures until ctx is done. Each buffer read becomes one frame.
func (m *Microphone) Run(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()
	dev, err := selectDevice(devices, m.cfg.DeviceIndex, def)
	if err != nil {
		return err
	}

	buf := make([]int16, m.framesPerBuffer())
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.cfg.SampleRate),
		FramesPerBuffer: len(buf),
	}, buf)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	m.logger.Info().
		Str("device", dev.Name).
		Int("sampleRate", m.cfg.SampleRate).
		Int("framesPerBuffer", len(buf)).
		Msg("Microphone capture started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Microphone capture stopped")
			return nil
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflow loses samples but the stream keeps running.
			if errors.Is(err, portaudio.InputOverflowed) {
				m.logger.Debug().Msg("Input overflowed")
				continue
			}
			return fmt.Errorf("read stream: %w", err)
		}
		m.sink.HandleFrame(pcm.FromInt16(buf))
	}
}

// selectDevice picks devices[index] when index is set, otherwise def.
func selectDevice(devices []*portaudio.DeviceInfo, index int, def *portaudio.DeviceInfo) (*portaudio.DeviceInfo, error) {
	if index >= 0 {
		if index >= len(devices) {
			return nil, fmt.Errorf("%w: index %d of %d devices", ErrNoInputDevice, index, len(devices))
		}
		dev := devices[index]
		if dev.MaxInputChannels < 1 {
			return nil, fmt.Errorf("%w: %s has no input channels", ErrNoInputDevice, dev.Name)
		}
		return dev, nil
	}
	if def != nil && def.MaxInputChannels > 0 {
		return def, nil
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, ErrNoInputDevice
}
