// Package google provides a Google Cloud Speech-to-Text remote transcriber.
package google

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"

	"ai-session-insights-service/internal/pcm"
)

// Config holds Google STT recognition settings.
type Config struct {
	LanguageCode      string
	SampleRateHz      int32
	AudioEncoding     string
	Model             string
	EnablePunctuation bool
}

// DefaultConfig returns the default recognition settings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:      "en-US",
		SampleRateHz:      pcm.SampleRate,
		AudioEncoding:     "LINEAR16",
		EnablePunctuation: true,
	}
}

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Adapter implements stt.RemoteTranscriber with synchronous Recognize.
type Adapter struct {
	client recognizer
	cfg    Config
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Transcribe sends one utterance and joins the top alternative of every
// result. The prompt is not used by this provider.
func (a *Adapter) Transcribe(ctx context.Context, wav []byte, language, _ string) (string, error) {
	audio, rate, err := splitWAV(wav, a.cfg.SampleRateHz)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
			SampleRateHertz:            rate,
			LanguageCode:               languageCode(language, a.cfg.LanguageCode),
			Model:                      a.cfg.Model,
			EnableAutomaticPunctuation: a.cfg.EnablePunctuation,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// splitWAV strips the container and returns raw samples with the header's
// rate. Headerless input is passed through with the configured rate.
func splitWAV(wav []byte, fallbackRate int32) ([]byte, int32, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" {
		return wav, fallbackRate, nil
	}
	r := bytes.NewReader(wav)
	f, err := pcm.ReadWAVHeader(r)
	if err != nil {
		return nil, 0, err
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(f.DataLen)))
	if err != nil {
		return nil, 0, err
	}
	return data, int32(f.SampleRate), nil
}

// languageCode prefers a full BCP-47 tag from the caller; bare language
// codes such as "en" fall back to the configured tag.
func languageCode(requested, configured string) string {
	if strings.Contains(requested, "-") {
		return requested
	}
	if configured != "" {
		return configured
	}
	if requested != "" {
		return requested
	}
	return "en-US"
}

// parseAudioEncoding maps an upper-case encoding name to its enum,
// defaulting to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]
	if !ok || v == int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_AudioEncoding(v)
}
