package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for k := range defaults {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("CONFIG_FILE", "")

	cfg := Load()

	if cfg.Service.Principal != "svc-session-insights" {
		t.Errorf("expected default principal 'svc-session-insights', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Audio.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Segmenter.PauseThreshold != 2*time.Second {
		t.Errorf("expected default pause 2s, got %v", cfg.Segmenter.PauseThreshold)
	}
	if cfg.Segmenter.SilenceThreshold != 60*time.Second {
		t.Errorf("expected default silence 60s, got %v", cfg.Segmenter.SilenceThreshold)
	}
	if cfg.Gate.MinUtterance != time.Second {
		t.Errorf("expected default min utterance 1s, got %v", cfg.Gate.MinUtterance)
	}
	if cfg.Gate.MinSpeechEnergy != 500 {
		t.Errorf("expected default min energy 500, got %v", cfg.Gate.MinSpeechEnergy)
	}
	if cfg.STT.RemoteProvider != "openai" {
		t.Errorf("expected default remote provider 'openai', got %s", cfg.STT.RemoteProvider)
	}
	if cfg.STT.LocalURL != "" {
		t.Errorf("expected local engine disabled by default, got %s", cfg.STT.LocalURL)
	}
	if cfg.Session.FlushTimeout != 5*time.Second {
		t.Errorf("expected default flush timeout 5s, got %v", cfg.Session.FlushTimeout)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Capture.DeviceIndex != -1 {
		t.Errorf("expected default device -1, got %d", cfg.Capture.DeviceIndex)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STT_REMOTE_PROVIDER", "Google")
	t.Setenv("STT_LOCAL_URL", "http://localhost:8000")
	t.Setenv("AUDIO_SAMPLE_RATE_HZ", "8000")
	t.Setenv("SEGMENT_PAUSE_THRESHOLD", "1500ms")
	t.Setenv("GATE_MIN_SPEECH_ENERGY", "250.5")
	t.Setenv("KAFKA_ENABLED", "TRUE")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("CAPTURE_DEVICE_INDEX", "2")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
	if cfg.STT.RemoteProvider != "google" {
		t.Errorf("expected provider 'google', got %s", cfg.STT.RemoteProvider)
	}
	if cfg.STT.LocalURL != "http://localhost:8000" {
		t.Errorf("expected local url, got %s", cfg.STT.LocalURL)
	}
	if cfg.Audio.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Segmenter.PauseThreshold != 1500*time.Millisecond {
		t.Errorf("expected pause 1.5s, got %v", cfg.Segmenter.PauseThreshold)
	}
	if cfg.Gate.MinSpeechEnergy != 250.5 {
		t.Errorf("expected energy 250.5, got %v", cfg.Gate.MinSpeechEnergy)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Capture.DeviceIndex != 2 {
		t.Errorf("expected device 2, got %d", cfg.Capture.DeviceIndex)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	t.Setenv("AUDIO_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("KAFKA_ENABLED", "invalid")
	t.Setenv("SEGMENT_PAUSE_THRESHOLD", "invalid")
	t.Setenv("SESSION_FLUSH_TIMEOUT", "-3s")
	t.Setenv("GATE_MIN_SPEECH_ENERGY", "loud")

	cfg := Load()

	if cfg.Audio.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default kafka enabled on invalid input")
	}
	if cfg.Segmenter.PauseThreshold != 2*time.Second {
		t.Errorf("expected default pause on invalid input, got %v", cfg.Segmenter.PauseThreshold)
	}
	if cfg.Session.FlushTimeout != 5*time.Second {
		t.Errorf("expected default flush timeout on negative input, got %v", cfg.Session.FlushTimeout)
	}
	if cfg.Gate.MinSpeechEnergy != 500 {
		t.Errorf("expected default energy on invalid input, got %v", cfg.Gate.MinSpeechEnergy)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "my-service")
	t.Setenv("KAFKA_PRINCIPAL", "")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}

	t.Setenv("KAFKA_PRINCIPAL", "kafka-writer")
	if got := Load().Kafka.Principal; got != "kafka-writer" {
		t.Errorf("expected explicit kafka principal, got %s", got)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.yaml")
	body := "GRPC_PORT: \"6000\"\nSEGMENT_PAUSE_THRESHOLD: 3s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SEGMENT_PAUSE_THRESHOLD", "")
	os.Unsetenv("SEGMENT_PAUSE_THRESHOLD")
	t.Setenv("GRPC_PORT", "7000")

	cfg := Load()

	if cfg.Segmenter.PauseThreshold != 3*time.Second {
		t.Errorf("expected pause from file 3s, got %v", cfg.Segmenter.PauseThreshold)
	}
	if cfg.Service.GRPCPort != "7000" {
		t.Errorf("expected environment to override file, got %s", cfg.Service.GRPCPort)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GRPC_PORT", "")
	os.Unsetenv("GRPC_PORT")

	if got := Load().Service.GRPCPort; got != "50051" {
		t.Errorf("expected default port with missing file, got %s", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a,b", 2},
		{" a , ,b ", 2},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); len(got) != tt.want {
			t.Errorf("splitList(%q): expected %d items, got %v", tt.in, tt.want, got)
		}
	}
}
