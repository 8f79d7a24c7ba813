// Package config loads service configuration from the environment and an
// optional config file.
package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	Audio         AudioConfig
	Segmenter     SegmenterConfig
	Gate          GateConfig
	STT           STTConfig
	OpenAI        OpenAIConfig
	Google        GoogleConfig
	Enrichment    EnrichmentConfig
	Summary       SummaryConfig
	Session       SessionConfig
	Kafka         KafkaConfig
	Store         StoreConfig
	Capture       CaptureConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name        string
	Principal   string
	GRPCPort    string
	HTTPAddr    string
	MetricsAddr string
}

type AudioConfig struct {
	SampleRateHz    int
	FrameDuration   time.Duration
	EnergyThreshold float64
}

type SegmenterConfig struct {
	PauseThreshold   time.Duration
	SilenceThreshold time.Duration
	MaxUtterance     time.Duration
}

type GateConfig struct {
	MinUtterance    time.Duration
	MinSpeechEnergy float64
}

// STTConfig selects transcription strategies. An empty LocalURL disables
// the local engine; RemoteProvider is one of openai, google, mock or none.
type STTConfig struct {
	LocalURL       string
	RemoteProvider string
	Language       string
	Prompt         string
	Model          string
	CallTimeout    time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type GoogleConfig struct {
	LanguageCode  string
	AudioEncoding string
	Model         string
}

type EnrichmentConfig struct {
	SentimentURL string
	AdviceModel  string
	Timeout      time.Duration
}

type SummaryConfig struct {
	Model   string
	Timeout time.Duration
}

type SessionConfig struct {
	FlushTimeout time.Duration
}

type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicInsights  string
	TopicLifecycle string
	Principal      string
}

type StoreConfig struct {
	Path string
}

type CaptureConfig struct {
	Enabled     bool
	DeviceIndex int
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// defaults keyed by environment variable name.
var defaults = map[string]any{
	"SERVICE_NAME":      "ai-session-insights-service",
	"SERVICE_PRINCIPAL": "svc-session-insights",
	"GRPC_PORT":         "50051",
	"HTTP_ADDR":         ":8080",
	"METRICS_ADDR":      ":9090",

	"AUDIO_SAMPLE_RATE_HZ":    16000,
	"AUDIO_FRAME_DURATION":    "100ms",
	"AUDIO_ENERGY_THRESHOLD":  500.0,
	"SEGMENT_PAUSE_THRESHOLD": "2s",
	"SESSION_SILENCE_TIMEOUT": "60s",
	"SEGMENT_MAX_UTTERANCE":   "30s",

	"GATE_MIN_UTTERANCE":     "1s",
	"GATE_MIN_SPEECH_ENERGY": 500.0,

	"STT_LOCAL_URL":       "",
	"STT_REMOTE_PROVIDER": "openai",
	"STT_LANGUAGE":        "en",
	"STT_PROMPT":          "",
	"STT_MODEL":           "whisper-1",
	"STT_CALL_TIMEOUT":    "20s",

	"OPENAI_API_KEY":  "",
	"OPENAI_BASE_URL": "https://api.openai.com/v1",

	"GOOGLE_LANGUAGE_CODE":  "en-US",
	"GOOGLE_AUDIO_ENCODING": "LINEAR16",
	"GOOGLE_MODEL":          "",

	"SENTIMENT_URL":      "",
	"ADVICE_MODEL":       "gpt-4o-mini",
	"ENRICHMENT_TIMEOUT": "15s",

	"SUMMARY_MODEL":   "gpt-4o-mini",
	"SUMMARY_TIMEOUT": "30s",

	"SESSION_FLUSH_TIMEOUT": "5s",

	"KAFKA_ENABLED":         false,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC_INSIGHTS":  "session.insights.v1",
	"KAFKA_TOPIC_LIFECYCLE": "session.lifecycle.v1",
	"KAFKA_PRINCIPAL":       "",

	"STORE_PATH": "data/insights.db",

	"CAPTURE_ENABLED":      false,
	"CAPTURE_DEVICE_INDEX": -1,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

// Load reads configuration from the environment, layered over the file
// named by CONFIG_FILE when set. Values that fail to parse fall back to
// their defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Config file not loaded, using environment only")
		}
	}

	r := reader{v: v}
	principal := r.str("SERVICE_PRINCIPAL")
	kafkaPrincipal := r.str("KAFKA_PRINCIPAL")
	if kafkaPrincipal == "" {
		kafkaPrincipal = principal
	}

	return &Config{
		Service: ServiceConfig{
			Name:        r.str("SERVICE_NAME"),
			Principal:   principal,
			GRPCPort:    r.str("GRPC_PORT"),
			HTTPAddr:    r.str("HTTP_ADDR"),
			MetricsAddr: r.str("METRICS_ADDR"),
		},
		Audio: AudioConfig{
			SampleRateHz:    r.int("AUDIO_SAMPLE_RATE_HZ"),
			FrameDuration:   r.duration("AUDIO_FRAME_DURATION"),
			EnergyThreshold: r.float("AUDIO_ENERGY_THRESHOLD"),
		},
		Segmenter: SegmenterConfig{
			PauseThreshold:   r.duration("SEGMENT_PAUSE_THRESHOLD"),
			SilenceThreshold: r.duration("SESSION_SILENCE_TIMEOUT"),
			MaxUtterance:     r.duration("SEGMENT_MAX_UTTERANCE"),
		},
		Gate: GateConfig{
			MinUtterance:    r.duration("GATE_MIN_UTTERANCE"),
			MinSpeechEnergy: r.float("GATE_MIN_SPEECH_ENERGY"),
		},
		STT: STTConfig{
			LocalURL:       r.str("STT_LOCAL_URL"),
			RemoteProvider: strings.ToLower(r.str("STT_REMOTE_PROVIDER")),
			Language:       r.str("STT_LANGUAGE"),
			Prompt:         r.str("STT_PROMPT"),
			Model:          r.str("STT_MODEL"),
			CallTimeout:    r.duration("STT_CALL_TIMEOUT"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  r.str("OPENAI_API_KEY"),
			BaseURL: r.str("OPENAI_BASE_URL"),
		},
		Google: GoogleConfig{
			LanguageCode:  r.str("GOOGLE_LANGUAGE_CODE"),
			AudioEncoding: r.str("GOOGLE_AUDIO_ENCODING"),
			Model:         r.str("GOOGLE_MODEL"),
		},
		Enrichment: EnrichmentConfig{
			SentimentURL: r.str("SENTIMENT_URL"),
			AdviceModel:  r.str("ADVICE_MODEL"),
			Timeout:      r.duration("ENRICHMENT_TIMEOUT"),
		},
		Summary: SummaryConfig{
			Model:   r.str("SUMMARY_MODEL"),
			Timeout: r.duration("SUMMARY_TIMEOUT"),
		},
		Session: SessionConfig{
			FlushTimeout: r.duration("SESSION_FLUSH_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Enabled:        r.bool("KAFKA_ENABLED"),
			Brokers:        splitList(r.str("KAFKA_BROKERS")),
			TopicInsights:  r.str("KAFKA_TOPIC_INSIGHTS"),
			TopicLifecycle: r.str("KAFKA_TOPIC_LIFECYCLE"),
			Principal:      kafkaPrincipal,
		},
		Store: StoreConfig{
			Path: r.str("STORE_PATH"),
		},
		Capture: CaptureConfig{
			Enabled:     r.bool("CAPTURE_ENABLED"),
			DeviceIndex: r.int("CAPTURE_DEVICE_INDEX"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  strings.ToLower(r.str("LOG_LEVEL")),
			LogFormat: strings.ToLower(r.str("LOG_FORMAT")),
		},
	}
}

// reader converts viper values with cast, logging and falling back to the
// default on parse errors.
type reader struct {
	v *viper.Viper
}

func (r reader) str(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r reader) int(key string) int {
	n, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.invalid(key, err)
		return cast.ToInt(defaults[key])
	}
	return n
}

func (r reader) float(key string) float64 {
	f, err := cast.ToFloat64E(r.v.Get(key))
	if err != nil {
		r.invalid(key, err)
		return cast.ToFloat64(defaults[key])
	}
	return f
}

func (r reader) bool(key string) bool {
	b, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.invalid(key, err)
		return cast.ToBool(defaults[key])
	}
	return b
}

func (r reader) duration(key string) time.Duration {
	d, err := cast.ToDurationE(r.v.Get(key))
	if err != nil || d < 0 {
		r.invalid(key, err)
		return cast.ToDuration(defaults[key])
	}
	return d
}

func (r reader) invalid(key string, err error) {
	log.Warn().Err(err).Str("key", key).Msg("Invalid config value, using default")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
