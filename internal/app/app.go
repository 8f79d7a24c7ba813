// Package app wires the session pipeline from configuration.
package app

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/clients/openai"
	"ai-session-insights-service/internal/clients/sentiment"
	"ai-session-insights-service/internal/config"
	"ai-session-insights-service/internal/events"
	apphttp "ai-session-insights-service/internal/http"
	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/resilience"
	"ai-session-insights-service/internal/service/audio"
	"ai-session-insights-service/internal/service/enrich"
	"ai-session-insights-service/internal/service/gate"
	"ai-session-insights-service/internal/service/segment"
	"ai-session-insights-service/internal/service/session"
	"ai-session-insights-service/internal/service/stt"
	"ai-session-insights-service/internal/service/stt/google"
	"ai-session-insights-service/internal/service/stt/local"
	"ai-session-insights-service/internal/service/stt/mock"
	sttopenai "ai-session-insights-service/internal/service/stt/openai"
	"ai-session-insights-service/internal/service/summary"
	"ai-session-insights-service/internal/store/sqlite"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Manager      *session.Manager
	Orchestrator *stt.Orchestrator
	Publisher    *events.Publisher
	Hub          *apphttp.Hub
	Store        *sqlite.Store // nil when the database could not be opened

	closers []func() error
}

// Option adjusts wiring, mainly for tests.
type Option func(*options)

type options struct {
	notifiers []events.Notifier
	noStore   bool
}

// WithNotifier adds a notifier next to Kafka and the WebSocket hub.
func WithNotifier(n events.Notifier) Option {
	return func(o *options) { o.notifiers = append(o.notifiers, n) }
}

// WithoutStore runs without persistence.
func WithoutStore() Option {
	return func(o *options) { o.noStore = true }
}

// New constructs the Application and its pipeline from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{Cfg: cfg}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("component", "application").
		Str("method", "New").
		Logger()

	oc := openai.New(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.STT.CallTimeout,
	})

	a.Orchestrator = stt.NewOrchestrator(cfg.STT.CallTimeout, a.strategies(ctx, oc)...)

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicInsights:  cfg.Kafka.TopicInsights,
		TopicLifecycle: cfg.Kafka.TopicLifecycle,
		Principal:      cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher.Close)

	deps := session.Deps{
		Transcriber: gate.New(gate.Config{
			MinUtteranceMs:  cfg.Gate.MinUtterance.Milliseconds(),
			MinSpeechEnergy: cfg.Gate.MinSpeechEnergy,
		}, a.Orchestrator),
		Enricher: enrich.New(a.classifier(), a.advisor(oc), cfg.Enrichment.Timeout),
	}

	// A nil *openai.Client must not reach the Chatter interface.
	var chat summary.Chatter
	if oc != nil {
		chat = oc
	}
	deps.Summarizer = summary.New(chat, cfg.Summary.Model, cfg.Summary.Timeout)

	if !o.noStore {
		st, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			appLogger.Error().Err(err).Str("path", cfg.Store.Path).Msg("Session store unavailable, running without persistence")
		} else {
			a.Store = st
			deps.Store = st
			a.closers = append(a.closers, st.Close)
		}
	}

	a.Manager = session.NewManager(session.Config{
		Segmenter: segment.Config{
			PauseThreshold:   cfg.Segmenter.PauseThreshold,
			SilenceThreshold: cfg.Segmenter.SilenceThreshold,
			MaxUtterance:     cfg.Segmenter.MaxUtterance,
			EnergyThreshold:  cfg.Audio.EnergyThreshold,
			SampleRate:       cfg.Audio.SampleRateHz,
		},
		FlushTimeout: cfg.Session.FlushTimeout,
	}, deps)

	a.Hub = apphttp.NewHub(a.Manager)
	notifiers := append([]events.Notifier{a.Publisher, a.Hub}, o.notifiers...)
	a.Manager.SetNotifier(events.NewFanout(notifiers...))

	appLogger.Info().
		Strs("sttProviders", a.Orchestrator.Providers()).
		Bool("kafka", a.Publisher.Enabled()).
		Bool("store", a.Store != nil).
		Msg("AI Session Insights service application created")
	return a, nil
}

// strategies builds the transcription chain: the local engine first, then
// the configured remote provider behind a breaker and retry.
func (a *Application) strategies(ctx context.Context, oc *openai.Client) []stt.Strategy {
	cfg := a.Cfg.STT
	logger := logging.WithComponent("application")
	var out []stt.Strategy

	if lc := local.New(cfg.LocalURL, cfg.CallTimeout); lc != nil {
		out = append(out, stt.Local("local", lc))
	}

	opts := stt.RemoteOptions{Language: cfg.Language, Prompt: cfg.Prompt}
	if opts.Prompt == "" {
		opts.Prompt = sttopenai.DefaultPrompt
	}

	var remote stt.Strategy
	switch cfg.RemoteProvider {
	case "openai":
		if ad := sttopenai.New(oc, cfg.Model); ad != nil {
			remote = stt.Remote("openai", ad, opts)
		} else {
			logger.Warn().Msg("OpenAI transcription selected but OPENAI_API_KEY is not set")
		}
	case "google":
		g, err := google.New(ctx, google.Config{
			LanguageCode:      a.Cfg.Google.LanguageCode,
			SampleRateHz:      int32(a.Cfg.Audio.SampleRateHz),
			AudioEncoding:     a.Cfg.Google.AudioEncoding,
			Model:             a.Cfg.Google.Model,
			EnablePunctuation: true,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Google Speech client unavailable")
		} else {
			remote = stt.Remote("google", g, opts)
			a.closers = append(a.closers, g.Close)
		}
	case "mock":
		return append(out, stt.Remote("mock", mock.New(), opts))
	case "none", "":
	default:
		logger.Warn().Str("provider", cfg.RemoteProvider).Msg("Unknown remote STT provider")
	}

	if remote != nil {
		name := "stt-" + remote.Name()
		out = append(out, stt.Guard(remote,
			resilience.NewBreaker(name, resilience.DefaultConfig()),
			resilience.DefaultRetryConfig(name)))
	}
	return out
}

func (a *Application) classifier() enrich.Classifier {
	sc := sentiment.New(a.Cfg.Enrichment.SentimentURL, a.Cfg.Enrichment.Timeout)
	if sc == nil {
		return nil
	}
	return enrich.GuardClassifier(sc,
		resilience.NewBreaker("sentiment", resilience.DefaultConfig()),
		resilience.DefaultRetryConfig("sentiment"))
}

func (a *Application) advisor(oc *openai.Client) enrich.Advisor {
	ad := enrich.NewOpenAIAdvisor(oc, a.Cfg.Enrichment.AdviceModel)
	if ad == nil {
		return nil
	}
	return enrich.GuardAdvisor(ad,
		resilience.NewBreaker("advice", resilience.DefaultConfig()),
		resilience.DefaultRetryConfig("advice"))
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	format := a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = logging.Logger().With().
		Str("service", a.Cfg.Service.Name).
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// FrameBytes is the frame size inbound audio is re-chunked into.
func (a *Application) FrameBytes() int {
	return audio.FrameBytes(a.Cfg.Audio.FrameDuration, a.Cfg.Audio.SampleRateHz)
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("AI Session Insights service starting")

	return nil
}

// Ready reports whether the service accepts sessions.
func (a *Application) Ready() bool {
	return !a.StartupTime.IsZero()
}

// Shutdown closes the active session, then releases collaborators.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("AI Session Insights service shutting down")

	if err := a.Manager.Shutdown(ctx); err != nil {
		shutdownLogger.Error().Err(err).Msg("Session shutdown failed")
	}
	a.Hub.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Close failed")
		}
	}
}
