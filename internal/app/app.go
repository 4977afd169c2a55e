// Package app wires configuration into a ready pipeline.
package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"call-insights-go/internal/config"
	"call-insights-go/internal/httpclient"
	"call-insights-go/internal/insights"
	"call-insights-go/internal/intent"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/processor"
	"call-insights-go/internal/publish"
	"call-insights-go/internal/transcription"
	"call-insights-go/internal/translation"
)

type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Orchestrator *pipeline.Orchestrator
	Processor    *processor.Processor
	Publisher    publish.Publisher
}

// Build selects real or mock collaborators from cfg. A missing credential
// for a required collaborator is a ConfigurationError; a missing intent
// credential only disables the intent stage.
func Build(cfg *config.Config) (*App, error) {
	logger.Configure(cfg.Environment, cfg.LogLevel)
	log := logger.New()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	hc := httpclient.New(cfg.HTTPTimeout, cfg.RetryMaxElapsed)

	stages, err := buildStages(cfg, hc, m, log)
	if err != nil {
		return nil, err
	}
	orch := pipeline.New(stages, m, log)
	pub := publish.New(publish.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, m, log)

	return &App{
		Config:       cfg,
		Log:          log,
		Registry:     reg,
		Metrics:      m,
		Orchestrator: orch,
		Processor:    processor.New(orch, pub, cfg.TempDir, log),
		Publisher:    pub,
	}, nil
}

func buildStages(cfg *config.Config, hc *httpclient.Client, m *metrics.Metrics, log *logger.Logger) (pipeline.Stages, error) {
	var s pipeline.Stages

	if cfg.Mock.Transcribe {
		log.Warn("using mock transcriber")
		s.Transcriber = transcription.Mock{}
	} else {
		tc, err := transcription.NewClient(transcription.Config{
			BaseURL:      cfg.Transcribe.URL,
			APIKey:       cfg.Transcribe.APIKey,
			Model:        cfg.Transcribe.Model,
			PollInterval: cfg.Transcribe.PollInterval,
			PollAttempts: cfg.Transcribe.PollAttempts,
		}, hc, m, log)
		if err != nil {
			return s, err
		}
		s.Transcriber = tc
	}

	var svc translation.Service = translation.Mock{}
	if cfg.Mock.Translate {
		log.Warn("using mock translator")
	} else {
		sc, err := translation.NewSarvamClient(cfg.Translate.URL, cfg.Translate.APIKey, cfg.Translate.Model, hc)
		if err != nil {
			return s, err
		}
		svc = sc
	}
	s.Translator = translation.NewEnricher(svc,
		translation.WithTarget(cfg.Translate.TargetLanguage),
		translation.WithConcurrency(cfg.Concurrency),
		translation.WithMetrics(m),
		translation.WithLogger(log),
	)

	if cfg.Mock.LLM {
		log.Warn("using mock insight generator and keyword intent classifier")
		s.Synthesizer = insights.NewSynthesizer(insights.MockGenerator{}, m, log)
		s.Tagger = intent.NewEnricher(intent.NewClassifier(intent.KeywordBackend{}, m, log), cfg.Concurrency)
		return s, nil
	}

	gen, err := llm.NewClient(llm.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.Model,
		MaxElapsed: cfg.RetryMaxElapsed,
	})
	if err != nil {
		return s, err
	}
	s.Synthesizer = insights.NewSynthesizer(gen, m, log)

	if cfg.OpenAI.IntentAPIKey == "" {
		log.Warn("INTENT_API_KEY not set; intent classification unavailable")
		return s, nil
	}
	ic, err := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAI.IntentAPIKey,
		BaseURL:     cfg.OpenAI.IntentBaseURL,
		IntentModel: cfg.OpenAI.IntentModel,
		MaxElapsed:  cfg.RetryMaxElapsed,
	})
	if err != nil {
		return s, err
	}
	s.Tagger = intent.NewEnricher(intent.NewClassifier(sessions(ic), m, log), cfg.Concurrency)
	return s, nil
}

// sessions adapts the llm client to the classifier's Backend. A nil
// *llm.Session must not become a non-nil interface.
func sessions(c *llm.Client) intent.Backend {
	return intent.BackendFunc(func(ctx context.Context) (intent.Session, error) {
		sess, err := c.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}

// Close releases the publisher.
func (a *App) Close() error {
	return a.Publisher.Close()
}
