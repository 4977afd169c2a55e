package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"call-insights-go/internal/config"
	"call-insights-go/internal/failure"
	"call-insights-go/internal/httpclient"
	"call-insights-go/internal/insights"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/publish"
)

func init() {
	logger.SetOutput(&bytes.Buffer{})
}

func mockConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.Mock = config.MockConfig{Transcribe: true, Translate: true, LLM: true}
	return cfg
}

func TestBuildMockEndToEnd(t *testing.T) {
	t.Parallel()

	a, err := Build(mockConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()
	if _, ok := a.Publisher.(publish.Nop); !ok {
		t.Errorf("expected Nop publisher without brokers, got %T", a.Publisher)
	}

	audio := filepath.Join(t.TempDir(), "call.m4a")
	if err := os.WriteFile(audio, []byte("audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := a.Processor.ProcessFile(context.Background(), "req-e2e", audio)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if res.RequestID != "req-e2e" || res.TranslateOutput.LanguageCode != "ta-IN" {
		t.Errorf("unexpected result header %+v", res.TranslateOutput)
	}
	if res.IntentOutput == nil || len(res.IntentOutput.Entries()) != 3 {
		t.Fatal("expected intent output for every entry")
	}
	if res.UISpec.Root.Type != insights.InsightsLayout {
		t.Errorf("ui root = %s", res.UISpec.Root.Type)
	}

	mfs, err := a.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "call_insights_runs_total" {
			found = true
		}
	}
	if !found {
		t.Error("pipeline metrics not registered")
	}
}

func TestBuildMissingCredentials(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*config.Config){
		"transcribe": func(c *config.Config) { c.Mock.Transcribe = false },
		"translate":  func(c *config.Config) { c.Mock.Translate = false },
		"llm":        func(c *config.Config) { c.Mock.LLM = false },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := mockConfig(t)
			mutate(cfg)
			if _, err := Build(cfg); !failure.Is(err, failure.Configuration) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestIntentStageOptional(t *testing.T) {
	t.Parallel()

	cfg := mockConfig(t)
	cfg.Mock.LLM = false
	cfg.OpenAI.APIKey = "sk-test"

	hc := httpclient.New(cfg.HTTPTimeout, cfg.RetryMaxElapsed)
	s, err := buildStages(cfg, hc, nil, logger.New())
	if err != nil {
		t.Fatalf("buildStages: %v", err)
	}
	if s.Tagger != nil {
		t.Fatal("tagger must be nil without an intent credential")
	}
	if s.Synthesizer == nil {
		t.Fatal("synthesizer missing")
	}

	cfg.OpenAI.IntentAPIKey = "intent-key"
	s, err = buildStages(cfg, hc, nil, logger.New())
	if err != nil {
		t.Fatalf("buildStages: %v", err)
	}
	if s.Tagger == nil {
		t.Fatal("tagger expected with an intent credential")
	}
}
