package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"call-insights-go/internal/failure"
)

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.applyEnv(env(nil)); err != nil {
		t.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8000" || cfg.Concurrency != 4 || cfg.MaxUploadBytes != 100<<20 {
		t.Errorf("unexpected server defaults %+v", cfg)
	}
	if cfg.Transcribe.Model != "saaras:v3" || cfg.Transcribe.PollInterval != 1500*time.Millisecond || cfg.Transcribe.PollAttempts != 40 {
		t.Errorf("unexpected transcribe defaults %+v", cfg.Transcribe)
	}
	if cfg.Translate.TargetLanguage != "en-IN" || cfg.Translate.Model != "mayura:v1" {
		t.Errorf("unexpected translate defaults %+v", cfg.Translate)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.IntentModel != "gpt-4o" {
		t.Errorf("unexpected openai defaults %+v", cfg.OpenAI)
	}
	if cfg.Kafka.Topic != "call-insights" || len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("unexpected kafka defaults %+v", cfg.Kafka)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PORT":                     "9090",
		"CONCURRENCY":              "8",
		"HTTP_TIMEOUT":             "10s",
		"TRANSCRIBE_POLL_INTERVAL": "2.5",
		"KAFKA_BROKERS":            "k1:9092, k2:9092,",
		"USE_MOCK_LLM":             "true",
		"OPENAI_API_KEY":           "  sk-test  ",
		"TARGET_LANGUAGE":          "",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.Concurrency != 8 || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Transcribe.PollInterval != 2500*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Transcribe.PollInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Mock.LLM || cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("unexpected mock/openai %+v %+v", cfg.Mock, cfg.OpenAI)
	}
	if cfg.Translate.TargetLanguage != "en-IN" {
		t.Error("an empty variable must not clear the default")
	}
}

func TestEnvParseErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"CONCURRENCY":      "many",
		"MAX_UPLOAD_BYTES": "1MB",
		"USE_MOCK_LLM":     "yes please",
		"HTTP_TIMEOUT":     "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			err := Default().applyEnv(env(map[string]string{key: val}))
			if !failure.Is(err, failure.Configuration) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Concurrency = 0
	if err := cfg.validate(); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestYAMLFileThenEnv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "callintel.yaml")
	doc := `
port: "7000"
concurrency: 2
http_timeout: 45s
transcribe:
  url: https://stt.example
  poll_attempts: 5
kafka:
  brokers: [broker:9092]
mock:
  translate: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	if err := cfg.applyEnv(env(map[string]string{"CONCURRENCY": "6"})); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "7000" || cfg.HTTPTimeout != 45*time.Second || cfg.Transcribe.URL != "https://stt.example" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Transcribe.PollAttempts != 5 || cfg.Transcribe.Model != "saaras:v3" {
		t.Errorf("unexpected transcribe %+v", cfg.Transcribe)
	}
	if cfg.Concurrency != 6 {
		t.Errorf("env must override the file, concurrency = %d", cfg.Concurrency)
	}
	if !cfg.Mock.Translate || cfg.Kafka.Brokers[0] != "broker:9092" {
		t.Errorf("unexpected mock/kafka %+v %+v", cfg.Mock, cfg.Kafka)
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	if err := Default().loadFile(filepath.Join(t.TempDir(), "missing.yaml")); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError for missing file, got %v", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("concurrency: [oops"), 0o600)
	if err := Default().loadFile(bad); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError for bad yaml, got %v", err)
	}
}
