// Package config loads service settings from .env, an optional YAML file
// named by CALLINTEL_CONFIG, and the environment, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"call-insights-go/internal/failure"
)

type Config struct {
	Port            string        `yaml:"port"`
	Environment     string        `yaml:"environment"`
	LogLevel        string        `yaml:"log_level"`
	TempDir         string        `yaml:"temp_dir"`
	Concurrency     int           `yaml:"concurrency"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`

	Transcribe TranscribeConfig `yaml:"transcribe"`
	Translate  TranslateConfig  `yaml:"translate"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Mock       MockConfig       `yaml:"mock"`
}

type TranscribeConfig struct {
	URL          string        `yaml:"url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
}

type TranslateConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TargetLanguage string `yaml:"target_language"`
}

// OpenAIConfig covers both model endpoints. The intent classifier has its
// own credential; without it the intent stage is skipped.
type OpenAIConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	IntentAPIKey  string `yaml:"intent_api_key"`
	IntentBaseURL string `yaml:"intent_base_url"`
	IntentModel   string `yaml:"intent_model"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MockConfig switches collaborators to their offline stand-ins.
type MockConfig struct {
	Transcribe bool `yaml:"transcribe"`
	Translate  bool `yaml:"translate"`
	LLM        bool `yaml:"llm"`
}

func Default() *Config {
	return &Config{
		Port:            "8000",
		Environment:     "local",
		LogLevel:        "info",
		TempDir:         os.TempDir(),
		Concurrency:     4,
		HTTPTimeout:     30 * time.Second,
		RetryMaxElapsed: 30 * time.Second,
		MaxUploadBytes:  100 << 20,
		Transcribe: TranscribeConfig{
			Model:        "saaras:v3",
			PollInterval: 1500 * time.Millisecond,
			PollAttempts: 40,
		},
		Translate: TranslateConfig{
			URL:            "https://api.sarvam.ai/translate",
			Model:          "mayura:v1",
			TargetLanguage: "en-IN",
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			IntentModel: "gpt-4o",
		},
		Kafka: KafkaConfig{Topic: "call-insights"},
	}
}

// Load reads .env (if present), then the YAML file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CALLINTEL_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return failure.Wrap(failure.Configuration, "config", fmt.Errorf("read %s: %w", path, err))
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return failure.Wrap(failure.Configuration, "config", fmt.Errorf("parse %s: %w", path, err))
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("PORT", &c.Port)
	e.str("ENVIRONMENT", &c.Environment)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("TEMP_DIR", &c.TempDir)
	e.num("CONCURRENCY", &c.Concurrency)
	e.duration("HTTP_TIMEOUT", &c.HTTPTimeout)
	e.duration("RETRY_MAX_ELAPSED", &c.RetryMaxElapsed)
	e.num64("MAX_UPLOAD_BYTES", &c.MaxUploadBytes)

	e.str("TRANSCRIBE_URL", &c.Transcribe.URL)
	e.str("TRANSCRIBE_API_KEY", &c.Transcribe.APIKey)
	e.str("TRANSCRIBE_MODEL", &c.Transcribe.Model)
	e.duration("TRANSCRIBE_POLL_INTERVAL", &c.Transcribe.PollInterval)
	e.num("TRANSCRIBE_POLL_ATTEMPTS", &c.Transcribe.PollAttempts)

	e.str("SARVAM_API_KEY", &c.Translate.APIKey)
	e.str("TRANSLATE_URL", &c.Translate.URL)
	e.str("TRANSLATE_MODEL", &c.Translate.Model)
	e.str("TARGET_LANGUAGE", &c.Translate.TargetLanguage)

	e.str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	e.str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	e.str("OPENAI_MODEL", &c.OpenAI.Model)
	e.str("INTENT_API_KEY", &c.OpenAI.IntentAPIKey)
	e.str("INTENT_BASE_URL", &c.OpenAI.IntentBaseURL)
	e.str("INTENT_MODEL", &c.OpenAI.IntentModel)

	e.list("KAFKA_BROKERS", &c.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &c.Kafka.Topic)

	e.flag("USE_MOCK_TRANSCRIBE", &c.Mock.Transcribe)
	e.flag("USE_MOCK_TRANSLATE", &c.Mock.Translate)
	e.flag("USE_MOCK_LLM", &c.Mock.LLM)

	return e.err
}

func (c *Config) validate() error {
	switch {
	case c.Concurrency < 1:
		return failure.New(failure.Configuration, "config", "CONCURRENCY must be at least 1, got %d", c.Concurrency)
	case c.MaxUploadBytes <= 0:
		return failure.New(failure.Configuration, "config", "MAX_UPLOAD_BYTES must be positive")
	case c.HTTPTimeout <= 0 || c.RetryMaxElapsed <= 0:
		return failure.New(failure.Configuration, "config", "HTTP_TIMEOUT and RETRY_MAX_ELAPSED must be positive")
	case c.Translate.TargetLanguage == "":
		return failure.New(failure.Configuration, "config", "TARGET_LANGUAGE must not be empty")
	}
	return nil
}

// envReader keeps the first parse error so callers can apply every key and
// check once.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = failure.Wrap(failure.Configuration, "config", fmt.Errorf("%s=%q: %w", key, v, err))
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) num(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) num64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) flag(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

// duration accepts Go durations ("1.5s") or a bare number of seconds.
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = time.Duration(secs * float64(time.Second))
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}
