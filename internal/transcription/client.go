// Package transcription talks to the batch speech-to-text job API: publish
// the audio, poll the job, download the diarized transcript.
package transcription

import (
	"context"
	"time"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/httpclient"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/types"
)

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	PollInterval time.Duration
	PollAttempts int
}

type Client struct {
	baseURL      string
	apiKey       string
	model        string
	pollInterval time.Duration
	pollAttempts int
	http         *httpclient.Client
	metrics      *metrics.Metrics
	log          *logger.Logger
}

func NewClient(cfg Config, hc *httpclient.Client, m *metrics.Metrics, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, failure.New(failure.Configuration, "transcribe", "TRANSCRIBE_URL not set")
	}
	if cfg.APIKey == "" {
		return nil, failure.New(failure.Configuration, "transcribe", "TRANSCRIBE_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = "saaras:v3"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1500 * time.Millisecond
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 40
	}
	if log == nil {
		log = logger.New()
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
		http:         hc,
		metrics:      m,
		log:          log.WithComponent("transcription"),
	}, nil
}

// Mock returns a fixed two-speaker Tamil call; used when
// USE_MOCK_TRANSCRIBE=true.
type Mock struct{}

func (Mock) Transcribe(ctx context.Context, _ string) (*types.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.CallRecord{
		LanguageCode: "ta-IN",
		Transcript:   "வணக்கம், உங்கள் EMI நிலுவையில் உள்ளது. சம்பளம் வந்தவுடன் அடுத்த வாரம் கட்டுகிறேன்.",
		Timestamps: &types.Timestamps{
			Words:            []string{"வணக்கம்,", "உங்கள்", "EMI", "நிலுவையில்", "உள்ளது.", "சம்பளம்", "வந்தவுடன்", "அடுத்த", "வாரம்", "கட்டுகிறேன்."},
			StartTimeSeconds: []float64{0.0, 0.8, 1.3, 1.7, 2.5, 3.6, 4.3, 5.1, 5.6, 6.1},
			EndTimeSeconds:   []float64{0.7, 1.2, 1.6, 2.4, 3.0, 4.2, 5.0, 5.5, 6.0, 6.9},
		},
		DiarizedTranscript: &types.DiarizedTranscript{Entries: []types.Entry{
			{SpeakerID: "0", StartTimeSeconds: 0.0, EndTimeSeconds: 3.0, Transcript: "வணக்கம், உங்கள் EMI நிலுவையில் உள்ளது."},
			{SpeakerID: "1", StartTimeSeconds: 3.0, EndTimeSeconds: 3.5, Transcript: types.NoSpeech},
			{SpeakerID: "1", StartTimeSeconds: 3.6, EndTimeSeconds: 6.9, Transcript: "சம்பளம் வந்தவுடன் அடுத்த வாரம் கட்டுகிறேன்."},
		}},
	}, nil
}
