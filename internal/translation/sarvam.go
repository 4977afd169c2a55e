package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/httpclient"
	"call-insights-go/internal/types"
)

const DefaultSarvamURL = "https://api.sarvam.ai/translate"

type sarvamRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	SpeakerGender      string `json:"speaker_gender"`
	Mode               string `json:"mode"`
	Model              string `json:"model"`
}

type sarvamResponse struct {
	RequestID          string `json:"request_id"`
	TranslatedText     string `json:"translated_text"`
	SourceLanguageCode string `json:"source_language_code"`
}

// SarvamClient calls the Sarvam text translation endpoint.
type SarvamClient struct {
	url    string
	apiKey string
	model  string
	http   *httpclient.Client
}

func NewSarvamClient(url, apiKey, model string, hc *httpclient.Client) (*SarvamClient, error) {
	if apiKey == "" {
		return nil, failure.New(failure.Configuration, "translate", "SARVAM_API_KEY not configured")
	}
	if url == "" {
		url = DefaultSarvamURL
	}
	if model == "" {
		model = "mayura:v1"
	}
	return &SarvamClient{url: url, apiKey: apiKey, model: model, http: hc}, nil
}

func (c *SarvamClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if types.IsSilent(text) {
		return text, nil
	}
	payload, err := json.Marshal(sarvamRequest{
		Input:              text,
		SourceLanguageCode: sourceLang,
		TargetLanguageCode: targetLang,
		SpeakerGender:      "Male",
		Mode:               "formal",
		Model:              c.model,
	})
	if err != nil {
		return "", err
	}

	var resp sarvamResponse
	err = c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-subscription-key", c.apiKey)
		return req, nil
	}, &resp)
	if err != nil {
		return "", failure.Wrap(failure.UpstreamUnavailable, "sarvam translate", err)
	}
	if strings.TrimSpace(resp.TranslatedText) == "" {
		return "", failure.New(failure.SchemaViolation, "sarvam translate", "response without translated_text (request %s)", resp.RequestID)
	}
	return resp.TranslatedText, nil
}

// Mock prefixes the target tag; used when USE_MOCK_TRANSLATE=true.
type Mock struct{}

func (Mock) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	if types.IsSilent(text) {
		return text, nil
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}
