package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/types"
)

const (
	SchemaName  = "insights"
	Temperature = 0.2
)

const SystemPrompt = "You are an audio intelligence analyst for financial phone calls. " +
	"Use ONLY the provided transcript, timestamps, and diarized segments. " +
	"Produce structured output that covers ingestion, transcription, financial speech understanding, " +
	"and review/correction. If evidence is missing, output conservative values and add a review reason. " +
	"Do not invent facts. Return JSON matching the schema exactly."

const userInstructions = "Analyze this call. Include: " +
	"noise/language/diarization/tamper-risk signals, ASR quality and multilingual switching, " +
	"intent/entities/obligations/emotion-regulatory markers, and review/correction guidance. " +
	"Return structured insights and a UI spec using allowed components only. " +
	"Every UI node must include both props and children keys (use children: [] for leaves). " +
	"Ensure ui_spec is directly consistent with insights."

const inputMarker = "INPUT:\n"

// UserPrompt renders the instruction block followed by the payload.
func UserPrompt(p Payload) (string, error) {
	body, err := p.encode()
	if err != nil {
		return "", err
	}
	return userInstructions + "\n\n" + inputMarker + body, nil
}

// Result is produced whole or not at all.
type Result struct {
	Insights Insights `json:"insights"`
	UISpec   UISpec   `json:"ui_spec"`
}

// Generator is the structured-generation backend.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (llm.Response, error)
}

type Synthesizer struct {
	gen     Generator
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewSynthesizer(gen Generator, m *metrics.Metrics, log *logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.New()
	}
	return &Synthesizer{gen: gen, metrics: m, log: log.WithComponent("insights")}
}

func (s *Synthesizer) Synthesize(ctx context.Context, rec *types.CallRecord) (*Result, error) {
	const op = "synthesize insights"

	schema, err := Schema()
	if err != nil {
		return nil, failure.Wrap(failure.Configuration, op, err)
	}
	payload := BuildPayload(rec)
	user, err := UserPrompt(payload)
	if err != nil {
		return nil, failure.Wrap(failure.SchemaViolation, op, err)
	}

	start := time.Now()
	resp, err := s.gen.Generate(ctx, llm.GenerateRequest{
		System:      SystemPrompt,
		User:        user,
		SchemaName:  SchemaName,
		Schema:      schema,
		Temperature: Temperature,
	})
	s.metrics.Call("generate", err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failure.Wrap(failure.UpstreamUnavailable, op, err)
	}

	switch resp.Kind {
	case llm.KindText:
	case llm.KindRefusal:
		return nil, failure.New(failure.SchemaViolation, op, "model refused: %s", resp.Refusal)
	case llm.KindTruncated:
		return nil, failure.New(failure.UpstreamUnavailable, op, "output truncated (finish_reason=%s)", resp.FinishReason)
	default:
		return nil, failure.New(failure.UpstreamUnavailable, op, "response did not include text output")
	}

	res, err := Decode([]byte(resp.Text))
	if err != nil {
		s.log.WithError(err).WithField("model", resp.Model).Warn("insights rejected")
		return nil, failure.Wrap(failure.SchemaViolation, op, err)
	}

	s.log.WithField("segments", len(payload.Segments)).
		WithField("risk_level", res.Insights.RiskLevel).
		WithField("needs_review", res.Insights.Review.NeedsHumanReview).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("insights synthesized")
	return res, nil
}

// Decode validates raw generation output against the schema, decodes it
// into typed form and checks value ranges. Any failure rejects the whole
// output.
func Decode(data []byte) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty output")
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var res Result
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode: trailing data after result")
	}
	if err := res.Insights.CheckRanges(); err != nil {
		return nil, err
	}
	if err := res.UISpec.Root.Validate(); err != nil {
		return nil, fmt.Errorf("ui_spec: %w", err)
	}
	return &res, nil
}

// payloadFromPrompt recovers the payload from a prompt built by UserPrompt.
func payloadFromPrompt(prompt string) (Payload, error) {
	i := strings.LastIndex(prompt, inputMarker)
	if i == -1 {
		return Payload{}, errors.New("prompt has no INPUT block")
	}
	var p Payload
	if err := json.Unmarshal([]byte(prompt[i+len(inputMarker):]), &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}
