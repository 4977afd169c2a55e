package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"call-insights-go/internal/llm"
)

// MockGenerator answers without a model: it reads the payload back out of
// the prompt and fills the schema with conservative values flagged for
// human review.
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, req llm.GenerateRequest) (llm.Response, error) {
	p, err := payloadFromPrompt(req.User)
	if err != nil {
		return llm.Response{}, fmt.Errorf("mock generate: %w", err)
	}
	ins := conservative(p)
	body, err := json.Marshal(Result{Insights: ins, UISpec: UISpec{Root: BuildUI(ins)}})
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Kind: llm.KindText, Text: string(body), FinishReason: "stop", Model: "mock"}, nil
}

func conservative(p Payload) Insights {
	speakers := map[string]struct{}{}
	for _, s := range p.Segments {
		speakers[s.Speaker] = struct{}{}
	}
	labels := make([]string, 0, len(speakers))
	for s := range speakers {
		labels = append(labels, s)
	}
	sort.Strings(labels)

	summary := strings.TrimSpace(p.Transcript)
	if r := []rune(summary); len(r) > 200 {
		summary = string(r[:200]) + "..."
	}
	if summary == "" {
		summary = "No transcript available."
	}

	return Insights{
		Summary:          summary,
		PrimaryIntent:    "unknown",
		IntentConfidence: 0,
		SecondaryIntents: []string{},
		Entities:         []Entity{},
		Obligations:      []Obligation{},
		RegulatoryFlags:  []string{},
		RiskLevel:        "medium",
		Sentiment:        "neutral",
		Emotions:         []Emotion{},
		PIIDetected:      false,
		ActionItems:      []string{"Review the call manually"},
		Ingestion: Ingestion{
			DetectedLanguage:   p.Language,
			LanguageConfidence: 0,
			NoiseLevel:         "unknown",
			CallQualityScore:   0,
			SpeakerDiarization: Diarization{SpeakerCount: len(labels), SpeakerLabels: labels},
			TamperReplayRisk:   "unknown",
			IngestFlags:        []string{},
		},
		Transcription: Transcription{
			ASRSummary:         "Not assessed",
			TranscriptLanguage: p.Language,
			DomainTerms:        []string{},
			ProfanityTerms:     []string{},
			PIIItems:           []PIIItem{},
		},
		Understanding: Understanding{EmotionStressMarkers: []string{}},
		Review: Review{
			NeedsHumanReview: true,
			ReviewReasons:    []string{"Generated without a language model"},
			CorrectionQueue:  []ReviewItem{},
		},
	}
}

// BuildUI lays out ins as a render tree whose collections mirror ins
// exactly.
func BuildUI(ins Insights) UINode {
	stats := []StatItem{
		{Label: "Risk", Value: ins.RiskLevel, Tone: tone(ins.RiskLevel)},
		{Label: "Sentiment", Value: ins.Sentiment, Tone: nil},
		{Label: "Primary intent", Value: ins.PrimaryIntent, Tone: nil},
		{Label: "Speakers", Value: strconv.Itoa(ins.Ingestion.SpeakerDiarization.SpeakerCount), Tone: nil},
		{Label: "Entities", Value: strconv.Itoa(len(ins.Entities)), Tone: nil},
		{Label: "Obligations", Value: strconv.Itoa(len(ins.Obligations)), Tone: nil},
	}

	return Node(&LayoutProps{Title: "Call insights", Subtitle: ptr("Language: " + ins.Ingestion.DetectedLanguage)},
		Node(&SectionProps{Title: "Overview"},
			Node(&SummaryCardProps{Title: "Summary", Text: ins.Summary}),
			Node(&StatGridProps{Items: stats}),
			Node(&ConfidenceMeterProps{Label: "Intent confidence", Value: ins.IntentConfidence}),
		),
		Node(&SectionProps{Title: "Financial details"},
			Node(&EntityTableProps{Title: "Entities", Rows: orEmpty(ins.Entities)}),
			Node(&ObligationListProps{Title: "Obligations", Items: orEmpty(ins.Obligations)}),
			Node(&TagListProps{Title: "Regulatory flags", Tags: orEmpty(ins.RegulatoryFlags)}),
		),
		Node(&SectionProps{Title: "Next steps", Description: reviewNote(ins.Review)},
			Node(&ActionListProps{Title: "Action items", Items: orEmpty(ins.ActionItems)}),
			Node(&ReviewQueueProps{Title: "Review queue", Items: orEmpty(ins.Review.CorrectionQueue)}),
		),
	)
}

func tone(risk string) *string {
	switch risk {
	case "high":
		return ptr("danger")
	case "medium":
		return ptr("warning")
	case "low":
		return ptr("success")
	}
	return nil
}

func reviewNote(r Review) *string {
	if !r.NeedsHumanReview {
		return nil
	}
	return ptr(strings.Join(r.ReviewReasons, "; "))
}

func ptr[T any](v T) *T { return &v }

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
