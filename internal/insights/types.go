// Package insights turns an enriched call record into structured call
// intelligence plus a declarative UI tree that renders it.
package insights

import "fmt"

type Insights struct {
	Summary          string        `json:"summary"`
	PrimaryIntent    string        `json:"primary_intent"`
	IntentConfidence float64       `json:"intent_confidence"`
	SecondaryIntents []string      `json:"secondary_intents"`
	Entities         []Entity      `json:"entities"`
	Obligations      []Obligation  `json:"obligations"`
	RegulatoryFlags  []string      `json:"regulatory_flags"`
	RiskLevel        string        `json:"risk_level"`
	Sentiment        string        `json:"sentiment"`
	Emotions         []Emotion     `json:"emotions"`
	PIIDetected      bool          `json:"pii_detected"`
	ActionItems      []string      `json:"action_items"`
	Ingestion        Ingestion     `json:"ingestion"`
	Transcription    Transcription `json:"transcription"`
	Understanding    Understanding `json:"understanding"`
	Review           Review        `json:"review"`
}

// Entity is a money amount, date, party or similar mention. Currency and
// Confidence are null when the model had no evidence for them.
type Entity struct {
	Type       string   `json:"type"`
	Value      string   `json:"value"`
	Currency   *string  `json:"currency"`
	Confidence *float64 `json:"confidence"`
}

type Obligation struct {
	Text       string   `json:"text"`
	Speaker    *string  `json:"speaker"`
	DueDate    *string  `json:"due_date"`
	Confidence *float64 `json:"confidence"`
}

type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Ingestion struct {
	DetectedLanguage   string      `json:"detected_language"`
	LanguageConfidence float64     `json:"language_confidence"`
	NoiseLevel         string      `json:"noise_level"`
	CallQualityScore   float64     `json:"call_quality_score"`
	SpeakerDiarization Diarization `json:"speaker_diarization"`
	TamperReplayRisk   string      `json:"tamper_replay_risk"`
	IngestFlags        []string    `json:"ingest_flags"`
}

type Diarization struct {
	SpeakerCount  int      `json:"speaker_count"`
	SpeakerLabels []string `json:"speaker_labels"`
}

type Transcription struct {
	ASRSummary            string    `json:"asr_summary"`
	TranscriptLanguage    string    `json:"transcript_language"`
	MultilingualSwitching bool      `json:"multilingual_switching"`
	ASRConfidence         float64   `json:"asr_confidence"`
	DomainTerms           []string  `json:"domain_terms"`
	ProfanityTerms        []string  `json:"profanity_terms"`
	PIIItems              []PIIItem `json:"pii_items"`
}

type PIIItem struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type Understanding struct {
	FinancialEntityLayerCount int      `json:"financial_entity_layer_count"`
	ObligationCount           int      `json:"obligation_count"`
	EmotionStressMarkers      []string `json:"emotion_stress_markers"`
	RegulatoryPhraseCount     int      `json:"regulatory_phrase_count"`
}

type Review struct {
	NeedsHumanReview bool         `json:"needs_human_review"`
	ReviewReasons    []string     `json:"review_reasons"`
	CorrectionQueue  []ReviewItem `json:"correction_queue"`
}

type ReviewItem struct {
	Field          string `json:"field"`
	CurrentValue   string `json:"current_value"`
	SuggestedValue string `json:"suggested_value"`
	Rationale      string `json:"rationale"`
}

type score struct {
	field string
	v     float64
}

// CheckRanges reports the first score outside [0,1] or negative count.
func (in *Insights) CheckRanges() error {
	scores := []score{
		{"intent_confidence", in.IntentConfidence},
		{"ingestion.language_confidence", in.Ingestion.LanguageConfidence},
		{"ingestion.call_quality_score", in.Ingestion.CallQualityScore},
		{"transcription.asr_confidence", in.Transcription.ASRConfidence},
	}
	for i, e := range in.Entities {
		if e.Confidence != nil {
			scores = append(scores, score{fmt.Sprintf("entities[%d].confidence", i), *e.Confidence})
		}
	}
	for i, o := range in.Obligations {
		if o.Confidence != nil {
			scores = append(scores, score{fmt.Sprintf("obligations[%d].confidence", i), *o.Confidence})
		}
	}
	for i, e := range in.Emotions {
		scores = append(scores, score{fmt.Sprintf("emotions[%d].score", i), e.Score})
	}
	for i, p := range in.Transcription.PIIItems {
		scores = append(scores, score{fmt.Sprintf("transcription.pii_items[%d].confidence", i), p.Confidence})
	}
	for _, s := range scores {
		if s.v < 0 || s.v > 1 {
			return fmt.Errorf("%s = %v is outside [0,1]", s.field, s.v)
		}
	}

	counts := []struct {
		field string
		n     int
	}{
		{"ingestion.speaker_diarization.speaker_count", in.Ingestion.SpeakerDiarization.SpeakerCount},
		{"understanding.financial_entity_layer_count", in.Understanding.FinancialEntityLayerCount},
		{"understanding.obligation_count", in.Understanding.ObligationCount},
		{"understanding.regulatory_phrase_count", in.Understanding.RegulatoryPhraseCount},
	}
	for _, c := range counts {
		if c.n < 0 {
			return fmt.Errorf("%s = %d is negative", c.field, c.n)
		}
	}
	return nil
}
