package insights

import (
	"bytes"
	"encoding/json"

	"call-insights-go/internal/types"
)

// Payload is the normalized view of a call record sent for analysis.
type Payload struct {
	Language   string            `json:"language"`
	Transcript string            `json:"transcript"`
	Segments   []Segment         `json:"segments"`
	Timestamps PayloadTimestamps `json:"timestamps"`
}

type Segment struct {
	Speaker string  `json:"speaker"`
	StartS  float64 `json:"start_s"`
	EndS    float64 `json:"end_s"`
	Text    string  `json:"text"`
}

// PayloadTimestamps keeps absent lists as null.
type PayloadTimestamps struct {
	Words            []string  `json:"words"`
	WordsEnglish     []string  `json:"words_english"`
	StartTimeSeconds []float64 `json:"start_time_seconds"`
	EndTimeSeconds   []float64 `json:"end_time_seconds"`
}

func BuildPayload(rec *types.CallRecord) Payload {
	p := Payload{
		Language:   rec.LanguageCode,
		Transcript: rec.Transcript,
		Segments:   []Segment{},
	}
	if p.Language == "" {
		p.Language = "unknown"
	}
	if rec.TranscriptEnglish != nil && *rec.TranscriptEnglish != "" {
		p.Transcript = *rec.TranscriptEnglish
	}
	for _, en := range rec.Entries() {
		p.Segments = append(p.Segments, Segment{
			Speaker: en.SpeakerID,
			StartS:  en.StartTimeSeconds,
			EndS:    en.EndTimeSeconds,
			Text:    en.Utterance(),
		})
	}
	if ts := rec.Timestamps; ts != nil {
		p.Timestamps = PayloadTimestamps{
			Words:            ts.Words,
			WordsEnglish:     ts.WordsEnglish,
			StartTimeSeconds: ts.StartTimeSeconds,
			EndTimeSeconds:   ts.EndTimeSeconds,
		}
	}
	return p
}

// encode writes p as JSON without HTML escaping so non-Latin scripts and
// currency symbols reach the model verbatim.
func (p Payload) encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
