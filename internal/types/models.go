package types

// NoSpeech is the token the transcription service emits for a segment
// without detected speech.
const NoSpeech = "<nospeech>"

// IsSilent reports whether text is empty or exactly the no-speech token.
// Such units are copied through untranslated and never classified.
func IsSilent(text string) bool {
	return text == "" || text == NoSpeech
}

// CallRecord is the document threaded through the pipeline. Stages only add
// fields; *_english and intent fields are nil until their stage runs.
type CallRecord struct {
	RequestID          string              `json:"request_id,omitempty"`
	LanguageCode       string              `json:"language_code,omitempty"`
	Transcript         string              `json:"transcript"`
	TranscriptEnglish  *string             `json:"transcript_english,omitempty"`
	Timestamps         *Timestamps         `json:"timestamps,omitempty"`
	DiarizedTranscript *DiarizedTranscript `json:"diarized_transcript,omitempty"`
}

type Timestamps struct {
	Words            []string  `json:"words"`
	WordsEnglish     []string  `json:"words_english,omitempty"`
	StartTimeSeconds []float64 `json:"start_time_seconds,omitempty"`
	EndTimeSeconds   []float64 `json:"end_time_seconds,omitempty"`
}

type DiarizedTranscript struct {
	Entries []Entry `json:"entries"`
}

type Entry struct {
	SpeakerID            string                `json:"speaker_id"`
	StartTimeSeconds     float64               `json:"start_time_seconds"`
	EndTimeSeconds       float64               `json:"end_time_seconds"`
	Transcript           string                `json:"transcript"`
	TranscriptEnglish    *string               `json:"transcript_english,omitempty"`
	IntentClassification *IntentClassification `json:"intent_classification,omitempty"`
}

// Utterance is the text intent classification looks at.
func (e Entry) Utterance() string {
	if e.TranscriptEnglish != nil && *e.TranscriptEnglish != "" {
		return *e.TranscriptEnglish
	}
	return e.Transcript
}

type IntentClassification struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// Entries returns the diarized entries, or nil when there are none.
func (r *CallRecord) Entries() []Entry {
	if r.DiarizedTranscript == nil {
		return nil
	}
	return r.DiarizedTranscript.Entries
}

// Clone returns a deep copy so a stage can enrich without touching the
// record an earlier stage produced.
func (r *CallRecord) Clone() *CallRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.TranscriptEnglish = cloneString(r.TranscriptEnglish)
	if r.Timestamps != nil {
		ts := Timestamps{
			Words:            cloneSlice(r.Timestamps.Words),
			WordsEnglish:     cloneSlice(r.Timestamps.WordsEnglish),
			StartTimeSeconds: cloneSlice(r.Timestamps.StartTimeSeconds),
			EndTimeSeconds:   cloneSlice(r.Timestamps.EndTimeSeconds),
		}
		out.Timestamps = &ts
	}
	if r.DiarizedTranscript != nil {
		entries := make([]Entry, len(r.DiarizedTranscript.Entries))
		for i, e := range r.DiarizedTranscript.Entries {
			e.TranscriptEnglish = cloneString(e.TranscriptEnglish)
			if e.IntentClassification != nil {
				ic := *e.IntentClassification
				e.IntentClassification = &ic
			}
			entries[i] = e
		}
		out.DiarizedTranscript = &DiarizedTranscript{Entries: entries}
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}
