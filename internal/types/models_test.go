package types

import (
	"encoding/json"
	"testing"
)

func TestIsSilent(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":              true,
		"   ":           false,
		NoSpeech:        true,
		" <nospeech> ":  false,
		"வணக்கம்":       false,
		"I will pay":    false,
		"<nospeech> ok": false,
	}
	for in, want := range cases {
		if got := IsSilent(in); got != want {
			t.Errorf("IsSilent(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	en := "hello"
	rec := &CallRecord{
		LanguageCode:      "ta-IN",
		Transcript:        "வணக்கம்",
		TranscriptEnglish: &en,
		Timestamps:        &Timestamps{Words: []string{"வணக்கம்"}},
		DiarizedTranscript: &DiarizedTranscript{Entries: []Entry{
			{SpeakerID: "0", Transcript: "வணக்கம்", IntentClassification: &IntentClassification{Label: "AGREEMENT"}},
		}},
	}

	cp := rec.Clone()
	*cp.TranscriptEnglish = "changed"
	cp.Timestamps.Words[0] = "changed"
	cp.DiarizedTranscript.Entries[0].Transcript = "changed"
	cp.DiarizedTranscript.Entries[0].IntentClassification.Label = "REFUSAL"

	if *rec.TranscriptEnglish != "hello" {
		t.Error("transcript_english shared with clone")
	}
	if rec.Timestamps.Words[0] != "வணக்கம்" {
		t.Error("words shared with clone")
	}
	if rec.DiarizedTranscript.Entries[0].Transcript != "வணக்கம்" {
		t.Error("entries shared with clone")
	}
	if rec.DiarizedTranscript.Entries[0].IntentClassification.Label != "AGREEMENT" {
		t.Error("intent classification shared with clone")
	}
}

func TestAbsentFieldsOmitted(t *testing.T) {
	t.Parallel()

	rec := CallRecord{
		LanguageCode:       "hi-IN",
		Transcript:         "नमस्ते",
		DiarizedTranscript: &DiarizedTranscript{Entries: []Entry{{SpeakerID: "1", Transcript: "नमस्ते"}}},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["transcript_english"]; ok {
		t.Error("transcript_english should be absent before translation")
	}
	entry := raw["diarized_transcript"].(map[string]any)["entries"].([]any)[0].(map[string]any)
	if _, ok := entry["intent_classification"]; ok {
		t.Error("intent_classification should be absent before tagging")
	}
}

func TestUtterancePrefersEnglish(t *testing.T) {
	t.Parallel()

	en := "I will pay next week"
	e := Entry{Transcript: "அடுத்த வாரம் கட்டுவேன்", TranscriptEnglish: &en}
	if e.Utterance() != en {
		t.Fatalf("expected english utterance, got %q", e.Utterance())
	}
	empty := ""
	e.TranscriptEnglish = &empty
	if e.Utterance() != e.Transcript {
		t.Fatal("expected fallback to original transcript")
	}
}
