package langdetect

import "testing"

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		fallback string
		want     string
	}{
		{"tamil", "வணக்கம்", "unknown", "ta-IN"},
		{"hindi", "नमस्ते", "ta-IN", "hi-IN"},
		{"bengali", "নমস্কার", "ta-IN", "bn-IN"},
		{"telugu", "నమస్కారం", "ta-IN", "te-IN"},
		{"kannada", "ನಮಸ್ಕಾರ", "ta-IN", "kn-IN"},
		{"malayalam", "നമസ്കാരം", "ta-IN", "ml-IN"},
		{"gujarati", "નમસ્તે", "ta-IN", "gu-IN"},
		{"punjabi", "ਸਤ ਸ੍ਰੀ ਅਕਾਲ", "ta-IN", "pa-IN"},
		{"odia", "ନମସ୍କାର", "ta-IN", "od-IN"},
		{"latin", "EMI", "ta-IN", "en-IN"},
		{"tamil wins over latin", "EMI கட்டுவேன்", "hi-IN", "ta-IN"},
		{"digits only", "12345", "ta-IN", "ta-IN"},
		{"punctuation", "...?", "kn-IN", "kn-IN"},
		{"empty", "", "ta-IN", "ta-IN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Detect(tc.text, tc.fallback); got != tc.want {
				t.Errorf("Detect(%q, %q) = %q, want %q", tc.text, tc.fallback, got, tc.want)
			}
		})
	}
}
