// Package langdetect guesses a language tag from the Unicode script of a
// piece of text. It is a fallback for units whose script differs from the
// language declared for the whole call.
package langdetect

type scriptRange struct {
	tag    string
	lo, hi rune
}

// Checked in order; the first range containing any rune of the text wins.
var scripts = []scriptRange{
	{"ta-IN", 0x0B80, 0x0BFF}, // Tamil
	{"hi-IN", 0x0900, 0x097F}, // Devanagari
	{"bn-IN", 0x0980, 0x09FF}, // Bengali
	{"pa-IN", 0x0A00, 0x0A7F}, // Gurmukhi
	{"gu-IN", 0x0A80, 0x0AFF}, // Gujarati
	{"od-IN", 0x0B00, 0x0B7F}, // Odia
	{"te-IN", 0x0C00, 0x0C7F}, // Telugu
	{"kn-IN", 0x0C80, 0x0CFF}, // Kannada
	{"ml-IN", 0x0D00, 0x0D7F}, // Malayalam
	{"en-IN", 'A', 'Z'},
	{"en-IN", 'a', 'z'},
}

// Detect returns the tag of the highest-priority script present in text, or
// fallback when no known script appears.
func Detect(text, fallback string) string {
	if text == "" {
		return fallback
	}
	for _, s := range scripts {
		for _, r := range text {
			if r >= s.lo && r <= s.hi {
				return s.tag
			}
		}
	}
	return fallback
}
