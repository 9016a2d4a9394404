package model

import "strings"

// Supported advice languages.
const (
	LangEnglish = "en"
	LangAmharic = "am"
	LangOromo   = "om"
)

// LangAuto is the dispatch sentinel for "use the recipient's preferred
// language". It is never a valid advice key.
const LangAuto = ""

// NormalizeLanguage maps a language code or legacy long name to its
// canonical code. The long names come from older engine payloads and
// contact imports.
func NormalizeLanguage(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "en", "english":
		return LangEnglish, true
	case "am", "amharic":
		return LangAmharic, true
	case "om", "afaan_oromo", "afaan oromo", "oromo":
		return LangOromo, true
	default:
		return "", false
	}
}

// SupportedLanguages lists the canonical codes in a stable order.
func SupportedLanguages() []string {
	return []string{LangEnglish, LangAmharic, LangOromo}
}
