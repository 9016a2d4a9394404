package dispatch

import "agrisms/internal/model"

// Per-language message headers, matching what recipients have been
// receiving historically.
var headers = map[string]string{
	model.LangEnglish: "🌾 Agricultural Advice",
	model.LangAmharic: "🌾 የእርሻ ምክር",
	model.LangOromo:   "🌾 Gorsa Qonnaa",
}

// renderMessage builds the SMS body: header, location line, advice.
func renderMessage(lang, location, advice string) string {
	h, ok := headers[lang]
	if !ok {
		h = headers[model.LangEnglish]
	}
	if location == "" {
		return h + "\n\n" + advice
	}
	return h + "\n\nLocation: " + location + "\n\n" + advice
}
