package server

import "strings"

// languageRef is a resolved (ISO-639-1 code, display name) pair.
type languageRef struct {
	Code string
	Name string
}

var englishFallback = languageRef{Code: "en", Name: "English"}

// languageAliases maps normalized free-text spellings of a language (or the
// country commonly associated with it) to its canonical language. Keys are
// lowercase with all non-letters stripped; see normalizeLanguageAlias.
// Loaded once, never mutated.
var languageAliases = map[string]languageRef{
	"english": {Code: "en", Name: "English"},

	"japanese": {Code: "ja", Name: "Japanese"},
	"japan":    {Code: "ja", Name: "Japanese"},

	"korean": {Code: "ko", Name: "Korean"},
	"korea":  {Code: "ko", Name: "Korean"},
	"kor":    {Code: "ko", Name: "Korean"},

	"chinese":  {Code: "zh", Name: "Chinese"},
	"mandarin": {Code: "zh", Name: "Chinese"},
	"china":    {Code: "zh", Name: "Chinese"},

	"thai":     {Code: "th", Name: "Thai"},
	"thailand": {Code: "th", Name: "Thai"},

	"vietnamese": {Code: "vi", Name: "Vietnamese"},
	"vietnam":    {Code: "vi", Name: "Vietnamese"},

	"spanish": {Code: "es", Name: "Spanish"},
	"spain":   {Code: "es", Name: "Spanish"},

	"french": {Code: "fr", Name: "French"},
	"france": {Code: "fr", Name: "French"},

	"german":  {Code: "de", Name: "German"},
	"germany": {Code: "de", Name: "German"},

	"italian": {Code: "it", Name: "Italian"},
	"italy":   {Code: "it", Name: "Italian"},

	"tagalog":     {Code: "tl", Name: "Tagalog"},
	"filipino":    {Code: "tl", Name: "Tagalog"},
	"philippines": {Code: "tl", Name: "Tagalog"},

	"portuguese": {Code: "pt", Name: "Portuguese"},
	"brazil":     {Code: "pt", Name: "Portuguese"},

	"indonesian": {Code: "id", Name: "Indonesian"},
	"indonesia":  {Code: "id", Name: "Indonesian"},

	"hindi": {Code: "hi", Name: "Hindi"},

	"arabic": {Code: "ar", Name: "Arabic"},

	"dutch":       {Code: "nl", Name: "Dutch"},
	"netherlands": {Code: "nl", Name: "Dutch"},
}

// countryForLanguageCode picks the representative country used as the
// cultural-tip lookup key for a language.
var countryForLanguageCode = map[string]string{
	"ja": "Japan",
	"ko": "Korea",
	"th": "Thailand",
	"vi": "Vietnam",
	"tl": "Philippines",
	"zh": "China",
	"fr": "France",
	"it": "Italy",
	"es": "Spain",
	"de": "Germany",
	"pt": "Brazil",
	"id": "Indonesia",
	"hi": "India",
	"ar": "Egypt",
	"nl": "Netherlands",
}

// nonLatinScriptCodes is the fixed set of target languages whose replies
// carry a separate pronunciation hint for speech synthesis.
var nonLatinScriptCodes = map[string]struct{}{
	"ja": {},
	"ko": {},
	"zh": {},
	"th": {},
}

func normalizeLanguageAlias(alias string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(alias)) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveLanguage maps a free-text language name to its canonical language.
// Resolution never fails: an unrecognized alias degrades to English.
func resolveLanguage(alias string) languageRef {
	if ref, ok := languageAliases[normalizeLanguageAlias(alias)]; ok {
		return ref
	}
	return englishFallback
}

// countryForLanguage returns a non-empty country name for a language so the
// downstream cultural-tip lookup always has a key to try. On a miss the
// language's display name stands in for the country.
func countryForLanguage(ref languageRef) string {
	if country, ok := countryForLanguageCode[ref.Code]; ok {
		return country
	}
	return ref.Name
}

func needsPronunciationHint(code string) bool {
	_, ok := nonLatinScriptCodes[code]
	return ok
}
