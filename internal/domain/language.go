package domain

// DefaultLanguageCode is used whenever detection fails or is uncertain.
const DefaultLanguageCode = "en"

var languageNames = map[string]string{
	"en": "English",
	"ro": "Romanian",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"pl": "Polish",
	"sv": "Swedish",
	"ru": "Russian",
	"uk": "Ukrainian",
	"tr": "Turkish",
	"ja": "Japanese",
	"zh": "Chinese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
	"el": "Greek",
	"cs": "Czech",
	"hu": "Hungarian",
}

// Language is the detected language of a query.
type Language struct {
	Code string
	Name string
}

// LanguageFromCode maps an ISO 639-1 code to a Language. Unknown codes keep their code
// and fall back to the English name.
func LanguageFromCode(code string) Language {
	if name, ok := languageNames[code]; ok {
		return Language{Code: code, Name: name}
	}
	return Language{Code: code, Name: languageNames[DefaultLanguageCode]}
}

// IsEnglish reports whether responses need no localization.
func (l Language) IsEnglish() bool {
	return l.Name == languageNames[DefaultLanguageCode]
}
