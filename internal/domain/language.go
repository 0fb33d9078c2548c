package domain

// Language is the display language of a session.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// ParseLanguage returns the language for a tag such as "ar-BH", defaulting to English.
func ParseLanguage(tag string) Language {
	if len(tag) >= 2 && tag[:2] == "ar" {
		return LanguageArabic
	}
	return LanguageEnglish
}

// Localize picks the Arabic variant when requested and present.
func Localize(lang Language, en, ar string) string {
	if lang == LanguageArabic && ar != "" {
		return ar
	}
	return en
}
