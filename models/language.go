package models

import "strings"

// DefaultLanguage is used whenever a contact, response or survey leaves the
// language unset
const DefaultLanguage = "en"

type languageInfo struct {
	name   string
	locale string
}

var languages = map[string]languageInfo{
	"en": {"English", "en-US"},
	"hi": {"Hindi", "hi-IN"},
	"bn": {"Bengali", "bn-IN"},
	"te": {"Telugu", "te-IN"},
	"mr": {"Marathi", "mr-IN"},
	"ta": {"Tamil", "ta-IN"},
	"gu": {"Gujarati", "gu-IN"},
	"kn": {"Kannada", "kn-IN"},
	"ml": {"Malayalam", "ml-IN"},
	"pa": {"Punjabi", "pa-IN"},
}

// SupportedLanguages lists the language codes surveys can be conducted in
var SupportedLanguages = []string{"en", "hi", "bn", "te", "mr", "ta", "gu", "kn", "ml", "pa"}

// IsSupportedLanguage reports whether code is one of SupportedLanguages
func IsSupportedLanguage(code string) bool {
	_, ok := languages[strings.ToLower(code)]
	return ok
}

// LanguageName returns the English display name, falling back to English
func LanguageName(code string) string {
	if info, ok := languages[strings.ToLower(code)]; ok {
		return info.name
	}
	return languages[DefaultLanguage].name
}

// LanguageLocale returns the telephony speech locale (e.g. "hi-IN")
func LanguageLocale(code string) string {
	if info, ok := languages[strings.ToLower(code)]; ok {
		return info.locale
	}
	return languages[DefaultLanguage].locale
}

// NormalizeLanguage lowercases code and substitutes DefaultLanguage when it
// is empty
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}
	return code
}

// LocalizedText is a sparse language -> text mapping. Missing languages fall
// back to the caller-provided default text.
type LocalizedText map[string]string

// Resolve returns the text for lang, or fallback when no non-empty
// translation exists
func (t LocalizedText) Resolve(lang, fallback string) string {
	if t == nil {
		return fallback
	}
	if v, ok := t[NormalizeLanguage(lang)]; ok && v != "" {
		return v
	}
	return fallback
}

// LocalizedOptions is the option-list counterpart of LocalizedText
type LocalizedOptions map[string][]string

// Resolve returns the options for lang, or fallback when none are stored
func (o LocalizedOptions) Resolve(lang string, fallback []string) []string {
	if o == nil {
		return fallback
	}
	if v, ok := o[NormalizeLanguage(lang)]; ok && len(v) > 0 {
		return v
	}
	return fallback
}
