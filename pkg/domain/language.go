package domain

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type LanguageCode string

const (
	LangEnglish  LanguageCode = "en"
	LangGerman   LanguageCode = "de"
	LangFrench   LanguageCode = "fr"
	LangSpanish  LanguageCode = "es"
	LangItalian  LanguageCode = "it"
	LangChinese  LanguageCode = "zh"
	LangHindi    LanguageCode = "hi"
	LangArabic   LanguageCode = "ar"
	LangCroatian LanguageCode = "hr"
)

// DefaultLanguage is used whenever a requested language cannot be matched.
const DefaultLanguage = LangEnglish

// SupportedLanguages lists the languages content is generated in, in display order.
var SupportedLanguages = []LanguageCode{
	LangEnglish, LangGerman, LangFrench, LangSpanish, LangItalian,
	LangChinese, LangHindi, LangArabic, LangCroatian,
}

var (
	supportedTags = func() []language.Tag {
		tags := make([]language.Tag, 0, len(SupportedLanguages))
		for _, code := range SupportedLanguages {
			tags = append(tags, language.MustParse(string(code)))
		}
		return tags
	}()
	languageMatcher = language.NewMatcher(supportedTags)
)

// MatchLanguage maps any BCP 47 tag or Accept-Language style list to the
// closest supported code. It never fails: unknown input yields DefaultLanguage.
func MatchLanguage(raw string) LanguageCode {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(SupportedLanguages) {
		return DefaultLanguage
	}
	return SupportedLanguages[idx]
}

// Supported reports whether c is one of SupportedLanguages.
func (c LanguageCode) Supported() bool {
	for _, s := range SupportedLanguages {
		if s == c {
			return true
		}
	}
	return false
}

// NativeName is the language's own name for itself, e.g. "Deutsch".
func (c LanguageCode) NativeName() string {
	tag, err := language.Parse(string(c))
	if err != nil {
		return string(c)
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return string(c)
}
