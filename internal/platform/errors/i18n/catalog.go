// Package i18n renders user-facing messages for error codes.
package i18n

import (
	"bytes"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the fallback locale for every lookup.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[string]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		BaseLocale: NewCatalog(BaseLocale, enUS),
		"pt-BR":    NewCatalog("pt-BR", ptBR),
	}
	matcherOnce sync.Once
	matcher     language.Matcher
	matcherTags []string
)

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	cloned := make(map[string]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{locale: locale, messages: cloned}
}

// GetCatalog returns the catalog for locale, falling back to en-US.
func GetCatalog(locale string) *Catalog {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	if c, ok := catalogs[locale]; ok {
		return c
	}
	return catalogs[BaseLocale]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template for code with metadata. Codes missing
// from the catalog fall back to the base locale and then to the code itself.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok && c.locale != BaseLocale {
		return GetCatalog(BaseLocale).Format(code, metadata)
	}
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// Negotiate picks the best supported locale for an Accept-Language value.
func Negotiate(acceptLanguage string) string {
	matcherOnce.Do(buildMatcher)
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return BaseLocale
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return BaseLocale
	}
	return matcherTags[index]
}

// Message is shorthand for GetCatalog(locale).Format(code, metadata).
func Message(locale string, code string, metadata map[string]string) string {
	return GetCatalog(locale).Format(code, metadata)
}

func buildMatcher() {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	matcherTags = []string{BaseLocale}
	supported := []language.Tag{language.MustParse(BaseLocale)}
	for locale := range catalogs {
		if locale == BaseLocale {
			continue
		}
		tag, err := language.Parse(locale)
		if err != nil {
			continue
		}
		matcherTags = append(matcherTags, locale)
		supported = append(supported, tag)
	}
	matcher = language.NewMatcher(supported)
}
