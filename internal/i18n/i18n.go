// Package i18n selects the message printer used for CLI output.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language
var DefaultLang = language.English

// SupportedLangs are the languages we support
var SupportedLangs = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(SupportedLangs)

// Translated CLI messages. Keys are the English format strings.
var catalog = map[language.Tag]map[string]string{
	language.German: {
		"No difference.\n":                           "Kein Unterschied.\n",
		"Rulesets are identical, nothing to do.\n":   "Regelsätze sind identisch, nichts zu tun.\n",
		"No changes applied.\n":                      "Keine Änderungen angewendet.\n",
		"Rules loaded successfully.\n":               "Regeln erfolgreich geladen.\n",
		"Compare %s (<) and %s (>)\n":                "Vergleiche %s (<) und %s (>)\n",
		"Table %s saved.\n":                          "Tabelle %s gespeichert.\n",
		"No problems found.\n":                       "Keine Probleme gefunden.\n",
		"Restored snapshot %s.\n":                    "Schnappschuss %s wiederhergestellt.\n",
		"No snapshots recorded.\n":                   "Keine Schnappschüsse vorhanden.\n",
		"Purging %s\n":                               "Leere %s\n",
		"Wrote %s\n":                                 "%s geschrieben\n",
		"Could not load rules: error at line %d (table %s, chain %s)\n--> %s\n": "Regeln konnten nicht geladen werden: Fehler in Zeile %d (Tabelle %s, Kette %s)\n--> %s\n",
	},
}

func init() {
	for tag, msgs := range catalog {
		for key, msg := range msgs {
			_ = message.SetString(tag, key, msg)
		}
	}
}

// MatchLanguage returns the best supported language for a locale string
// such as "de_DE.UTF-8" or an Accept-Language style list.
func MatchLanguage(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if i := strings.Index(locale, "."); i != -1 {
		locale = locale[:i]
	}
	if i := strings.Index(locale, "@"); i != -1 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return DefaultLang
	}

	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	tag, _, _ := matcher.Match(tags...)
	base, _ := tag.Base()
	return language.Make(base.String())
}

// NewPrinter returns a message printer for the given language
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// NewCLIPrinter returns a printer for the system's locale (from env vars)
func NewCLIPrinter() *message.Printer {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LC_MESSAGES")
	}
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	return message.NewPrinter(MatchLanguage(lang))
}
