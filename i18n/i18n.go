// Package i18n localizes docsync's own CLI output.
//
// Message strings in the source are English; translations ship inside the
// binary (//go:embed) as gettext catalogs under locales/ and are selected
// at startup by Init. T and N are thin wrappers over gotext: an untranslated
// message falls through unchanged, so callers never need a fallback path.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Catalogs live at locales/{lang}/LC_MESSAGES/docsync.po.
//
//go:embed all:locales
var locales embed.FS

const domain = "docsync"

var po *gotext.Locale

// Init selects the output language. An empty lang means auto-detect from
// the gettext environment variables (LANGUAGE, LC_ALL, LC_MESSAGES, LANG).
// Call once before the first T or N.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}

	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates msgid, returning it unchanged when no catalog entry exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N picks the plural form for n and translates it. Which form applies is
// the target language's plural formula, not a simple n == 1 test.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage walks the gettext environment variables in priority
// order: LANGUAGE > LC_ALL > LC_MESSAGES > LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		// LANGUAGE may hold a colon-separated preference list.
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// "ru_RU.UTF-8" -> "ru_RU"
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		// C and POSIX mean untranslated output.
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
