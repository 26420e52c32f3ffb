// Package langmeta provides a shared language metadata registry
// (English names, native names, emoji flags) used by translation
// prompts and CLI output.
package langmeta

import "strings"

// Meta describes language display metadata. English is the name used
// when talking to AI providers; Native and Flag are for CLI output.
type Meta struct {
	English string
	Native  string
	Flag    string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"ar":    {English: "Arabic", Native: "العربية", Flag: "🇸🇦"},
	"bg":    {English: "Bulgarian", Native: "Български", Flag: "🇧🇬"},
	"bn":    {English: "Bengali", Native: "বাংলা", Flag: "🇧🇩"},
	"cs":    {English: "Czech", Native: "Čeština", Flag: "🇨🇿"},
	"da":    {English: "Danish", Native: "Dansk", Flag: "🇩🇰"},
	"de":    {English: "German", Native: "Deutsch", Flag: "🇩🇪"},
	"el":    {English: "Greek", Native: "Ελληνικά", Flag: "🇬🇷"},
	"en":    {English: "English", Native: "English", Flag: "🇺🇸"},
	"en-GB": {English: "English (UK)", Native: "English (UK)", Flag: "🇬🇧"},
	"es":    {English: "Spanish", Native: "Español", Flag: "🇪🇸"},
	"et":    {English: "Estonian", Native: "Eesti", Flag: "🇪🇪"},
	"fa":    {English: "Persian", Native: "فارسی", Flag: "🇮🇷"},
	"fi":    {English: "Finnish", Native: "Suomi", Flag: "🇫🇮"},
	"fr":    {English: "French", Native: "Français", Flag: "🇫🇷"},
	"he":    {English: "Hebrew", Native: "עברית", Flag: "🇮🇱"},
	"hi":    {English: "Hindi", Native: "हिन्दी", Flag: "🇮🇳"},
	"hr":    {English: "Croatian", Native: "Hrvatski", Flag: "🇭🇷"},
	"hu":    {English: "Hungarian", Native: "Magyar", Flag: "🇭🇺"},
	"id":    {English: "Indonesian", Native: "Bahasa Indonesia", Flag: "🇮🇩"},
	"it":    {English: "Italian", Native: "Italiano", Flag: "🇮🇹"},
	"ja":    {English: "Japanese", Native: "日本語", Flag: "🇯🇵"},
	"ko":    {English: "Korean", Native: "한국어", Flag: "🇰🇷"},
	"lt":    {English: "Lithuanian", Native: "Lietuvių", Flag: "🇱🇹"},
	"lv":    {English: "Latvian", Native: "Latviešu", Flag: "🇱🇻"},
	"ms":    {English: "Malay", Native: "Bahasa Melayu", Flag: "🇲🇾"},
	"nl":    {English: "Dutch", Native: "Nederlands", Flag: "🇳🇱"},
	"no":    {English: "Norwegian", Native: "Norsk", Flag: "🇳🇴"},
	"pl":    {English: "Polish", Native: "Polski", Flag: "🇵🇱"},
	"pt":    {English: "Portuguese", Native: "Português", Flag: "🇵🇹"},
	"pt-BR": {English: "Brazilian Portuguese", Native: "Português (Brasil)", Flag: "🇧🇷"},
	"ro":    {English: "Romanian", Native: "Română", Flag: "🇷🇴"},
	"ru":    {English: "Russian", Native: "Русский", Flag: "🇷🇺"},
	"sk":    {English: "Slovak", Native: "Slovenčina", Flag: "🇸🇰"},
	"sl":    {English: "Slovenian", Native: "Slovenščina", Flag: "🇸🇮"},
	"sr":    {English: "Serbian", Native: "Српски", Flag: "🇷🇸"},
	"sv":    {English: "Swedish", Native: "Svenska", Flag: "🇸🇪"},
	"th":    {English: "Thai", Native: "ไทย", Flag: "🇹🇭"},
	"tr":    {English: "Turkish", Native: "Türkçe", Flag: "🇹🇷"},
	"uk":    {English: "Ukrainian", Native: "Українська", Flag: "🇺🇦"},
	"vi":    {English: "Vietnamese", Native: "Tiếng Việt", Flag: "🇻🇳"},
	"zh":    {English: "Chinese", Native: "中文", Flag: "🇨🇳"},
	"zh-CN": {English: "Simplified Chinese", Native: "简体中文", Flag: "🇨🇳"},
	"zh-TW": {English: "Traditional Chinese", Native: "繁體中文", Flag: "🇹🇼"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{English: lang, Native: lang}
}

// PromptName returns the name to use in translation prompts: the
// English name with the tag for disambiguation, or the bare tag when
// the language is unknown.
func PromptName(lang string) string {
	m := Resolve(lang)
	if m.English == lang {
		return lang
	}
	return m.English + " (" + lang + ")"
}

// Label returns the CLI display label: flag plus native name when
// known, the bare tag otherwise.
func Label(lang string) string {
	m := Resolve(lang)
	if m.Native == lang || m.Native == "" {
		return lang
	}
	if m.Flag == "" {
		return m.Native
	}
	return m.Flag + " " + m.Native
}
