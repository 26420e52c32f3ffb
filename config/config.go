// Package config implements loading and auto-detection of
// reconciliation settings: an optional docsync.yaml at the
// documentation root, overlaid with flags and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MurphyLo/Document-Synchronizer/docscan"
)

// FileName is the optional configuration file looked up at the
// documentation root.
const FileName = "docsync.yaml"

// Ledger backend identifiers.
const (
	LedgerFile   = "file"
	LedgerSQLite = "sqlite"
)

// Duration wraps time.Duration so YAML can carry values like "30s".
// Bare numbers are read as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return fmt.Errorf("invalid duration value on line %d", value.Line)
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var s string
		if err := value.Decode(&s); err != nil {
			return fmt.Errorf("invalid duration value on line %d", value.Line)
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
}

// Error is a configuration validation failure. It is always fatal;
// a run never starts with a broken configuration.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// LedgerConfig selects the sync ledger backend.
type LedgerConfig struct {
	// Backend is "file" (YAML lockfile) or "sqlite".
	Backend string `yaml:"backend"`
	// Path to the ledger file. Defaults to docsync.lock or
	// docsync.db under the documentation root.
	Path string `yaml:"path"`
}

// Config holds everything a reconciliation run needs.
type Config struct {
	// BasePath is the documentation root containing one subdirectory
	// per language.
	BasePath string `yaml:"path"`
	// Primary is the authoritative language (default "en").
	Primary string `yaml:"primary"`
	// Languages are the target languages. Empty means auto-detect
	// from subdirectories containing documents.
	Languages []string `yaml:"langs"`
	// Fingerprint selects content hashing: byte-exact or
	// normalize-whitespace.
	Fingerprint docscan.FingerprintMode `yaml:"fingerprint"`

	Ledger LedgerConfig `yaml:"ledger"`

	// Provider settings.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Proxy    string `yaml:"proxy"`

	// Execution settings.
	MaxConcurrent int      `yaml:"max_concurrent"`
	MaxRetries    int      `yaml:"max_retries"`
	RequestDelay  Duration `yaml:"request_delay"`
	Timeout       Duration `yaml:"timeout"`
	// Verify enables the structural check of generated documents.
	Verify bool `yaml:"verify"`

	Verbose bool `yaml:"-"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		BasePath:      ".",
		Primary:       "en",
		Fingerprint:   docscan.FingerprintExact,
		Ledger:        LedgerConfig{Backend: LedgerFile},
		Provider:      "google",
		MaxConcurrent: 3,
		MaxRetries:    3,
		Timeout:       Duration(120 * time.Second),
		Verify:        true,
	}
}

// Load reads docsync.yaml from basePath if present and overlays it on
// the defaults. A missing file is not an error.
func Load(basePath string) (*Config, error) {
	cfg := Default()
	if basePath != "" {
		cfg.BasePath = basePath
	}

	data, err := os.ReadFile(filepath.Join(cfg.BasePath, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, &Error{Field: "path", Reason: err.Error()}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Field: FileName, Reason: err.Error()}
	}
	if basePath != "" {
		// The flag wins over a path recorded in the file.
		cfg.BasePath = basePath
	}
	return cfg, nil
}

// Finalize fills remaining blanks (API key from environment, detected
// languages, ledger path) and validates. Call after flags are applied.
func (c *Config) Finalize() error {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("DOCSYNC_API_KEY")
	}
	if c.Fingerprint == "" {
		c.Fingerprint = docscan.FingerprintExact
	}

	if len(c.Languages) == 0 {
		c.Languages = DetectLanguages(c.BasePath, c.Primary)
	}

	if c.Ledger.Path == "" {
		switch c.Ledger.Backend {
		case LedgerSQLite:
			c.Ledger.Path = filepath.Join(c.BasePath, "docsync.db")
		default:
			c.Ledger.Path = filepath.Join(c.BasePath, "docsync.lock")
		}
	}

	return c.Validate()
}

// Validate checks the configuration for fatal errors.
func (c *Config) Validate() error {
	info, err := os.Stat(c.BasePath)
	if err != nil || !info.IsDir() {
		return &Error{Field: "path", Reason: "not a directory: " + c.BasePath}
	}
	if c.Primary == "" {
		return &Error{Field: "primary", Reason: "primary language is required"}
	}
	primaryDir := filepath.Join(c.BasePath, c.Primary)
	if info, err := os.Stat(primaryDir); err != nil || !info.IsDir() {
		return &Error{Field: "primary", Reason: "no directory for primary language: " + primaryDir}
	}
	if len(c.Languages) == 0 {
		return &Error{Field: "langs", Reason: "no target languages configured or detected"}
	}
	for _, lang := range c.Languages {
		if lang == "" {
			return &Error{Field: "langs", Reason: "empty language tag"}
		}
	}
	switch c.Fingerprint {
	case docscan.FingerprintExact, docscan.FingerprintNormalized:
	default:
		return &Error{Field: "fingerprint", Reason: "unknown mode: " + string(c.Fingerprint)}
	}
	switch c.Ledger.Backend {
	case LedgerFile, LedgerSQLite:
	default:
		return &Error{Field: "ledger.backend", Reason: "unknown backend: " + c.Ledger.Backend}
	}
	if c.MaxConcurrent < 1 {
		return &Error{Field: "max_concurrent", Reason: "must be at least 1"}
	}
	if c.MaxRetries < 0 {
		return &Error{Field: "max_retries", Reason: "must not be negative"}
	}
	return nil
}

// Targets returns the target languages with the primary filtered out,
// deduplicated, in stable order.
func (c *Config) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, lang := range c.Languages {
		if lang == c.Primary || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// DetectLanguages finds language subdirectories under basePath that
// contain at least one document, excluding the primary.
func DetectLanguages(basePath, primary string) []string {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil
	}

	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || name == primary || strings.HasPrefix(name, ".") {
			continue
		}
		if !isLangTag(name) {
			continue
		}
		if dirHasDocs(filepath.Join(basePath, name)) {
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs
}

// isLangTag checks if a string looks like a language tag
// (en, ru, pt-BR, zh_CN).
func isLangTag(s string) bool {
	if len(s) == 2 {
		return isLangByte(s[0]) && isLangByte(s[1])
	}
	if len(s) == 5 && (s[2] == '-' || s[2] == '_') {
		return isLangByte(s[0]) && isLangByte(s[1]) &&
			isRegionByte(s[3]) && isRegionByte(s[4])
	}
	return false
}

func isLangByte(b byte) bool { return b >= 'a' && b <= 'z' }

// isRegionByte accepts region subtag characters (BR, cn, 01).
func isRegionByte(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// dirHasDocs reports whether any document file exists under dir.
func dirHasDocs(dir string) bool {
	found := false
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if docscan.IsDocFile(d.Name()) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
