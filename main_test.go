package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MurphyLo/Document-Synchronizer/docscan"
)

func TestSplitLangs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"ru,de", []string{"ru", "de"}},
		{"ru, de , zh", []string{"ru", "de", "zh"}},
		{"ru,,de,", []string{"ru", "de"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitLangs(c.in)
		if len(got) != len(c.want) {
			t.Errorf("splitLangs(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Errorf("splitLangs(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestDocscanMode(t *testing.T) {
	if got := docscanMode(" Byte-Exact "); got != docscan.FingerprintExact {
		t.Errorf("docscanMode = %q", got)
	}
	if got := docscanMode("normalize-whitespace"); got != docscan.FingerprintNormalized {
		t.Errorf("docscanMode = %q", got)
	}
}

func TestBuildConfigMaxRetriesOverlay(t *testing.T) {
	dir := t.TempDir()
	for _, lang := range []string{"en", "ru"} {
		if err := os.MkdirAll(filepath.Join(dir, lang), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, lang, "index.md"), []byte("# Hi\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	oldPath := basePath
	basePath = dir
	t.Cleanup(func() { basePath = oldPath })

	// Unset flag keeps the configured default.
	cfg, err := buildConfig(newProviderFlags())
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}

	// --max-retries 0 disables retries; it must not fall back to the default.
	pf := newProviderFlags()
	pf.maxRetries = 0
	cfg, err = buildConfig(pf)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"status", "plan", "apply", "sync", "version"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("path") == nil {
		t.Errorf("--path flag missing")
	}
}
