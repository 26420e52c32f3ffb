package sync

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MurphyLo/Document-Synchronizer/config"
	"github.com/MurphyLo/Document-Synchronizer/docscan"
	"github.com/MurphyLo/Document-Synchronizer/ledger"
	"github.com/MurphyLo/Document-Synchronizer/plan"
	"github.com/MurphyLo/Document-Synchronizer/translate"
)

// echoTranslator returns a marked copy of the source and counts calls.
type echoTranslator struct {
	calls int
}

func (e *echoTranslator) Translate(ctx context.Context, req translate.Request) (string, error) {
	e.calls++
	return "[" + req.TargetLang + "] " + req.SourceContent, nil
}

func writeDoc(t *testing.T, base, rel, content string) {
	t.Helper()
	path := filepath.Join(base, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func testConfig(t *testing.T, base string, langs ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.BasePath = base
	cfg.Languages = langs
	cfg.MaxConcurrent = 1
	cfg.MaxRetries = 0
	cfg.Verify = false
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, tr translate.Translator) *Engine {
	t.Helper()
	store, err := OpenStore(cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(cfg, store, tr)
}

func TestRunCreatesMissingTranslations(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	writeDoc(t, base, "en/guide/setup.md", "# Setup\n")
	if err := os.MkdirAll(filepath.Join(base, "ru"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, base, "ru")
	tr := &echoTranslator{}
	eng := newTestEngine(t, cfg, tr)

	rep, err := eng.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Summary.Created != 2 || rep.Summary.Failed != 0 {
		t.Fatalf("summary = %+v", rep.Summary)
	}

	data, err := os.ReadFile(filepath.Join(base, "ru", "guide", "setup.md"))
	if err != nil {
		t.Fatalf("translation not written: %v", err)
	}
	if string(data) != "[ru] # Setup\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")
	tr := &echoTranslator{}
	eng := newTestEngine(t, cfg, tr)

	if _, err := eng.Run(context.Background(), false); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("first run calls = %d, want 1", tr.calls)
	}

	rep, err := eng.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if tr.calls != 1 {
		t.Errorf("second run called the translator %d more time(s)", tr.calls-1)
	}
	if rep.Summary.InSync != 1 || rep.Summary.Skipped != 1 {
		t.Errorf("second run summary = %+v", rep.Summary)
	}
}

func TestRunDetectsPrimaryDrift(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro v1\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")
	tr := &echoTranslator{}
	eng := newTestEngine(t, cfg, tr)
	if _, err := eng.Run(context.Background(), false); err != nil {
		t.Fatalf("initial Run: %v", err)
	}

	writeDoc(t, base, "en/intro.md", "# Intro v2\n")

	p, err := eng.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	pending := p.Pending()
	if len(pending) != 1 || pending[0].Kind != plan.KindUpdate {
		t.Fatalf("pending = %+v, want one update", pending)
	}
	if pending[0].PriorTargetContent != "[ru] # Intro v1\n" {
		t.Errorf("PriorTargetContent = %q", pending[0].PriorTargetContent)
	}

	rep, err := eng.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rep.Summary.Updated != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	data, _ := os.ReadFile(filepath.Join(base, "ru", "intro.md"))
	if string(data) != "[ru] # Intro v2\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRunDetectsTargetEdit(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")
	eng := newTestEngine(t, cfg, &echoTranslator{})
	if _, err := eng.Run(context.Background(), false); err != nil {
		t.Fatalf("initial Run: %v", err)
	}

	// Someone hand-edits the translation.
	writeDoc(t, base, "ru/intro.md", "manually changed\n")

	results, _, err := eng.Classify(context.Background())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(results) != 1 || results[0].Status != plan.StatusStale {
		t.Fatalf("results = %+v, want one stale", results)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")
	tr := &echoTranslator{}
	eng := newTestEngine(t, cfg, tr)

	rep, err := eng.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.DryRun || rep.Summary.Missing != 1 {
		t.Errorf("report = %+v", rep)
	}
	if tr.calls != 0 {
		t.Errorf("dry run called the translator %d time(s)", tr.calls)
	}
	if _, err := os.Stat(filepath.Join(base, "ru", "intro.md")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote a file")
	}
	if _, err := os.Stat(cfg.Ledger.Path); !os.IsNotExist(err) {
		t.Errorf("dry run wrote the ledger")
	}
}

func TestMissingTargetTreeClassifiesAsMissing(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	// No ru directory at all.

	cfg := testConfig(t, base, "ru")
	eng := newTestEngine(t, cfg, &echoTranslator{})

	results, _, err := eng.Classify(context.Background())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(results) != 1 || results[0].Status != plan.StatusMissing {
		t.Fatalf("results = %+v, want one missing", results)
	}
}

func TestOrphans(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/keep.md", "# Keep\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")
	store, err := OpenStore(cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	store.Put(ledger.Key{RelPath: "keep.md", Language: "ru"}, ledger.Record{})
	store.Put(ledger.Key{RelPath: "deleted.md", Language: "ru"}, ledger.Record{})

	eng := New(cfg, store, nil)
	orphans, err := eng.Orphans(context.Background())
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].RelPath != "deleted.md" {
		t.Errorf("orphans = %v", orphans)
	}
}

func TestPlanIsByteDeterministic(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	writeDoc(t, base, "en/guide/setup.md", "# Setup\n")
	writeDoc(t, base, "en/guide/usage.md", "# Usage\n")
	writeDoc(t, base, "ru/intro.md", "старое\n")
	if err := os.MkdirAll(filepath.Join(base, "de"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, base, "ru", "de")
	eng := newTestEngine(t, cfg, &echoTranslator{})

	serialize := func(name string) []byte {
		p, err := eng.Plan(context.Background())
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		path := filepath.Join(t.TempDir(), name)
		if err := p.WriteFile(path); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	first := serialize("first.json")
	second := serialize("second.json")
	if !bytes.Equal(first, second) {
		t.Errorf("plans differ over identical inputs:\n%s\n---\n%s", first, second)
	}
}

func TestPlanFileTopology(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")

	// Checker process: plan and write to a file.
	checker := newTestEngine(t, cfg, nil)
	p, err := checker.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	planPath := filepath.Join(base, "docsync.plan.json")
	if err := p.WriteFile(planPath); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Translator process: read the plan and execute it.
	loaded, err := plan.ReadFile(planPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	executor := newTestEngine(t, cfg, &echoTranslator{})
	rep, err := executor.Execute(context.Background(), loaded)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rep.Summary.Created != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if _, err := os.Stat(filepath.Join(base, "ru", "intro.md")); err != nil {
		t.Errorf("translation not written: %v", err)
	}
}

func TestEngineHonorsFingerprintMode(t *testing.T) {
	base := t.TempDir()
	writeDoc(t, base, "en/intro.md", "# Intro\n")
	os.MkdirAll(filepath.Join(base, "ru"), 0755)

	cfg := testConfig(t, base, "ru")
	cfg.Fingerprint = docscan.FingerprintNormalized

	eng := newTestEngine(t, cfg, &echoTranslator{})
	if _, err := eng.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A whitespace-only change to the primary must not reclassify.
	writeDoc(t, base, "en/intro.md", "# Intro  \r\n")

	results, _, err := eng.Classify(context.Background())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if results[0].Status != plan.StatusInSync {
		t.Errorf("status = %s, want in-sync after whitespace-only edit", results[0].Status)
	}
}
