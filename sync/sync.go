// Package sync composes scanning, classification, planning, and
// execution into one reconciliation engine. The engine owns the I/O
// the planner refuses to do: it loads document contents, opens the
// ledger, and flushes it when a run ends.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MurphyLo/Document-Synchronizer/config"
	"github.com/MurphyLo/Document-Synchronizer/docscan"
	"github.com/MurphyLo/Document-Synchronizer/ledger"
	"github.com/MurphyLo/Document-Synchronizer/plan"
	"github.com/MurphyLo/Document-Synchronizer/report"
	"github.com/MurphyLo/Document-Synchronizer/translate"
)

// Engine runs reconciliation for one documentation root.
type Engine struct {
	cfg        *config.Config
	store      ledger.Store
	translator translate.Translator

	// OnLog, OnError and OnProgress mirror translate.Options; all
	// optional.
	OnLog      func(format string, args ...any)
	OnError    func(format string, args ...any)
	OnProgress func(done, total int)
}

// New builds an engine. The translator may be nil for plan-only use;
// Execute then fails.
func New(cfg *config.Config, store ledger.Store, translator translate.Translator) *Engine {
	return &Engine{cfg: cfg, store: store, translator: translator}
}

// OpenStore opens the ledger backend named by the configuration.
func OpenStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerSQLite:
		return ledger.OpenSQLite(cfg.Ledger.Path)
	default:
		return ledger.OpenFile(cfg.Ledger.Path)
	}
}

func (e *Engine) log(format string, args ...any) {
	if e.OnLog != nil {
		e.OnLog(format, args...)
	}
}

func (e *Engine) logError(format string, args ...any) {
	if e.OnError != nil {
		e.OnError(format, args...)
	} else if e.OnLog != nil {
		e.OnLog(format, args...)
	}
}

// Classify scans all trees and compares them against the ledger. It
// performs no writes.
func (e *Engine) Classify(ctx context.Context) ([]plan.Result, map[string]*docscan.Tree, error) {
	langs := e.cfg.Targets()
	trees, err := docscan.ScanAll(ctx, e.cfg.BasePath, e.cfg.Primary, langs, e.cfg.Fingerprint,
		func(lang string, err error) {
			e.logError("cannot scan %s tree, treating as empty: %v", lang, err)
		})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", e.cfg.Primary, err)
	}

	records, err := e.store.Snapshot()
	if err != nil {
		return nil, nil, fmt.Errorf("reading ledger: %w", err)
	}

	results := plan.Classify(trees[e.cfg.Primary], langs, trees, records)
	return results, trees, nil
}

// Plan scans, classifies, and builds the full action plan, loading the
// contents pending actions need. Failure to read a primary document is
// fatal: a plan built from partial inputs would misclassify.
func (e *Engine) Plan(ctx context.Context) (*plan.Plan, error) {
	results, trees, err := e.Classify(ctx)
	if err != nil {
		return nil, err
	}

	primaryTree := trees[e.cfg.Primary]
	contents := plan.Contents{
		Source: make(map[string]string),
		Prior:  make(map[ledger.Key]string),
	}
	for _, res := range results {
		if res.Status == plan.StatusInSync {
			continue
		}
		if _, ok := contents.Source[res.RelPath]; !ok {
			data, err := os.ReadFile(primaryTree.Path(res.RelPath))
			if err != nil {
				return nil, fmt.Errorf("reading primary document %s: %w", res.RelPath, err)
			}
			contents.Source[res.RelPath] = string(data)
		}
		if res.Status == plan.StatusStale {
			tree := trees[res.Language]
			if tree == nil {
				continue
			}
			if _, ok := tree.Lookup(res.RelPath); !ok {
				continue
			}
			data, err := os.ReadFile(tree.Path(res.RelPath))
			if err != nil {
				// The prior translation is a hint only; a fresh
				// translation still produces a correct target.
				e.logError("cannot read existing %s translation of %s: %v", res.Language, res.RelPath, err)
				continue
			}
			contents.Prior[ledger.Key{RelPath: res.RelPath, Language: res.Language}] = string(data)
		}
	}

	return plan.Build(e.cfg.Primary, e.cfg.Targets(), results, contents), nil
}

// Execute runs a plan and returns the aggregated report. The ledger is
// flushed even when execution is interrupted, so completed actions
// stay recorded.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan) (*report.Report, error) {
	if e.translator == nil {
		return nil, fmt.Errorf("no translator configured")
	}

	opts := translate.Options{
		Translator:      e.translator,
		Ledger:          e.store,
		BaseDir:         e.cfg.BasePath,
		SourceLang:      p.Primary,
		FingerprintMode: e.cfg.Fingerprint,
		MaxConcurrent:   e.cfg.MaxConcurrent,
		MaxRetries:      e.cfg.MaxRetries,
		RequestDelay:    e.cfg.RequestDelay.Std(),
		SkipVerify:      !e.cfg.Verify,
		Verbose:         e.cfg.Verbose,
		OnLog:           e.OnLog,
		OnError:         e.OnError,
		OnProgress:      e.OnProgress,
	}

	outcomes := translate.Execute(ctx, p, opts)

	if err := e.store.Flush(); err != nil {
		return nil, fmt.Errorf("flushing ledger: %w", err)
	}

	return report.Aggregate(p, outcomes), nil
}

// Run is the single-process topology: plan then execute in one go.
// With dryRun set, no translator call, file write, or ledger update
// happens; the report carries classification counters only.
func (e *Engine) Run(ctx context.Context, dryRun bool) (*report.Report, error) {
	p, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return report.Aggregate(p, nil), nil
	}
	return e.Execute(ctx, p)
}

// Orphans lists ledger records whose primary document no longer
// exists, for status reporting. Records are never deleted here.
func (e *Engine) Orphans(ctx context.Context) ([]ledger.Key, error) {
	primaryTree, err := docscan.Scan(
		filepath.Join(e.cfg.BasePath, e.cfg.Primary), e.cfg.Primary, e.cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	records, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	var orphans []ledger.Key
	for key := range records {
		if _, ok := primaryTree.Lookup(key.RelPath); !ok {
			orphans = append(orphans, key)
		}
	}
	ledger.SortKeys(orphans)
	return orphans, nil
}
