// Package report aggregates classification and execution results into
// run summaries.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MurphyLo/Document-Synchronizer/plan"
	"github.com/MurphyLo/Document-Synchronizer/translate"
)

// Summary holds the counters for one reconciliation run. The first
// three count classification results; the rest count execution
// outcomes and stay zero on a dry run.
type Summary struct {
	Missing int
	Stale   int
	InSync  int

	Created int
	Updated int
	Skipped int
	Failed  int
}

// Failure describes one action that did not complete.
type Failure struct {
	RelPath  string
	Language string
	Kind     translate.ErrorKind
	Err      error
}

// Report is the full result of a run: counters, per-language
// breakdown, and the failure list.
type Report struct {
	Summary  Summary
	PerLang  map[string]Summary
	Failures []Failure
	DryRun   bool
}

// Aggregate builds a Report from a plan and its execution outcomes.
// Pass nil outcomes for a dry run; only classification counters are
// filled in that case.
func Aggregate(p *plan.Plan, outcomes []translate.Outcome) *Report {
	rep := &Report{
		PerLang: make(map[string]Summary),
		DryRun:  outcomes == nil,
	}

	for _, act := range p.Actions {
		lang := rep.PerLang[act.Language]
		switch act.Status {
		case plan.StatusMissing:
			rep.Summary.Missing++
			lang.Missing++
		case plan.StatusStale:
			rep.Summary.Stale++
			lang.Stale++
		case plan.StatusInSync:
			rep.Summary.InSync++
			lang.InSync++
		}
		rep.PerLang[act.Language] = lang
	}

	for _, out := range outcomes {
		lang := rep.PerLang[out.Action.Language]
		switch out.Status {
		case translate.OutcomeDone:
			if out.Action.Kind == plan.KindCreate {
				rep.Summary.Created++
				lang.Created++
			} else {
				rep.Summary.Updated++
				lang.Updated++
			}
		case translate.OutcomeSkipped:
			rep.Summary.Skipped++
			lang.Skipped++
		case translate.OutcomeError:
			rep.Summary.Failed++
			lang.Failed++
			rep.Failures = append(rep.Failures, Failure{
				RelPath:  out.Action.RelPath,
				Language: out.Action.Language,
				Kind:     out.ErrorKind,
				Err:      out.Err,
			})
		}
		rep.PerLang[out.Action.Language] = lang
	}

	return rep
}

// OK reports whether the run completed without failures.
func (r *Report) OK() bool {
	return r.Summary.Failed == 0
}

// Languages returns the per-language keys in sorted order.
func (r *Report) Languages() []string {
	langs := make([]string, 0, len(r.PerLang))
	for lang := range r.PerLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// String renders a human-readable summary block.
func (r *Report) String() string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "Classification: %d missing, %d stale, %d in sync\n",
		s.Missing, s.Stale, s.InSync)
	if r.DryRun {
		b.WriteString("Dry run: no files written\n")
	} else {
		fmt.Fprintf(&b, "Execution: %d created, %d updated, %d skipped, %d failed\n",
			s.Created, s.Updated, s.Skipped, s.Failed)
	}
	for _, lang := range r.Languages() {
		ls := r.PerLang[lang]
		fmt.Fprintf(&b, "  [%s] missing=%d stale=%d in-sync=%d", lang, ls.Missing, ls.Stale, ls.InSync)
		if !r.DryRun {
			fmt.Fprintf(&b, " created=%d updated=%d failed=%d", ls.Created, ls.Updated, ls.Failed)
		}
		b.WriteByte('\n')
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  failed: %s [%s] (%s): %v\n", f.RelPath, f.Language, f.Kind, f.Err)
	}
	return b.String()
}
