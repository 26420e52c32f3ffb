// Package plan classifies primary/target document pairings and builds
// the deterministic action plan for a reconciliation run.
//
// Classification and plan construction are pure: all filesystem and
// ledger state is passed in, so two runs over identical inputs produce
// byte-identical plans. The plan is JSON-serializable and doubles as the
// message boundary between a checker process and a translator process
// when the two stages run separately.
package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MurphyLo/Document-Synchronizer/docscan"
	"github.com/MurphyLo/Document-Synchronizer/ledger"
)

// Status classifies one (primary document, target language) pairing.
type Status string

const (
	// StatusMissing: no target file exists at the mirrored path.
	StatusMissing Status = "missing"
	// StatusStale: a target file exists but either side has drifted
	// from the last known-good pairing.
	StatusStale Status = "stale"
	// StatusInSync: both fingerprints match the ledger record.
	StatusInSync Status = "in-sync"
)

// Kind is the action to take for a pairing.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindSkip   Kind = "skip"
)

// Result is the outcome of comparing one pairing.
type Result struct {
	RelPath  string
	Language string
	Status   Status
	// Reason states which condition triggered the classification.
	Reason string
	// PrimaryFingerprint is the primary document fingerprint the
	// classification was made against.
	PrimaryFingerprint string
}

// Compare classifies a single pairing. target is nil when no file exists
// at the mirrored path; rec is nil when the ledger has no record.
//
// Either side drifting from the last known-good pairing invalidates the
// sync: the engine prefers re-generation over silently accepting
// divergence.
func Compare(primary docscan.Node, target *docscan.Node, rec *ledger.Record) Result {
	r := Result{RelPath: primary.RelPath, Status: StatusInSync, PrimaryFingerprint: primary.Fingerprint}
	if target != nil {
		r.Language = target.Language
	}

	switch {
	case target == nil:
		r.Status = StatusMissing
		r.Reason = "no target file"
	case rec == nil:
		r.Status = StatusStale
		r.Reason = "target exists but was never synced"
	case rec.PrimaryFingerprint != primary.Fingerprint:
		r.Status = StatusStale
		r.Reason = "primary content changed since last sync"
	case rec.TargetFingerprint != target.Fingerprint:
		r.Status = StatusStale
		r.Reason = "target content edited since last sync"
	default:
		r.Reason = "fingerprints match ledger"
	}
	return r
}

// Classify compares every primary document against every target
// language, in primary tree order then language list order.
func Classify(primary *docscan.Tree, languages []string, targets map[string]*docscan.Tree, records map[ledger.Key]ledger.Record) []Result {
	var results []Result
	for _, node := range primary.Nodes {
		for _, lang := range languages {
			if lang == primary.Language {
				continue
			}

			var target *docscan.Node
			if tree, ok := targets[lang]; ok && tree != nil {
				if t, ok := tree.Lookup(node.RelPath); ok {
					target = &t
				}
			}

			var rec *ledger.Record
			if r, ok := records[ledger.Key{RelPath: node.RelPath, Language: lang}]; ok {
				rec = &r
			}

			res := Compare(node, target, rec)
			res.Language = lang
			results = append(results, res)
		}
	}
	return results
}

// Action is one unit of work in a plan.
type Action struct {
	RelPath  string `json:"rel_path"`
	Language string `json:"language"`
	Kind     Kind   `json:"kind"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
	// SourceFingerprint is the primary fingerprint the action was
	// planned against; it is what the ledger records on success.
	SourceFingerprint string `json:"source_fingerprint,omitempty"`
	// SourceContent is the current primary content (empty for skips).
	SourceContent string `json:"source_content,omitempty"`
	// PriorTargetContent carries the existing translation on updates,
	// as a translation-memory hint for the generator. The generator is
	// free to ignore it.
	PriorTargetContent string `json:"prior_target_content,omitempty"`
}

// Key returns the ledger key for this action's pairing.
func (a Action) Key() ledger.Key {
	return ledger.Key{RelPath: a.RelPath, Language: a.Language}
}

// Plan is the ordered, previewable action list for one run.
type Plan struct {
	Primary   string   `json:"primary"`
	Languages []string `json:"languages"`
	Actions   []Action `json:"actions"`
}

// Pending returns the actions that require generation work.
func (p *Plan) Pending() []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Kind != KindSkip {
			out = append(out, a)
		}
	}
	return out
}

// Contents supplies document contents to the plan builder, keyed by
// primary relative path and by pairing. The caller loads them; Build
// performs no I/O.
type Contents struct {
	// Source maps primary relPath → current primary content.
	Source map[string]string
	// Prior maps pairing key → current target content (stale pairs).
	Prior map[ledger.Key]string
}

// Build converts classification results into the action plan:
// MISSING → CREATE, STALE → UPDATE, IN_SYNC → SKIP. Result order is
// preserved, so the plan inherits Classify's deterministic ordering.
func Build(primary string, languages []string, results []Result, contents Contents) *Plan {
	p := &Plan{Primary: primary, Languages: languages}
	for _, res := range results {
		act := Action{
			RelPath:  res.RelPath,
			Language: res.Language,
			Status:   res.Status,
			Reason:   res.Reason,
		}
		switch res.Status {
		case StatusMissing:
			act.Kind = KindCreate
			act.SourceContent = contents.Source[res.RelPath]
			act.SourceFingerprint = res.PrimaryFingerprint
		case StatusStale:
			act.Kind = KindUpdate
			act.SourceContent = contents.Source[res.RelPath]
			act.PriorTargetContent = contents.Prior[ledger.Key{RelPath: res.RelPath, Language: res.Language}]
			act.SourceFingerprint = res.PrimaryFingerprint
		default:
			act.Kind = KindSkip
		}
		p.Actions = append(p.Actions, act)
	}
	return p
}

// ---------------------------------------------------------------------------
// Plan file exchange (checker → translator topology)
// ---------------------------------------------------------------------------

// WriteFile serializes the plan as indented JSON.
func (p *Plan) WriteFile(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing plan %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a plan written by WriteFile.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}
	return &p, nil
}
