// Package analyze provides structural and similarity checks for
// Markdown documents. The orchestrator uses it to reject generated
// translations that lost the source's structure (dropped code blocks,
// missing sections); the status report uses it for diagnostics.
//
// The checks are language-agnostic: they compare counts of structural
// markers, never meaning.
package analyze

import (
	"fmt"
	"regexp"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	codeBlockRE  = regexp.MustCompile("(?s)```.*?```")
	linkRE       = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	headingRE    = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	boldRE       = regexp.MustCompile(`\*\*[^*]+?\*\*`)
	inlineCodeRE = regexp.MustCompile("`[^`\n]+`")
)

// Similarity returns a 0..1 line-based similarity ratio between two
// documents (1 means identical).
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(difflib.SplitLines(a), difflib.SplitLines(b))
	return m.Ratio()
}

// MissingSignificantContent reports whether target is likely missing a
// large share of source's content, judged by byte length and heading
// count ratios against threshold (0..1).
func MissingSignificantContent(source, target string, threshold float64) bool {
	if len(source) == 0 {
		return false
	}
	if float64(len(target))/float64(len(source)) < threshold {
		return true
	}
	srcHeadings := len(headingRE.FindAllString(source, -1))
	tgtHeadings := len(headingRE.FindAllString(target, -1))
	if srcHeadings > 0 && float64(tgtHeadings)/float64(srcHeadings) < threshold {
		return true
	}
	return false
}

// StructureIssues compares structural marker counts between a source
// document and its translation. Code blocks, links, and headings must
// match exactly; emphasis and inline code tolerate 20% drift since
// translators legitimately rephrase around them.
func StructureIssues(source, target string) []string {
	var issues []string

	exact := []struct {
		name string
		re   *regexp.Regexp
	}{
		{"code block", codeBlockRE},
		{"link", linkRE},
		{"heading", headingRE},
	}
	for _, c := range exact {
		src := len(c.re.FindAllString(source, -1))
		tgt := len(c.re.FindAllString(target, -1))
		if src != tgt {
			issues = append(issues, fmt.Sprintf("%s count changed: %d → %d", c.name, src, tgt))
		}
	}

	loose := []struct {
		name string
		re   *regexp.Regexp
	}{
		{"bold span", boldRE},
		{"inline code", inlineCodeRE},
	}
	for _, c := range loose {
		src := len(c.re.FindAllString(source, -1))
		tgt := len(c.re.FindAllString(target, -1))
		if src == 0 {
			continue
		}
		diff := src - tgt
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > float64(src)*0.2 {
			issues = append(issues, fmt.Sprintf("%s count drifted: %d → %d", c.name, src, tgt))
		}
	}

	return issues
}

// Verify checks that a generated translation structurally mirrors its
// source. It returns a descriptive error when the generation dropped
// sections or mangled markup badly enough that it should be treated as
// a malformed response rather than written out.
func Verify(source, generated string) error {
	if MissingSignificantContent(source, generated, 0.5) {
		return fmt.Errorf("generated document lost significant content (%d → %d bytes)", len(source), len(generated))
	}
	if issues := StructureIssues(source, generated); len(issues) > 0 {
		return fmt.Errorf("generated document broke structure: %s", issues[0])
	}
	return nil
}
