package elon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhmac/sneebly/internal/probe"
	"github.com/jhmac/sneebly/internal/types"
)

// evidenceBudget bounds the analyst payload's code-excerpt section, per
// §4.5 step 3 ("code excerpts <=25 KB"). Sized in bytes rather than tokens:
// the dispatcher's vendor clients already apply their own token accounting
// on top of this, and a byte budget is cheap to enforce without a
// tokenizer dependency.
const evidenceBudget = 25 * 1024

// priorityFileExcerptLines caps how much of each prioritized file is
// quoted, so a handful of large files touched by prior constraints don't
// alone exhaust the budget.
const priorityFileExcerptLines = 120

// Evidence is the assembled analyst payload for one ELON cycle.
type Evidence struct {
	Goal               string
	Findings           []probe.Finding
	Regression         map[string]types.RegressionCheck
	BlockedConstraints []string
	FailedHistory      []types.ConstraintEvaluation
	CodeExcerpts       string
}

// BuildEvidence assembles the analyst payload described in §4.5 step 3:
// goals, crawl/health findings (already pre-filtered for auth noise),
// regression counters, blocked/failed history, and a budget-capped block
// of code excerpts from files touched by already-identified constraints.
// The excerpt assembly mirrors specloop.BuildRelatedContext's
// append-until-budget-then-truncate shape.
func BuildEvidence(repoRoot, goal string, findings []probe.Finding, regression map[string]types.RegressionCheck, blocked []string, failedHistory []types.ConstraintEvaluation, priorityFiles []string) Evidence {
	return Evidence{
		Goal:               goal,
		Findings:           findings,
		Regression:         regression,
		BlockedConstraints: blocked,
		FailedHistory:      failedHistory,
		CodeExcerpts:       buildCodeExcerpts(repoRoot, priorityFiles),
	}
}

func buildCodeExcerpts(repoRoot string, priorityFiles []string) string {
	var b strings.Builder
	seen := map[string]bool{}
	for _, rel := range priorityFiles {
		if seen[rel] {
			continue
		}
		seen[rel] = true

		data, err := os.ReadFile(filepath.Join(repoRoot, rel))
		if err != nil {
			continue
		}
		excerpt := firstLines(string(data), priorityFileExcerptLines)
		section := fmt.Sprintf("--- %s ---\n%s\n", rel, excerpt)

		if b.Len()+len(section) > evidenceBudget {
			remaining := evidenceBudget - b.Len()
			if remaining <= 0 {
				break
			}
			b.WriteString(section[:remaining])
			break
		}
		b.WriteString(section)
	}
	return b.String()
}

func firstLines(content string, n int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[:n], "\n")
}

// PriorityFilesFromLog collects the file paths touched by already-solved
// and currently in-flight constraints, most recent first, for use as
// BuildEvidence's priorityFiles argument — the "files touched by
// already-identified constraints" §4.5 step 3 calls for.
func PriorityFilesFromLog(log types.ELONLog) []string {
	var files []string
	seen := map[string]bool{}
	add := func(plan []types.Spec) {
		for _, s := range plan {
			if s.FilePath == "" || seen[s.FilePath] {
				continue
			}
			seen[s.FilePath] = true
			files = append(files, s.FilePath)
		}
	}
	if log.Current != nil {
		add(log.Current.Plan)
	}
	for i := len(log.Solved) - 1; i >= 0; i-- {
		add(log.Solved[i].Plan)
	}
	return files
}
