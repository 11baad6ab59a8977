package elon

import (
	"fmt"
	"strings"
)

// renderEvidencePayload formats an Evidence bundle into the analyst
// subagent's user-turn text. Unlike the Spec Execution Loop's payload
// (which is JSON so the response can round-trip field-for-field),
// the analyst is asked for prose evidence and returns structured JSON,
// so the request side stays a readable plain-text brief.
func renderEvidencePayload(e Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current goal: %s\n\n", e.Goal)

	if len(e.Findings) > 0 {
		b.WriteString("Observed findings:\n")
		for _, f := range e.Findings {
			fmt.Fprintf(&b, "- [%s] %s: %s (page=%s, status=%d)\n", f.Source, f.Severity, f.Message, f.Page, f.StatusCode)
		}
		b.WriteString("\n")
	}

	if len(e.Regression) > 0 {
		b.WriteString("Regression tracker:\n")
		for name, check := range e.Regression {
			fmt.Fprintf(&b, "- %s: %d/%d failures, %d consecutive\n", name, check.TotalFailures, check.TotalAttempts, check.ConsecutiveFailures)
		}
		b.WriteString("\n")
	}

	if len(e.BlockedConstraints) > 0 {
		fmt.Fprintf(&b, "Blocked constraints (do not propose these again): %s\n\n", strings.Join(e.BlockedConstraints, "; "))
	}

	if len(e.FailedHistory) > 0 {
		b.WriteString("Previously active (unresolved) evaluations:\n")
		for _, f := range e.FailedHistory {
			fmt.Fprintf(&b, "- %s: %s\n", f.ConstraintID, strings.Join(f.Evidence, "; "))
		}
		b.WriteString("\n")
	}

	if e.CodeExcerpts != "" {
		b.WriteString("Code excerpts from files touched by prior constraints:\n")
		b.WriteString(e.CodeExcerpts)
		b.WriteString("\n")
	}

	b.WriteString("Respond with a single JSON object: {\"limitingFactor\":{\"description\":...,\"why\":...,\"score\":1-10,\"category\":...,\"evidence\":[...]},\"plan\":[...specs...],\"verificationPages\":[...],\"completionCriteria\":[...]}.\n")
	return b.String()
}
