package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Decision is one recorded owner-visible action: an auto-approval, a
// dev-mode toggle, an ELON constraint pick, or a blocker escalation.
type Decision struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    string      `json:"action"`
	Detail    interface{} `json:"detail,omitempty"`
}

// DecisionLog persists decisions/<ts>-<action>.json and an optional
// human-readable .md sibling.
type DecisionLog struct {
	layout Layout
}

// NewDecisionLog constructs a DecisionLog bound to an opened Store.
func NewDecisionLog(s *Store) *DecisionLog {
	return &DecisionLog{layout: s.Layout}
}

func decisionBaseName(d Decision) string {
	return fmt.Sprintf("%s-%s", d.Timestamp.UTC().Format("20060102T150405Z"), d.Action)
}

// Record writes both the JSON decision record and, if summary is non-empty,
// a markdown narrative sibling.
func (l *DecisionLog) Record(d Decision, summaryMarkdown string) error {
	base := decisionBaseName(d)
	jsonPath := filepath.Join(l.layout.Decisions, base+".json")
	if err := writeJSONAtomic(jsonPath, d); err != nil {
		return err
	}
	if summaryMarkdown == "" {
		return nil
	}
	mdPath := filepath.Join(l.layout.Decisions, base+".md")
	return writeFileAtomic(mdPath, []byte(summaryMarkdown))
}

// AppendDaily appends a narrative line to daily/YYYY-MM-DD.md, creating the
// file with a date header on first write of the day.
func (l *DecisionLog) AppendDaily(now time.Time, line string) error {
	path := filepath.Join(l.layout.Daily, now.UTC().Format("2006-01-02")+".md")
	if err := os.MkdirAll(l.layout.Daily, 0o755); err != nil {
		return fmt.Errorf("store: create daily dir: %w", err)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(existing) == 0 {
		header := fmt.Sprintf("# %s\n\n", now.UTC().Format("2006-01-02"))
		existing = []byte(header)
	}

	updated := append(existing, []byte(line+"\n")...)
	return writeFileAtomic(path, updated)
}
