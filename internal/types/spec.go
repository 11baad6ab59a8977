// Package types defines the data model shared across sneebly's components:
// specs, change sets, the known-error registry, blockers, and constraint
// reports. Kept dependency-free so every other package can import it without
// cycles.
package types

import "time"

// SpecKind distinguishes where a spec originated and how it should be
// prioritised.
type SpecKind string

const (
	SpecKindFix             SpecKind = "fix"
	SpecKindOptimize        SpecKind = "optimize"
	SpecKindIntelFinding    SpecKind = "intel-finding"
	SpecKindConstraintStep  SpecKind = "constraint-step"
	SpecKindBuildStep       SpecKind = "build-step"
)

// SpecAction describes the shape of the change a spec requests.
type SpecAction string

const (
	ActionCreate      SpecAction = "create"
	ActionReplace     SpecAction = "replace"
	ActionAppend      SpecAction = "append"
	ActionMultiChange SpecAction = "multi-change"
	ActionMultiCreate SpecAction = "multi-create"
)

// SpecStatus is the terminal or in-flight state of a spec's lifecycle.
type SpecStatus string

const (
	StatusPending    SpecStatus = "pending"
	StatusApproved   SpecStatus = "approved"
	StatusInProgress SpecStatus = "in-progress"
	StatusCompleted  SpecStatus = "completed"
	StatusFailed     SpecStatus = "failed"
	StatusBlocked    SpecStatus = "blocked"
)

// FileChange is one element of a multi-change spec's Changes list.
type FileChange struct {
	FilePath string `json:"filePath"`
	OldCode  string `json:"oldCode,omitempty"`
	NewCode  string `json:"newCode,omitempty"`
	Content  string `json:"content,omitempty"`
}

// NewFile is one element of a multi-create spec's Files list.
type NewFile struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// Spec is a persisted unit of intended change. Exactly one spec file exists
// per ID (§3 invariant); once moved into a terminal queue directory it must
// never be mutated again.
type Spec struct {
	ID                 string       `json:"id"`
	Kind               SpecKind     `json:"kind"`
	FilePath           string       `json:"filePath"`
	Action             SpecAction   `json:"action"`
	Description        string       `json:"description"`
	SuccessCriteria    []string     `json:"successCriteria"`
	OldCode            string       `json:"oldCode,omitempty"`
	NewCode            string       `json:"newCode,omitempty"`
	Content            string       `json:"content,omitempty"`
	Changes            []FileChange `json:"changes,omitempty"`
	Files              []NewFile    `json:"files,omitempty"`
	RelatedFiles       []string     `json:"relatedFiles,omitempty"`
	TestCommand        string       `json:"testCommand,omitempty"`
	VerificationPages  []string     `json:"verificationPages,omitempty"`
	Priority           int          `json:"priority,omitempty"`
	Category           string       `json:"category,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	ConstraintID       string       `json:"constraintId,omitempty"`

	// Status and history are populated as the Spec Execution Loop runs.
	Status          SpecStatus       `json:"status,omitempty"`
	IterationRecord []IterationEntry `json:"iterationHistory,omitempty"`
}

// IterationEntry records the outcome of one Spec Execution Loop pass, kept
// on the spec itself so completed/failed files are self-describing.
type IterationEntry struct {
	Iteration   int       `json:"iteration"`
	Outcome     string    `json:"outcome"` // applied, stuck, test-failed, runtime-failed, complete; a failed syntax check is recorded as stuck
	Detail      string    `json:"detail,omitempty"`
	BackupIDs   []string  `json:"backupIds,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Validate performs the structural checks every Spec must pass before it is
// accepted into a queue.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return errRequired("id")
	}
	if s.Kind == "" {
		return errRequired("kind")
	}
	if s.FilePath == "" {
		return errRequired("filePath")
	}
	if s.Description == "" {
		return errRequired("description")
	}
	if len(s.SuccessCriteria) == 0 {
		return errRequired("successCriteria")
	}
	return nil
}

func errRequired(field string) error {
	return &ValidationError{Field: field}
}

// ValidationError reports a missing required field on a persisted record.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}
