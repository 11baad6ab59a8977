package types

import "time"

// LimitingFactor is the single highest-scoring constraint the analyst
// identified in one ELON cycle.
type LimitingFactor struct {
	Description string   `json:"description"`
	Why         string   `json:"why"`
	Unblocks    []string `json:"unblocks,omitempty"`
	Score       int      `json:"score"` // 1..10
	Category    string   `json:"category"`
	Evidence    []string `json:"evidence,omitempty"`
}

// ConstraintEvaluation is appended to FailedHistory when a constraint's
// completion criteria are checked and found not yet satisfied.
type ConstraintEvaluation struct {
	ConstraintID string    `json:"constraintId"`
	CheckedAt    time.Time `json:"checkedAt"`
	Evidence     []string  `json:"evidence"`
	Verdict      string    `json:"verdict"` // resolved | active
}

// ConstraintReport is the persisted output of one ELON cycle.
type ConstraintReport struct {
	ID                 string                  `json:"id"`
	CurrentGoal        string                  `json:"currentGoal"`
	LimitingFactor      LimitingFactor          `json:"limitingFactor"`
	Plan               []Spec                  `json:"plan"`
	VerificationPages  []string                `json:"verificationPages"`
	CompletionCriteria []string                `json:"completionCriteria"`
	PreviousConstraints []string               `json:"previousConstraints,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
}

// ELONLog is the persisted cross-cycle ledger (elon-log.json).
type ELONLog struct {
	Current             *ConstraintReport       `json:"current,omitempty"`
	Solved              []ConstraintReport      `json:"solved"`
	BlockedConstraints  []string                `json:"blockedConstraints"`
	FailedHistory       []ConstraintEvaluation  `json:"failedHistory"`
	ModeOverride        string                  `json:"modeOverride,omitempty"`
}
