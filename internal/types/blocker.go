package types

import "time"

// BlockerStatus tracks whether a blocker still needs owner attention.
type BlockerStatus string

const (
	BlockerActive   BlockerStatus = "active"
	BlockerResolved BlockerStatus = "resolved"
	BlockerDismissed BlockerStatus = "dismissed"
)

// Blocker is raised when the Spec Execution Loop gives up on a spec and the
// spec needs a human to resolve it.
type Blocker struct {
	ID               string        `json:"id"`
	SpecID           string        `json:"specId"`
	TargetFile       string        `json:"targetFile"`
	Reason           string        `json:"reason"`
	Attempts         int           `json:"attempts"`
	UserInstructions []string      `json:"userInstructions,omitempty"`
	SuggestedSkill   string        `json:"suggestedSkill,omitempty"`
	Status           BlockerStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	ResolvedAt       *time.Time    `json:"resolvedAt,omitempty"`
}

// KnownError is one entry in the known-error registry (§3): a normalised
// error signature with first/last-seen bookkeeping.
type KnownError struct {
	Signature       string     `json:"signature"`
	Message         string     `json:"message"`
	FirstSeen       time.Time  `json:"firstSeen"`
	LastSeen        time.Time  `json:"lastSeen"`
	Occurrences     int        `json:"occurrences"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolvingSpecID string     `json:"resolvingSpecId,omitempty"`
}

// RegressionCheck is the per-check counter set the Regression Tracker
// maintains; EscalationScore derives the priority signal described in §3.
type RegressionCheck struct {
	Name                string     `json:"name"`
	TotalAttempts       int        `json:"totalAttempts"`
	TotalFailures       int        `json:"totalFailures"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	FirstFailureAt      *time.Time `json:"firstFailureAt,omitempty"`
	LastSeen            time.Time  `json:"lastSeen"`
}

// EscalationScore implements:
//
//	consecutiveFailures × (failures/attempts) × min(daysSinceFirstFailure/7, 3)
func (c RegressionCheck) EscalationScore(now time.Time) float64 {
	if c.TotalAttempts == 0 || c.ConsecutiveFailures == 0 {
		return 0
	}
	failureRate := float64(c.TotalFailures) / float64(c.TotalAttempts)
	days := 0.0
	if c.FirstFailureAt != nil {
		days = now.Sub(*c.FirstFailureAt).Hours() / 24
	}
	weeks := days / 7
	if weeks > 3 {
		weeks = 3
	}
	return float64(c.ConsecutiveFailures) * failureRate * weeks
}
