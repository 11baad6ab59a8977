package store

import (
	"time"

	"github.com/jhmac/sneebly/internal/types"
)

type regressionFile struct {
	Checks map[string]types.RegressionCheck `json:"checks"`
}

// RegressionTracker persists regression-tracker.json: per-check counters
// from which types.RegressionCheck.EscalationScore is computed. The ELON
// cycle reads the counters into its analyst evidence.
type RegressionTracker struct {
	layout Layout
}

// NewRegressionTracker constructs a RegressionTracker bound to an opened Store.
func NewRegressionTracker(s *Store) *RegressionTracker {
	return &RegressionTracker{layout: s.Layout}
}

func (r *RegressionTracker) load() (regressionFile, error) {
	f := regressionFile{Checks: map[string]types.RegressionCheck{}}
	if err := readJSON(r.layout.RegressionTracker, &f); err != nil {
		return f, err
	}
	if f.Checks == nil {
		f.Checks = map[string]types.RegressionCheck{}
	}
	return f, nil
}

// RecordOutcome updates the named check's counters after one verification
// attempt and returns the updated check.
func (r *RegressionTracker) RecordOutcome(name string, passed bool, now time.Time) (types.RegressionCheck, error) {
	f, err := r.load()
	if err != nil {
		return types.RegressionCheck{}, err
	}

	check := f.Checks[name]
	check.Name = name
	check.TotalAttempts++
	check.LastSeen = now
	if passed {
		check.ConsecutiveFailures = 0
	} else {
		check.TotalFailures++
		check.ConsecutiveFailures++
		if check.FirstFailureAt == nil {
			t := now
			check.FirstFailureAt = &t
		}
	}
	f.Checks[name] = check

	if err := writeJSONAtomic(r.layout.RegressionTracker, f); err != nil {
		return types.RegressionCheck{}, err
	}
	return check, nil
}

// All returns every tracked check.
func (r *RegressionTracker) All() (map[string]types.RegressionCheck, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	return f.Checks, nil
}
