package store

import "time"

const maxMetricSnapshots = 100

// MetricSnapshot is one point-in-time measurement appended to metrics.json.
type MetricSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	SpecsCompleted int       `json:"specsCompleted"`
	SpecsFailed    int       `json:"specsFailed"`
	ActiveBlockers int       `json:"activeBlockers"`
	BudgetSpentUSD float64   `json:"budgetSpentUsd"`
}

type metricsFile struct {
	Snapshots []MetricSnapshot `json:"snapshots"`
}

// MetricsStore persists metrics.json, a ring buffer capped at 100 entries.
type MetricsStore struct {
	layout Layout
}

// NewMetricsStore constructs a MetricsStore bound to an opened Store.
func NewMetricsStore(s *Store) *MetricsStore {
	return &MetricsStore{layout: s.Layout}
}

// Append adds one snapshot, dropping the oldest once the ring buffer
// exceeds 100 entries (lastN<=100 per the persistent state layout).
func (m *MetricsStore) Append(snapshot MetricSnapshot) error {
	var f metricsFile
	if err := readJSON(m.layout.Metrics, &f); err != nil {
		return err
	}
	f.Snapshots = append(f.Snapshots, snapshot)
	if len(f.Snapshots) > maxMetricSnapshots {
		f.Snapshots = f.Snapshots[len(f.Snapshots)-maxMetricSnapshots:]
	}
	return writeJSONAtomic(m.layout.Metrics, f)
}

// Recent returns every snapshot currently retained.
func (m *MetricsStore) Recent() ([]MetricSnapshot, error) {
	var f metricsFile
	if err := readJSON(m.layout.Metrics, &f); err != nil {
		return nil, err
	}
	return f.Snapshots, nil
}
