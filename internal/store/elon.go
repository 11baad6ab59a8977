package store

import (
	"github.com/jhmac/sneebly/internal/types"
)

// ELONStore persists elon-log.json (the cross-cycle ledger) and
// elon-report.json (the latest analyst output).
type ELONStore struct {
	layout Layout
}

// NewELONStore constructs an ELONStore bound to an opened Store.
func NewELONStore(s *Store) *ELONStore {
	return &ELONStore{layout: s.Layout}
}

// LoadLog reads elon-log.json, returning a zero-value ledger if absent.
func (e *ELONStore) LoadLog() (types.ELONLog, error) {
	var log types.ELONLog
	if err := readJSON(e.layout.ELONLog, &log); err != nil {
		return types.ELONLog{}, err
	}
	return log, nil
}

// SaveLog writes elon-log.json atomically.
func (e *ELONStore) SaveLog(log types.ELONLog) error {
	return writeJSONAtomic(e.layout.ELONLog, log)
}

// SaveReport writes the latest analyst output to elon-report.json.
func (e *ELONStore) SaveReport(report *types.ConstraintReport) error {
	return writeJSONAtomic(e.layout.ELONReport, report)
}

// LoadReport reads the latest analyst output, if any.
func (e *ELONStore) LoadReport() (*types.ConstraintReport, error) {
	var report types.ConstraintReport
	if err := readJSON(e.layout.ELONReport, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
