// Package store persists sneebly's working state under a workspace-local
// .sneebly/ directory: spec queues, backups, decision logs, the known-error
// registry, blockers, ELON history, and the metrics ring buffer.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jhmac/sneebly/internal/logging"
)

const rootDirName = ".sneebly"

// Layout enumerates every path under .sneebly/ named in the persistent
// state layout.
type Layout struct {
	Root              string
	ApprovedQueue     string
	PendingQueue      string
	Completed         string
	Failed            string
	Backups           string
	Decisions         string
	Daily             string
	KnownErrors       string
	ErrorLog          string
	Metrics           string
	IdentityChecksums string
	ELONLog           string
	ELONReport        string
	Blockers          string
	AutoFixerLog      string
	RegressionTracker string
	DevMode           string
}

// NewLayout computes every .sneebly/ path rooted at workspace.
func NewLayout(workspace string) Layout {
	root := filepath.Join(workspace, rootDirName)
	return Layout{
		Root:              root,
		ApprovedQueue:     filepath.Join(root, "approved-queue"),
		PendingQueue:      filepath.Join(root, "queue", "pending"),
		Completed:         filepath.Join(root, "completed"),
		Failed:            filepath.Join(root, "failed"),
		Backups:           filepath.Join(root, "backups"),
		Decisions:         filepath.Join(root, "decisions"),
		Daily:             filepath.Join(root, "daily"),
		KnownErrors:       filepath.Join(root, "known-errors.json"),
		ErrorLog:          filepath.Join(root, "error-log.jsonl"),
		Metrics:           filepath.Join(root, "metrics.json"),
		IdentityChecksums: filepath.Join(root, "identity-checksums.json"),
		ELONLog:           filepath.Join(root, "elon-log.json"),
		ELONReport:        filepath.Join(root, "elon-report.json"),
		Blockers:          filepath.Join(root, "blockers.json"),
		AutoFixerLog:      filepath.Join(root, "auto-fixer-log.jsonl"),
		RegressionTracker: filepath.Join(root, "regression-tracker.json"),
		DevMode:           filepath.Join(root, "dev-mode.json"),
	}
}

// Store is the top-level handle a component obtains to read and write
// .sneebly/ state. Sub-components (SpecQueue, KnownErrorRegistry, ...) are
// constructed from it rather than re-deriving paths.
type Store struct {
	Layout Layout
}

// Open computes the layout and ensures every directory exists. It never
// fails on a missing workspace — callers are responsible for validating the
// workspace path before calling Open.
func Open(workspace string) (*Store, error) {
	if workspace == "" {
		return nil, fmt.Errorf("store: workspace path is empty")
	}
	layout := NewLayout(workspace)

	dirs := []string{
		layout.Root, layout.ApprovedQueue, layout.PendingQueue,
		layout.Completed, layout.Failed, layout.Backups,
		layout.Decisions, layout.Daily,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", d, err)
		}
	}

	logging.StoreDebug("opened store at %s", layout.Root)
	return &Store{Layout: layout}, nil
}

// readJSON loads path into v, leaving v at its zero value if the file does
// not yet exist (first-run behavior — every registry starts empty).
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSONAtomic marshals v and writes it to path via temp-file-then-rename
// so readers never observe a partially written file.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by rename, guaranteeing atomic visibility on POSIX filesystems.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}
