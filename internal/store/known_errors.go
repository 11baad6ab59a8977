package store

import (
	"regexp"
	"strings"
	"time"

	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/types"
)

var (
	integerPattern = regexp.MustCompile(`-?\d+`)
	quotedPattern  = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

const maxSignatureLen = 100

// Signature normalizes an error message into a stable fingerprint:
// integers collapse to N, quoted string literals collapse to S, runs of
// whitespace collapse to one space, and the result is truncated to 100
// chars. Two messages that differ only in embedded integers or quoted
// literals always produce the same signature.
func Signature(message string) string {
	s := quotedPattern.ReplaceAllString(message, "S")
	s = integerPattern.ReplaceAllString(s, "N")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > maxSignatureLen {
		s = s[:maxSignatureLen]
	}
	return s
}

type knownErrorsFile struct {
	Errors []types.KnownError `json:"errors"`
}

// KnownErrorRegistry is the signature -> occurrence mapping persisted at
// known-errors.json. Writes go through an advisory file lock since the
// error-log-to-registry transition can run concurrently with a direct
// query from the dashboard.
type KnownErrorRegistry struct {
	layout Layout
}

// NewKnownErrorRegistry constructs a registry bound to an opened Store.
func NewKnownErrorRegistry(s *Store) *KnownErrorRegistry {
	return &KnownErrorRegistry{layout: s.Layout}
}

func (r *KnownErrorRegistry) load() (knownErrorsFile, error) {
	var f knownErrorsFile
	err := readJSON(r.layout.KnownErrors, &f)
	return f, err
}

// Record updates the registry with one observed error message, creating a
// new entry on first sight or bumping occurrences/lastSeen otherwise.
// Acquires the bounded advisory lock; on timeout it logs and returns
// ErrLockTimeout so the caller can skip this pass per the ordering
// guarantee that the error-log-to-registry transition never blocks
// indefinitely under contention.
func (r *KnownErrorRegistry) Record(message string, now time.Time) error {
	lock := NewFileLock(r.layout.KnownErrors)
	if err := lock.Acquire(2*time.Second, 30*time.Second); err != nil {
		logging.StoreWarn("known-error registry lock contended, skipping pass: %v", err)
		return err
	}
	defer lock.Release()

	f, err := r.load()
	if err != nil {
		return err
	}

	sig := Signature(message)
	found := false
	for i := range f.Errors {
		if f.Errors[i].Signature == sig {
			f.Errors[i].Occurrences++
			f.Errors[i].LastSeen = now
			found = true
			break
		}
	}
	if !found {
		f.Errors = append(f.Errors, types.KnownError{
			Signature:   sig,
			Message:     message,
			FirstSeen:   now,
			LastSeen:    now,
			Occurrences: 1,
		})
	}

	return writeJSONAtomic(r.layout.KnownErrors, f)
}

// MarkResolved records that resolvingSpecID's fix addressed the error
// carrying this signature.
func (r *KnownErrorRegistry) MarkResolved(signature, resolvingSpecID string, now time.Time) error {
	lock := NewFileLock(r.layout.KnownErrors)
	if err := lock.Acquire(2*time.Second, 30*time.Second); err != nil {
		return err
	}
	defer lock.Release()

	f, err := r.load()
	if err != nil {
		return err
	}
	for i := range f.Errors {
		if f.Errors[i].Signature == signature {
			t := now
			f.Errors[i].ResolvedAt = &t
			f.Errors[i].ResolvingSpecID = resolvingSpecID
		}
	}
	return writeJSONAtomic(r.layout.KnownErrors, f)
}

// All returns every registered error, resolved or not.
func (r *KnownErrorRegistry) All() ([]types.KnownError, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	return f.Errors, nil
}

// DrainErrorLog appends every line of the append-only error-log.jsonl into
// the registry (one Record per line) then truncates the log. Re-running on
// an empty log is a no-op.
func (r *KnownErrorRegistry) DrainErrorLog(now time.Time) (int, error) {
	lines, err := readLines(r.layout.ErrorLog)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := r.Record(line, now); err != nil {
			if err == ErrLockTimeout {
				return 0, err
			}
			logging.StoreError("failed to record drained error line: %v", err)
		}
	}

	if err := writeFileAtomic(r.layout.ErrorLog, nil); err != nil {
		return 0, err
	}
	return len(lines), nil
}
