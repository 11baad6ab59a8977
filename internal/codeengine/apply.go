package codeengine

import (
	"fmt"
	"os"
	"strings"

	"github.com/jhmac/sneebly/internal/diffutil"
	"github.com/jhmac/sneebly/internal/logging"
)

// ErrAmbiguousMatch is returned when a fuzzy match finds more than one
// candidate location and therefore refuses to guess.
var ErrAmbiguousMatch = fmt.Errorf("codeengine: ambiguous fuzzy match")

// ErrNoMatch is returned when neither an exact nor a fuzzy match of oldCode
// can be found in the target file.
var ErrNoMatch = fmt.Errorf("codeengine: no match for oldCode")

// Apply replaces the first exact occurrence of oldCode with newCode in
// relPath. If no exact occurrence exists, it falls back to a fuzzy,
// whitespace-trimmed line match: both the file and oldCode are split into
// lines and trimmed per line, and the replacement is accepted only when
// oldCode is at least two lines long and matches exactly one location —
// an ambiguous or zero-line match is rejected rather than guessed at. When
// the fuzzy path is taken, the replacement still operates on the original
// (un-trimmed) lines so indentation survives.
func (e *Engine) Apply(relPath, oldCode, newCode string) error {
	if err := e.checkPath(relPath, newCode); err != nil {
		return err
	}

	abs := e.absPath(relPath)
	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("codeengine: apply read %s: %w", relPath, err)
	}
	original := string(raw)

	if strings.Contains(original, oldCode) {
		updated := strings.Replace(original, oldCode, newCode, 1)
		if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
			return fmt.Errorf("codeengine: apply write %s: %w", relPath, err)
		}
		e.logDiff(relPath, original, updated, "exact")
		return nil
	}

	updated, err := fuzzyReplace(original, oldCode, newCode)
	if err != nil {
		return err
	}
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("codeengine: apply write %s: %w", relPath, err)
	}
	e.logDiff(relPath, original, updated, "fuzzy")
	return nil
}

// logDiff renders the applied change as a unified diff for the code-engine
// log; it never affects whether the apply itself succeeds.
func (e *Engine) logDiff(relPath, before, after, matchKind string) {
	fd := diffutil.ComputeDiff(relPath, relPath, before, after)
	logging.CodeEngineDebug("apply %s match relPath=%s hunks=%d", matchKind, relPath, len(fd.Hunks))
}

// fuzzyReplace finds the unique window of consecutive lines in fileText
// whose trimmed content matches oldCode's trimmed lines, and substitutes
// that window (in its original, untrimmed form) with newCode.
func fuzzyReplace(fileText, oldCode, newCode string) (string, error) {
	oldLines := splitLines(oldCode)
	trimmedOld := trimAll(oldLines)
	if len(trimmedOld) < 2 {
		return "", ErrNoMatch
	}

	fileLines := splitLines(fileText)
	trimmedFile := trimAll(fileLines)

	matchStart := -1
	for i := 0; i+len(trimmedOld) <= len(trimmedFile); i++ {
		if linesEqual(trimmedFile[i:i+len(trimmedOld)], trimmedOld) {
			if matchStart != -1 {
				return "", ErrAmbiguousMatch
			}
			matchStart = i
		}
	}
	if matchStart == -1 {
		return "", ErrNoMatch
	}

	before := strings.Join(fileLines[:matchStart], "\n")
	after := strings.Join(fileLines[matchStart+len(trimmedOld):], "\n")

	var b strings.Builder
	if before != "" {
		b.WriteString(before)
		b.WriteString("\n")
	}
	b.WriteString(newCode)
	if after != "" {
		b.WriteString("\n")
		b.WriteString(after)
	}
	return b.String(), nil
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
