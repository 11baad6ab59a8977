// Package diffutil computes and renders unified diffs using sergi/go-diff.
// The code engine uses it to log the diff of each applied change.
package diffutil

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType classifies a single line of a diff hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is a single rendered line within a Hunk.
type Line struct {
	LineNum int
	Content string
	Type    LineType
}

// Hunk groups a contiguous run of changed lines with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff is the computed difference between two versions of one file.
type FileDiff struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
}

// Engine computes diffs with memoization across repeated identical pairs,
// which matters when the same backup is diffed against several candidate
// rewrites during a spec iteration.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a diff engine tuned for code: no timeout, so large
// generated files never get a truncated diff.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// DefaultEngine is shared by packages that just need ComputeDiff.
var DefaultEngine = NewEngine()

// ComputeDiff computes the FileDiff between oldContent and newContent.
func ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.ComputeDiff(oldPath, newPath, oldContent, newContent)
}

// ComputeDiff computes the FileDiff between oldContent and newContent,
// caching by content hash so repeated pairs (e.g. re-diffing a backup
// against successive candidate edits) skip recomputation.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	fd := &FileDiff{OldPath: oldPath, NewPath: newPath}
	if oldContent == "" {
		fd.IsNew = true
	}
	if newContent == "" {
		fd.IsDelete = true
	}

	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if cd, ok := cached.(*FileDiff); ok {
			result := *cd
			result.OldPath = oldPath
			result.NewPath = newPath
			return &result
		}
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	fd.Hunks = e.convertToHunks(diffs, 3)
	e.cache.Store(key, fd)
	return fd
}

// ClearCache drops all memoized diffs.
func (e *Engine) ClearCache() { e.cache = sync.Map{} }

type operation struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

func (e *Engine) convertToHunks(diffs []diffmatchpatch.Diff, contextLines int) []Hunk {
	ops := e.diffsToOperations(diffs)
	if len(ops) == 0 {
		return nil
	}
	return e.groupIntoHunks(ops, contextLines)
}

func (e *Engine) diffsToOperations(diffs []diffmatchpatch.Diff) []operation {
	ops := make([]operation, 0)
	oldLine, newLine := 0, 0

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) == 1 && lines[0] == "" && d.Type != diffmatchpatch.DiffEqual {
			continue
		}
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for i, line := range lines {
			if i == len(lines)-1 && line == "" && len(lines) > 1 {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

func (e *Engine) groupIntoHunks(ops []operation, contextLines int) []Hunk {
	hunks := make([]Hunk, 0)
	var current *Hunk
	lastChangeIdx := -1

	for i, op := range ops {
		isChange := op.typ != LineContext

		if isChange {
			if current == nil {
				current = &Hunk{Lines: make([]Line, 0)}
				start := i - contextLines
				if start < 0 {
					start = 0
				}
				for j := start; j < i; j++ {
					if ops[j].typ == LineContext {
						current.Lines = append(current.Lines, Line{ops[j].oldLine + 1, ops[j].content, LineContext})
					}
				}
				if start < len(ops) {
					current.OldStart = ops[start].oldLine + 1
					current.NewStart = ops[start].newLine + 1
					if ops[start].oldLine < 0 {
						current.OldStart = 0
					}
					if ops[start].newLine < 0 {
						current.NewStart = 0
					}
				}
			}
			lastChangeIdx = i
		}

		if current != nil {
			lineNum := op.oldLine + 1
			if op.typ == LineAdded {
				lineNum = op.newLine + 1
			}
			current.Lines = append(current.Lines, Line{lineNum, op.content, op.typ})

			if op.typ == LineContext && i-lastChangeIdx > contextLines {
				trimTo := len(current.Lines) - (i - lastChangeIdx - contextLines)
				if trimTo > 0 && trimTo < len(current.Lines) {
					current.Lines = current.Lines[:trimTo]
				}
				e.computeHunkCounts(current)
				hunks = append(hunks, *current)
				current = nil
			}
		}
	}

	if current != nil && len(current.Lines) > 0 {
		e.computeHunkCounts(current)
		hunks = append(hunks, *current)
	}
	return hunks
}

func (e *Engine) computeHunkCounts(h *Hunk) {
	for _, l := range h.Lines {
		if l.Type == LineRemoved || l.Type == LineContext {
			h.OldCount++
		}
		if l.Type == LineAdded || l.Type == LineContext {
			h.NewCount++
		}
	}
}

func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// RenderUnified renders a FileDiff as a standard unified-diff text block,
// suitable for embedding in a decision log entry or subagent prompt.
func RenderUnified(fd *FileDiff) string {
	if len(fd.Hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n", fd.OldPath)
	fmt.Fprintf(&sb, "+++ %s\n", fd.NewPath)
	for _, h := range fd.Hunks {
		fmt.Fprintf(&sb, "@@ -%s,%d +%s,%d @@\n",
			strconv.Itoa(h.OldStart), h.OldCount, strconv.Itoa(h.NewStart), h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteString("+")
			case LineRemoved:
				sb.WriteString("-")
			default:
				sb.WriteString(" ")
			}
			sb.WriteString(l.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
