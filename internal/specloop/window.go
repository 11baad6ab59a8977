package specloop

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jhmac/sneebly/internal/types"
)

// windowFileSizeThreshold is the content length above which a full file is
// no longer attached to the executor's task payload; only a scored
// sub-window is.
const windowFileSizeThreshold = 20000

// windowLines is the number of lines carried in an extracted window.
const windowLines = 140

// commonWords are excluded from query-term scoring so generic English words
// in a spec's prose never outweigh the identifiers that actually locate the
// relevant code.
var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"should": true, "must": true, "when": true, "with": true, "that": true,
	"this": true, "it": true, "be": true, "by": true, "as": true, "at": true,
	"from": true, "not": true, "can": true, "will": true, "has": true,
	"have": true, "was": true, "were": true, "if": true, "then": true,
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// handlerDefinitionPattern recognizes route/handler-style definitions
// across the curly-brace language family: Go func, JS/TS function/arrow
// exports, and common router registration calls. Used as a tie-break when
// term scoring alone cannot distinguish between windows.
var handlerDefinitionPattern = regexp.MustCompile(`(?i)^\s*(func\s+\w|(export\s+)?(async\s+)?function\s+\w|(router|app)\.(get|post|put|delete|patch)\s*\()`)

// queryTerms extracts the distinct lowercased identifiers from a spec's
// description and success criteria, excluding stopwords and anything
// shorter than 3 characters.
func queryTerms(spec types.Spec) []string {
	text := spec.Description + " " + strings.Join(spec.SuccessCriteria, " ")
	seen := map[string]bool{}
	var terms []string
	for _, match := range identifierPattern.FindAllString(text, -1) {
		term := strings.ToLower(match)
		if len(term) < 3 || commonWords[term] || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}

// ExtractWindow returns the portion of content the executor subagent
// should see. Files at or under windowFileSizeThreshold are returned
// whole. Larger files are scored line by line against the spec's query
// terms, weighting each term inversely to how often it occurs in the file
// (rarer, more specific terms dominate the score, the same idea as an
// inverse-document-frequency weight applied within a single document), and
// the highest-scoring windowLines-line window is returned. When every
// window scores zero (a weak, route-style match with no literal keyword
// overlap), the first window whose opening line looks like a handler or
// function definition is preferred over window index 0.
func ExtractWindow(content string, spec types.Spec) (window string, startLine, endLine int) {
	lines := strings.Split(content, "\n")
	if len(content) <= windowFileSizeThreshold {
		lineCount := len(lines)
		if strings.HasSuffix(content, "\n") {
			lineCount--
		}
		return content, 1, lineCount
	}

	terms := queryTerms(spec)
	weights := termWeights(lines, terms)
	lineScores := make([]float64, len(lines))
	for i, line := range lines {
		lineScores[i] = scoreLine(line, weights)
	}

	size := windowLines
	if size > len(lines) {
		size = len(lines)
	}

	bestStart := 0
	bestScore := -1.0
	bestIsHandler := false
	var windowScore float64
	for i := 0; i+size <= len(lines); i++ {
		if i == 0 {
			windowScore = sumRange(lineScores, 0, size)
		} else {
			windowScore += lineScores[i+size-1] - lineScores[i-1]
		}
		isHandler := handlerDefinitionPattern.MatchString(lines[i])
		if windowScore > bestScore || (windowScore == bestScore && isHandler && !bestIsHandler) {
			bestScore = windowScore
			bestStart = i
			bestIsHandler = isHandler
		}
	}

	end := bestStart + size
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[bestStart:end], "\n"), bestStart + 1, end
}

func sumRange(scores []float64, start, end int) float64 {
	var total float64
	for i := start; i < end; i++ {
		total += scores[i]
	}
	return total
}

// termWeights computes an inverse-frequency weight per query term: a term
// appearing once in the file scores higher than one appearing fifty times,
// since the rare one is more likely to mark the actual edit site.
func termWeights(lines []string, terms []string) map[string]float64 {
	counts := make(map[string]int, len(terms))
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, t := range terms {
			counts[t] += strings.Count(lower, t)
		}
	}
	weights := make(map[string]float64, len(terms))
	for _, t := range terms {
		if counts[t] == 0 {
			continue
		}
		weights[t] = 1.0 / float64(counts[t])
	}
	return weights
}

func scoreLine(line string, weights map[string]float64) float64 {
	lower := strings.ToLower(line)
	var score float64
	for term, weight := range weights {
		if strings.Contains(lower, term) {
			score += weight
		}
	}
	return score
}

// rankedTerms exposes the query terms sorted by weight, highest first, for
// callers (e.g. decision logging) that want a human-readable summary of
// what drove a window choice.
func rankedTerms(lines []string, spec types.Spec) []string {
	terms := queryTerms(spec)
	weights := termWeights(lines, terms)
	sort.SliceStable(terms, func(i, j int) bool { return weights[terms[i]] > weights[terms[j]] })
	return terms
}
