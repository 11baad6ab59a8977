package dispatch

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jhmac/sneebly/internal/types"
)

const specCompleteToken = "SPEC_COMPLETE"

const naturalLanguageScanChars = 1500

// naturalCompletionPatterns are phrases an executor might use instead of
// the literal SPEC_COMPLETE token when it judges the spec already
// satisfied.
var naturalCompletionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)already\s+(satisfied|implemented|done|present|handled)`),
	regexp.MustCompile(`(?i)no\s+changes?\s+(are\s+)?needed`),
	regexp.MustCompile(`(?i)no\s+further\s+changes?\s+(are\s+)?required`),
	regexp.MustCompile(`(?i)nothing\s+(left\s+)?to\s+do`),
	regexp.MustCompile(`(?i)requirement(s)?\s+(is|are)\s+already\s+met`),
	regexp.MustCompile(`(?i)task\s+is\s+complete`),
	regexp.MustCompile(`(?i)this\s+is\s+already\s+the\s+case`),
	regexp.MustCompile(`(?i)no\s+code\s+changes?\s+necessary`),
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ParseResult is the outcome of running the 7-step fallback chain.
type ParseResult struct {
	Response *types.ExecutorResponse
	Action   string // "dispatch" when Response is usable, "queue" otherwise
	Reason   string
}

// ParseExecutorResponse applies the fixed fallback order described in
// §4.2: exact token, fenced JSON, status-anchored balanced JSON, known
// structural keys, JSON repair, natural-language completion detection,
// and finally a queue/parse-failed fallback.
func ParseExecutorResponse(raw string) ParseResult {
	trimmed := strings.TrimSpace(raw)

	// Step 1: exact token.
	if trimmed == specCompleteToken {
		return ParseResult{
			Response: &types.ExecutorResponse{Shape: types.ShapeComplete},
			Action:   "dispatch",
		}
	}

	// Step 2: first balanced JSON object inside a fenced code block.
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		if resp, ok := decodeExecutorResponse(strings.TrimSpace(m[1])); ok {
			return ParseResult{Response: resp, Action: "dispatch"}
		}
	}

	// Step 3: smallest balanced JSON object whose outermost braces enclose
	// a "status" key.
	if candidate, ok := smallestBalancedJSONWithKey(raw, "status"); ok {
		if resp, ok := decodeExecutorResponse(candidate); ok {
			return ParseResult{Response: resp, Action: "dispatch"}
		}
	}

	// Step 4: any balanced JSON object containing known structural keys.
	for _, candidate := range allBalancedJSONObjects(raw) {
		if hasStructuralKey(candidate) {
			if resp, ok := decodeExecutorResponse(candidate); ok {
				return ParseResult{Response: resp, Action: "dispatch"}
			}
		}
	}

	// Step 5: JSON repair pass on the largest candidate object found.
	if candidate, ok := largestBalancedJSONObject(raw); ok {
		repaired := repairJSON(candidate)
		if resp, ok := decodeExecutorResponse(repaired); ok {
			return ParseResult{Response: resp, Action: "dispatch"}
		}
	}

	// Step 6: natural-language completion detection.
	scanWindow := trimmed
	if len(scanWindow) > naturalLanguageScanChars {
		scanWindow = scanWindow[:naturalLanguageScanChars]
	}
	for _, pattern := range naturalCompletionPatterns {
		if pattern.MatchString(scanWindow) {
			return ParseResult{
				Response: &types.ExecutorResponse{Shape: types.ShapeComplete},
				Action:   "dispatch",
			}
		}
	}

	// Step 7: give up, queue for owner review.
	return ParseResult{Action: "queue", Reason: "parse-failed"}
}

func decodeExecutorResponse(candidate string) (*types.ExecutorResponse, bool) {
	var resp types.ExecutorResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return nil, false
	}
	if resp.Shape == "" {
		return nil, false
	}
	return &resp, true
}

var structuralKeyPattern = regexp.MustCompile(`"(status|filePath|oldCode|content)"\s*:`)

func hasStructuralKey(candidate string) bool {
	return structuralKeyPattern.MatchString(candidate)
}

// allBalancedJSONObjects scans text for every top-level balanced `{...}`
// span, respecting string literals so braces inside quoted text never
// confuse the depth counter.
func allBalancedJSONObjects(text string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return out
}

func smallestBalancedJSONWithKey(text, key string) (string, bool) {
	candidates := allBalancedJSONObjects(text)
	best := ""
	pattern := regexp.MustCompile(`"` + key + `"\s*:`)
	for _, c := range candidates {
		if !pattern.MatchString(c) {
			continue
		}
		if best == "" || len(c) < len(best) {
			best = c
		}
	}
	return best, best != ""
}

func largestBalancedJSONObject(text string) (string, bool) {
	candidates := allBalancedJSONObjects(text)
	best := ""
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}
	return best, best != ""
}

var (
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyPattern    = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

// repairJSON applies the two repairs named in §4.2 step 5: strip trailing
// commas before a closing brace/bracket, and quote bare identifier keys.
func repairJSON(candidate string) string {
	repaired := trailingCommaPattern.ReplaceAllString(candidate, "$1")
	repaired = unquotedKeyPattern.ReplaceAllString(repaired, `$1"$2"$3`)
	return repaired
}
