package elon

import (
	"encoding/json"
	"fmt"

	"github.com/jhmac/sneebly/internal/types"
)

// analystResponse is the constraint analyst subagent's expected JSON
// shape, per §4.5 step 4: a single limiting factor, an ordered plan, the
// pages to re-crawl for evaluation, and completion criteria.
type analystResponse struct {
	LimitingFactor     types.LimitingFactor `json:"limitingFactor"`
	Plan               []types.Spec         `json:"plan"`
	VerificationPages  []string             `json:"verificationPages"`
	CompletionCriteria []string             `json:"completionCriteria"`
}

// evaluatorResponse is the evaluator subagent's expected JSON shape.
type evaluatorResponse struct {
	Verdict  string   `json:"verdict"` // resolved | active
	Evidence []string `json:"evidence"`
}

// extractJSONObject returns the first balanced top-level `{...}` span in
// text, respecting quoted strings. Analyst/evaluator responses aren't
// run through dispatch.ParseExecutorResponse (that chain decodes into
// types.ExecutorResponse, a different shape), so this package does its
// own minimal extraction before unmarshaling its own response structs.
func extractJSONObject(text string) (string, bool) {
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
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func parseAnalystResponse(raw string) (*analystResponse, error) {
	candidate, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in analyst response")
	}
	var resp analystResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return nil, fmt.Errorf("decode analyst response: %w", err)
	}
	if resp.LimitingFactor.Description == "" {
		return nil, fmt.Errorf("analyst response missing limitingFactor.description")
	}
	return &resp, nil
}

func parseEvaluatorResponse(raw string) (*evaluatorResponse, error) {
	candidate, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in evaluator response")
	}
	var resp evaluatorResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return nil, fmt.Errorf("decode evaluator response: %w", err)
	}
	if resp.Verdict != "resolved" && resp.Verdict != "active" {
		return nil, fmt.Errorf("evaluator response has unrecognised verdict %q", resp.Verdict)
	}
	return &resp, nil
}
