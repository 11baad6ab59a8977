package specloop

import (
	"encoding/json"

	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/types"
)

// maxPreviousAttempts bounds how many prior iteration entries ride along
// in the task payload; older attempts stop being useful context once the
// executor has had a few chances to react to them.
const maxPreviousAttempts = 3

// taskPayload is the structured request handed to the spec executor
// subagent for one iteration. External file content is sanitized and
// data-wrapped before this struct is marshaled, per the Safety Kernel's
// data-boundary requirement (dispatch.Task.Payload is documented as
// already wrapped by the time it reaches the dispatcher).
type taskPayload struct {
	SpecID           string                 `json:"specId"`
	FilePath         string                 `json:"filePath"`
	Action           types.SpecAction       `json:"action"`
	Description      string                 `json:"description"`
	SuccessCriteria  []string               `json:"successCriteria"`
	CurrentCode      string                 `json:"currentCode,omitempty"`
	RelatedContext   string                 `json:"relatedContext,omitempty"`
	PreviousAttempts []types.IterationEntry `json:"previousAttempts,omitempty"`
	RetryGuidance    string                 `json:"retryGuidance,omitempty"`
}

// buildPayload assembles and marshals one iteration's task payload,
// sanitizing and data-wrapping the two externally-sourced text blocks
// (the file's own content, and related files pulled in via import
// resolution) before anything is attached.
func buildPayload(sanitizer *safety.Sanitizer, spec *types.Spec, currentCode, relatedContext, retryGuidance string) (string, error) {
	attempts := spec.IterationRecord
	if len(attempts) > maxPreviousAttempts {
		attempts = attempts[len(attempts)-maxPreviousAttempts:]
	}

	payload := taskPayload{
		SpecID:          spec.ID,
		FilePath:        spec.FilePath,
		Action:          spec.Action,
		Description:     spec.Description,
		SuccessCriteria: spec.SuccessCriteria,
		PreviousAttempts: attempts,
		RetryGuidance:   retryGuidance,
	}
	if currentCode != "" {
		payload.CurrentCode = sanitizer.SanitizeAndWrap("current-file-content", currentCode)
	}
	if relatedContext != "" {
		payload.RelatedContext = sanitizer.SanitizeAndWrap("related-context", relatedContext)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
