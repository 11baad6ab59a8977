package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/types"
)

// renderPlannerPayload asks the planner subagent for an ordered step
// graph. Unlike the Builder's payload (JSON, so edits round-trip
// field-for-field), this stays prose with a fixed response-contract
// footer, mirroring how the Constraint Solver's analyst call is rendered.
func renderPlannerPayload(goal, contextBrief string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal)
	if contextBrief != "" {
		b.WriteString("Current state:\n")
		b.WriteString(contextBrief)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object: ")
	b.WriteString(`{"steps":[{"id":"s1","action":"create|replace|append","filePath":"...","description":"...","dependsOn":[0,1],"testCommand":"...","endpoint":"..."}]}`)
	b.WriteString("\n`dependsOn` is a list of zero-based indices into this same steps array, naming the steps that must complete first. ")
	b.WriteString("Omit testCommand and endpoint when a step has neither.\n")
	return b.String()
}

// buildStepPayload is the structured request handed to the builder
// subagent for one step. Mirrors the Spec Execution Loop's taskPayload
// shape so the same sanitize-and-wrap discipline applies to externally
// sourced text.
type buildStepPayload struct {
	StepID         string   `json:"stepId"`
	FilePath       string   `json:"filePath"`
	Action         string   `json:"action"`
	Description    string   `json:"description"`
	CurrentCode    string   `json:"currentCode,omitempty"`
	RelatedContext string   `json:"relatedContext,omitempty"`
	RetryGuidance  string   `json:"retryGuidance,omitempty"`
}

func buildStepRequest(sanitizer *safety.Sanitizer, step *Step, currentCode, relatedContext, retryGuidance string) (string, error) {
	payload := buildStepPayload{
		StepID:        step.ID,
		FilePath:      step.FilePath,
		Action:        string(step.Action),
		Description:   step.Description,
		RetryGuidance: retryGuidance,
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

// renderAutoFixerPayload describes a blocker to the auto-fixer subagent
// and asks it to either propose a fix change set or recognise the
// "work already done elsewhere" redirect case.
func renderAutoFixerPayload(blocker types.Blocker, currentCode string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Blocker on spec %s, file %s:\n%s\n\n", blocker.SpecID, blocker.TargetFile, blocker.Reason)
	fmt.Fprintf(&b, "Attempts so far: %d\n\n", blocker.Attempts)
	if currentCode != "" {
		b.WriteString("Current file content:\n")
		b.WriteString(currentCode)
		b.WriteString("\n\n")
	}
	b.WriteString("Diagnose the root cause. If the described problem no longer reproduces because the work was already completed elsewhere, respond with ")
	b.WriteString(`{"status":"redirect","reason":"..."}`)
	b.WriteString(". Otherwise respond with a change-set fix: ")
	b.WriteString(`{"status":"change","change":{"filePath":"...","op":"create|append","oldCode":"...","newCode":"...","content":"..."}}`)
	b.WriteString("\n")
	return b.String()
}
