package safety

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jhmac/sneebly/internal/logging"
)

// ActionKind is the closed set of mutating operations the output validator
// screens before anything reaches disk.
type ActionKind string

const (
	ActionWriteFile ActionKind = "write_file"
	ActionEditFile  ActionKind = "edit_file"
	ActionCreateFile ActionKind = "create_file"
	ActionRunCommand ActionKind = "run_command"
)

// ProposedAction is what an LLM response asked to do, as parsed by the
// dispatcher, before it is allowed to execute.
type ProposedAction struct {
	Kind    ActionKind
	Path    string // target file path, for file actions
	Content string // new file content or new code, for pattern scanning
	Command string // shell command text, for ActionRunCommand
}

// ValidationResult is the structured outcome of screening one action.
type ValidationResult struct {
	Allowed bool
	Reason  string
}

// deniedCodePatterns catch writes that try to reach denied files or read
// environment state dynamically from inside generated code, even when the
// target path itself looks safe (e.g. code that opens ".env" at runtime).
var deniedCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.env['"` + "`" + `]`),
	regexp.MustCompile(`(?i)process\.env\[.*api_key`),
	regexp.MustCompile(`(?i)os\.Getenv\(\s*["'` + "`" + `]?ANTHROPIC_API_KEY`),
	regexp.MustCompile(`(?i)identity-checksums\.json`),
}

// OutputValidator is the gate every proposed LLM action passes before it
// can touch disk or the shell (§4.1).
type OutputValidator struct {
	identity           *IdentityGuard
	deniedFileNames    map[string]struct{}
	deniedPathPrefixes []string
	projectRoot        string
}

// NewOutputValidator builds a validator bound to a project root, an
// identity guard, and the configured deny lists.
func NewOutputValidator(projectRoot string, identity *IdentityGuard, deniedFileNames, deniedPathPrefixes []string) *OutputValidator {
	set := make(map[string]struct{}, len(deniedFileNames))
	for _, f := range deniedFileNames {
		set[f] = struct{}{}
	}
	return &OutputValidator{
		identity:           identity,
		deniedFileNames:    set,
		deniedPathPrefixes: deniedPathPrefixes,
		projectRoot:        projectRoot,
	}
}

// Validate screens a single proposed action. Any failure returns a
// structured reason; the dispatcher turns a rejection into a
// validation-failed result, and the Spec Execution Loop then ends the spec
// with that outcome instead of touching disk.
func (v *OutputValidator) Validate(action ProposedAction) ValidationResult {
	switch action.Kind {
	case ActionWriteFile, ActionEditFile, ActionCreateFile:
		if r := v.validatePath(action.Path); !r.Allowed {
			return r
		}
		if r := v.validateContent(action.Content); !r.Allowed {
			return r
		}
	case ActionRunCommand:
		// Command text itself is screened by the Whitelist, not here.
	}
	return ValidationResult{Allowed: true}
}

func (v *OutputValidator) validatePath(target string) ValidationResult {
	if target == "" {
		return deny("no target path specified")
	}

	// Path traversal: any ".." segment rejected, regardless of whether it
	// would still resolve inside projectRoot — the presence of ".." in an
	// LLM-authored path is itself the signal we refuse to reason past.
	for _, seg := range strings.Split(filepath.ToSlash(target), "/") {
		if seg == ".." {
			logging.SafetyError("output validator: path traversal rejected: %s", target)
			return deny("path traversal (..) is not allowed: " + target)
		}
	}

	base := path.Base(filepath.ToSlash(target))
	if v.identity != nil && v.identity.IsIdentityFile(target) {
		return deny("identity files are never mutation targets: " + base)
	}
	if _, denied := v.deniedFileNames[base]; denied {
		return deny("denied file name: " + base)
	}

	normalized := filepath.ToSlash(target)
	for _, prefix := range v.deniedPathPrefixes {
		if strings.HasPrefix(normalized, prefix) || strings.Contains(normalized, "/"+prefix) {
			return deny("denied path prefix: " + prefix)
		}
	}
	return ValidationResult{Allowed: true}
}

func (v *OutputValidator) validateContent(content string) ValidationResult {
	for _, re := range deniedCodePatterns {
		if re.MatchString(content) {
			logging.SafetyError("output validator: denied code pattern matched: %s", re.String())
			return deny("proposed content matches a denied pattern: " + re.String())
		}
	}
	return ValidationResult{Allowed: true}
}

func deny(reason string) ValidationResult {
	return ValidationResult{Allowed: false, Reason: reason}
}

// String renders a result for structured logging/decision records.
func (r ValidationResult) String() string {
	if r.Allowed {
		return "allowed"
	}
	return fmt.Sprintf("denied: %s", r.Reason)
}
