package safety

import (
	"fmt"
	"strings"
)

// forbiddenOutsideQuotes is the set of shell metacharacters the command
// validator refuses anywhere outside a balanced quoted span (§4.1, §8
// Command-safety invariant).
const forbiddenOutsideQuotes = "`$(){}|;&<>!"

// forbiddenInsideQuotes is the subset still forbidden even inside quotes,
// since both still allow command substitution.
const forbiddenInsideQuotes = "`$"

// Whitelist confines shell execution to a small set of executables, each
// with its own list of allowed argument-string prefixes. Commands are never
// chained — callers issue one invocation per Validate call, and the
// command is always exec'd as a discrete argv, never via "sh -c".
type Whitelist struct {
	allowedArgsByBinary map[string][]string
}

// NewWhitelist builds a whitelist from a binary -> allowed-arg-prefixes map.
// A binary with no configured prefixes allows any arguments (still subject
// to metacharacter screening).
func NewWhitelist(allowedBinaries []string, allowedArgs map[string][]string) *Whitelist {
	w := &Whitelist{allowedArgsByBinary: make(map[string][]string, len(allowedBinaries))}
	for _, b := range allowedBinaries {
		w.allowedArgsByBinary[b] = allowedArgs[b]
	}
	return w
}

// ValidateCommand screens a single command line. It never splits on shell
// operators — the presence of one is itself grounds for rejection, since
// the spec forbids chaining entirely.
func (w *Whitelist) ValidateCommand(command string) ValidationResult {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return deny("empty command")
	}

	if err := scanMetacharacters(trimmed); err != nil {
		return deny(err.Error())
	}

	fields := splitRespectingQuotes(trimmed)
	if len(fields) == 0 {
		return deny("could not parse command")
	}

	binary := fields[0]
	allowedArgs, ok := w.allowedArgsByBinary[binary]
	if !ok {
		return deny("binary not in whitelist: " + binary)
	}

	if len(allowedArgs) == 0 {
		return ValidationResult{Allowed: true}
	}

	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, binary))
	for _, prefix := range allowedArgs {
		if strings.HasPrefix(rest, prefix) {
			return ValidationResult{Allowed: true}
		}
	}
	return deny(fmt.Sprintf("arguments for %q do not match any allowed prefix", binary))
}

// scanMetacharacters walks the command tracking single/double-quote state.
// Outside quotes, every character in forbiddenOutsideQuotes is rejected;
// inside quotes, only backtick and $ remain forbidden (both still permit
// command/variable substitution even inside a quoted string).
func scanMetacharacters(command string) error {
	var quote rune // 0, '\'', or '"'
	for i, r := range command {
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && strings.ContainsRune(forbiddenOutsideQuotes, r):
			return fmt.Errorf("forbidden character %q outside quotes at position %d", r, i)
		case quote != 0 && strings.ContainsRune(forbiddenInsideQuotes, r):
			return fmt.Errorf("forbidden character %q inside quotes at position %d", r, i)
		}
	}
	if quote != 0 {
		return fmt.Errorf("unbalanced quote (%c) in command", quote)
	}
	return nil
}

// splitRespectingQuotes is a minimal whitespace tokenizer that does not
// split inside a balanced quoted span. It is deliberately not a full shell
// lexer: commands that need real shell semantics are, by policy, not
// whitelisted in the first place.
func splitRespectingQuotes(s string) []string {
	var fields []string
	var cur strings.Builder
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}
