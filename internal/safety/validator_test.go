package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestValidator() *OutputValidator {
	identity := NewIdentityGuard("/workspace", []string{"SOUL", "AGENTS"})
	return NewOutputValidator(
		"/workspace",
		identity,
		[]string{".env", "go.sum"},
		[]string{"node_modules/", ".git/"},
	)
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	v := newTestValidator()
	r := v.validatePath("../../etc/passwd")
	assert.False(t, r.Allowed)
	assert.Contains(t, r.Reason, "traversal")
}

func TestValidatePathRejectsIdentityFile(t *testing.T) {
	v := newTestValidator()
	r := v.validatePath("AGENTS")
	assert.False(t, r.Allowed)
}

func TestValidatePathRejectsDeniedFileName(t *testing.T) {
	v := newTestValidator()
	r := v.validatePath(".env")
	assert.False(t, r.Allowed)
}

func TestValidatePathRejectsDeniedPrefix(t *testing.T) {
	v := newTestValidator()
	r := v.validatePath("node_modules/left-pad/index.js")
	assert.False(t, r.Allowed)
}

func TestValidatePathAllowsSafeFile(t *testing.T) {
	v := newTestValidator()
	r := v.validatePath("src/handlers/users.go")
	assert.True(t, r.Allowed)
}

func TestValidateContentRejectsDeniedPattern(t *testing.T) {
	v := newTestValidator()
	r := v.validateContent(`apiKey := os.Getenv("ANTHROPIC_API_KEY")`)
	assert.False(t, r.Allowed)
}

func TestValidateFullActionCombinesPathAndContent(t *testing.T) {
	v := newTestValidator()
	result := v.Validate(ProposedAction{
		Kind:    ActionWriteFile,
		Path:    "src/config.go",
		Content: "package config",
	})
	assert.True(t, result.Allowed)
}
