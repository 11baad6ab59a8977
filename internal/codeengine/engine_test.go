package codeengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	s, err := store.Open(root)
	require.NoError(t, err)
	validator := safety.NewOutputValidator(root, safety.NewIdentityGuard(root, nil), nil, nil)
	return New(root, store.NewBackupStore(s), validator), root
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func readFile(t *testing.T, root, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, relPath))
	require.NoError(t, err)
	return string(data)
}

func TestBackupCapturesExistingContent(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.go", "package a\n")

	id, err := e.Backup("a.go")
	require.NoError(t, err)
	data, err := os.ReadFile(id)
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(data))
}

func TestApplyExactMatch(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	err := e.Apply("a.go", "return 1", "return 2")
	require.NoError(t, err)
	assert.Contains(t, readFile(t, root, "a.go"), "return 2")
}

func TestApplyFuzzyMatchLeavesSurroundingIndentationIntact(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.go", "func Foo() {\n\tif true {\n\t\tdoThing()\n\t\tdoOther()\n\t}\n}\n")

	err := e.Apply("a.go", "doThing()\ndoOther()", "\t\tdoReplaced()")
	require.NoError(t, err)
	got := readFile(t, root, "a.go")
	assert.Contains(t, got, "\t\tdoReplaced()")
	assert.Contains(t, got, "\tif true {\n\t\tdoReplaced()")
	assert.Contains(t, got, "doReplaced()\n\t}\n}\n")
}

func TestApplyFuzzyRejectsAmbiguousMatch(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.go", "\ta()\n\tb()\nc()\n\n\ta()\n\tb()\nc()\n")

	err := e.Apply("a.go", "a()\nb()", "z()")
	assert.ErrorIs(t, err, ErrAmbiguousMatch)
}

func TestApplyFuzzyRejectsSingleLineOldCode(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.go", "x()\n")

	err := e.Apply("a.go", "y()", "z()")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestApplyRejectsPathTraversal(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Apply("../etc/passwd", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestCreateRefusesExisting(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.go", "package a\n")

	err := e.Create("a.go", "package a\n\nfunc X() {}\n")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateWritesNewFileWithParents(t *testing.T) {
	e, root := newTestEngine(t)

	err := e.Create("nested/dir/b.go", "package dir\n")
	require.NoError(t, err)
	assert.Equal(t, "package dir\n", readFile(t, root, "nested/dir/b.go"))
}
