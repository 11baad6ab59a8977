package planner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowserProbe struct {
	result BrowserSmokeResult
	err    error
}

func (f fakeBrowserProbe) SmokeCheck(ctx context.Context, url string) (BrowserSmokeResult, error) {
	return f.result, f.err
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestVerifierExistenceCheckFailsWhenFileMissing(t *testing.T) {
	root := t.TempDir()
	v := NewVerifier(root, "", nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "missing.go"}, "package a\n")
	assert.False(t, report.Passed)
	found := false
	for _, c := range report.Checks {
		if c.Name == CheckExistence {
			found = true
			assert.False(t, c.Passed)
		}
	}
	assert.True(t, found)
}

func TestVerifierSyntaxCheckCatchesUnbalancedGoFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\nfunc Broken( {\n")
	v := NewVerifier(root, "", nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go"}, "package a\nfunc Broken( {\n")
	assert.False(t, report.Passed)
}

func TestVerifierTypeCheckFlagsUnusedImport(t *testing.T) {
	root := t.TempDir()
	content := "package a\n\nimport \"fmt\"\n\nfunc Noop() {}\n"
	writeFile(t, root, "a.go", content)
	v := NewVerifier(root, "", nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go"}, content)

	var typeCheck CheckResult
	for _, c := range report.Checks {
		if c.Name == CheckTypeCheck {
			typeCheck = c
		}
	}
	assert.False(t, typeCheck.Passed)
	assert.Contains(t, typeCheck.Detail, "fmt")
}

func TestVerifierTypeCheckPassesCleanFile(t *testing.T) {
	root := t.TempDir()
	content := "package a\n\nimport \"fmt\"\n\nfunc Noop() { fmt.Println(\"x\") }\n"
	writeFile(t, root, "a.go", content)
	v := NewVerifier(root, "", nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go"}, content)

	for _, c := range report.Checks {
		if c.Name == CheckTypeCheck {
			assert.True(t, c.Passed)
		}
	}
}

func TestVerifierEndpointCheckTreatsAuthGatedAsExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	v := NewVerifier(root, srv.URL, nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go", Endpoint: "/secure"}, "package a\n")

	for _, c := range report.Checks {
		if c.Name == CheckEndpoint {
			assert.True(t, c.Passed)
		}
	}
}

func TestVerifierEndpointCheckFailsOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	v := NewVerifier(root, srv.URL, nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go", Endpoint: "/gone"}, "package a\n")
	assert.False(t, report.Passed)
}

func TestVerifierSchemaCheckRequiresTestFunctionInTestFile(t *testing.T) {
	root := t.TempDir()
	content := "package a\n"
	writeFile(t, root, "a_test.go", content)
	v := NewVerifier(root, "", nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a_test.go"}, content)
	assert.False(t, report.Passed)
}

func TestVerifierBrowserSmokeFailsOnBlankPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	v := NewVerifier(root, srv.URL, fakeBrowserProbe{result: BrowserSmokeResult{Blank: true}})
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go", Endpoint: "/page"}, "package a\n")
	assert.False(t, report.Passed)
}

func TestVerifierBrowserSmokeFailsOverConsoleErrorThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	v := NewVerifier(root, srv.URL, fakeBrowserProbe{result: BrowserSmokeResult{ConsoleErrors: 4}})
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go", Endpoint: "/page"}, "package a\n")
	assert.False(t, report.Passed)
}

func TestVerifierBrowserSmokeSkippedWithoutEndpoint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	v := NewVerifier(root, "http://unused.invalid", fakeBrowserProbe{err: errors.New("should never be called")})
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go"}, "package a\n")

	for _, c := range report.Checks {
		if c.Name == CheckBrowserSmoke {
			assert.True(t, c.Passed)
		}
	}
}

func TestVerifyPassesAllChecksOnCleanStep(t *testing.T) {
	root := t.TempDir()
	content := "package a\n\nfunc Noop() {}\n"
	writeFile(t, root, "a.go", content)
	v := NewVerifier(root, "", nil)
	report := v.Verify(context.Background(), &Step{ID: "s1", FilePath: "a.go"}, content)
	require.True(t, report.Passed)
	assert.Len(t, report.Checks, 6)
}
