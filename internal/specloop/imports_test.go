package specloop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRepoFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestBuildRelatedContextResolvesGoImport(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "internal/helper/helper.go", "package helper\n\nfunc Help() string { return \"help\" }\n")

	content := "package main\n\nimport \"example.com/mod/internal/helper\"\n\nfunc main() { helper.Help() }\n"
	ctx := BuildRelatedContext(root, "cmd/main.go", content)
	assert.Contains(t, ctx, "helper.go")
	assert.Contains(t, ctx, "func Help()")
}

func TestBuildRelatedContextResolvesRelativeJSImport(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "src/utils.js", "export function util() { return 1; }\n")
	writeRepoFile(t, root, "src/index.js", "import { util } from './utils';\nutil();\n")

	content, err := os.ReadFile(filepath.Join(root, "src/index.js"))
	require.NoError(t, err)

	ctx := BuildRelatedContext(root, "src/index.js", string(content))
	assert.Contains(t, ctx, "utils.js")
	assert.Contains(t, ctx, "export function util")
}

func TestBuildRelatedContextTruncatesAtBudget(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, relatedContextBudget*2)
	for i := range big {
		big[i] = 'x'
	}
	writeRepoFile(t, root, "src/big.js", string(big))
	writeRepoFile(t, root, "src/index.js", "import './big';\n")

	ctx := BuildRelatedContext(root, "src/index.js", "import './big';\n")
	assert.LessOrEqual(t, len(ctx), relatedContextBudget)
}
