package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, workspace string, debugMode bool) {
	t.Helper()
	dir := filepath.Join(workspace, ".sneebly")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := `{"logging":{"level":"debug","debug_mode":true,"json_format":false}}`
	if !debugMode {
		content = `{"logging":{"debug_mode":false}}`
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644))
}

func resetGlobals() {
	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
	logsDir = ""
	workspace = ""
	cfg = fileConfig{}
}

func TestInitializeCreatesLogFileWhenDebugModeEnabled(t *testing.T) {
	resetGlobals()
	tmp := t.TempDir()
	writeTestConfig(t, tmp, true)

	require.NoError(t, Initialize(tmp))
	defer CloseAll()

	require.True(t, IsDebugMode())

	Get(CategorySafety).Info("hello %s", "world")

	entries, err := os.ReadDir(filepath.Join(tmp, ".sneebly", "logs"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestInitializeNoOpWithoutDebugMode(t *testing.T) {
	resetGlobals()
	tmp := t.TempDir()
	writeTestConfig(t, tmp, false)

	require.NoError(t, Initialize(tmp))
	defer CloseAll()

	require.False(t, IsDebugMode())
	_, err := os.Stat(filepath.Join(tmp, ".sneebly", "logs"))
	require.True(t, os.IsNotExist(err))
}

func TestGetReturnsNoOpLoggerWithoutInitialize(t *testing.T) {
	resetGlobals()
	l := Get(CategorySafety)
	// Should not panic even though no file backs this logger.
	l.Info("noop")
	l.Error("still noop")
}

func TestInitializeRejectsEmptyWorkspace(t *testing.T) {
	resetGlobals()
	err := Initialize("")
	require.Error(t, err)
}
