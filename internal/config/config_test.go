package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasSafeDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.Safety.IdentityFiles)
	assert.Contains(t, cfg.Safety.DeniedFileNames, ".env")
	assert.Greater(t, cfg.Budget.MaxUSD, 0.0)
}

func TestLoadFallsBackToDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sneebly", cfg.Name)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sneebly.yaml")
	content := []byte("name: sneebly\nbudget:\n  max_usd: 1.5\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Budget.MaxUSD)
}

func TestApplyEnvOverridesAnthropicKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant-test-key")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "ant-test-key", cfg.LLM.APIKey)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestApplyEnvOverridesPreservesExplicitProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant-test-key")

	cfg := &Config{LLM: LLMConfig{Provider: "custom"}}
	cfg.applyEnvOverrides()

	assert.Equal(t, "ant-test-key", cfg.LLM.APIKey)
	assert.Equal(t, "custom", cfg.LLM.Provider)
}

func TestDashboardSecretNeverMarshalled(t *testing.T) {
	t.Setenv("SNEEBLY_DASHBOARD_SECRET", "top-secret")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	require.Equal(t, "top-secret", cfg.DashboardSecret())

	dir := t.TempDir()
	path := filepath.Join(dir, "sneebly.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "top-secret")
}
