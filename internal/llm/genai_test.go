package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenAIClientRejectsEmptyAPIKey(t *testing.T) {
	_, err := NewGenAIClient(context.Background(), "")
	require.Error(t, err)
	ve, ok := AsVendorError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorKindAuth, ve.Kind)
}

func TestDefaultGenAIConfigFillsModel(t *testing.T) {
	cfg := DefaultGenAIConfig("k")
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.NotZero(t, cfg.Timeout)
}
