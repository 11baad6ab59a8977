package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteWithSystemReturnsAuthErrorWithoutAPIKey(t *testing.T) {
	c := NewAnthropicClient("")
	_, err := c.CompleteWithSystem(context.Background(), "", "hello")
	require.Error(t, err)
	ve, ok := AsVendorError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorKindAuth, ve.Kind)
}

func TestCompleteWithSystemParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"hello back"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-5-20250514",
		Timeout: 5 * time.Second,
	})

	text, err := c.CompleteWithSystem(context.Background(), "be nice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)
}

func TestCompleteWithSystemReturnsUnretryableAuthErrorImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid x-api-key"}`))
	}))
	defer srv.Close()

	c := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "bad-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-5-20250514",
		Timeout: 5 * time.Second,
	})

	_, err := c.CompleteWithSystem(context.Background(), "", "hi")
	require.Error(t, err)
	ve, ok := AsVendorError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorKindAuth, ve.Kind)
	assert.Equal(t, 1, calls, "auth errors must not be retried")
}

func TestCompleteWithSystemRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok after retry"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-5-20250514",
		Timeout: 5 * time.Second,
	})

	text, err := c.CompleteWithSystem(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok after retry", text)
	assert.Equal(t, 2, calls)
}

func TestCompleteDelegatesToCompleteWithSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"plain"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-5-20250514",
		Timeout: 5 * time.Second,
	})

	text, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestSetModelAndGetModel(t *testing.T) {
	c := NewAnthropicClient("k")
	c.SetModel("claude-haiku-4-5")
	assert.Equal(t, "claude-haiku-4-5", c.GetModel())
}
