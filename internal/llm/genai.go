package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/jhmac/sneebly/internal/logging"
)

// GenAIConfig configures GenAIClient, sneebly's secondary vendor tier.
type GenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultGenAIConfig returns sneebly's defaults for the genai vendor tier.
func DefaultGenAIConfig(apiKey string) GenAIConfig {
	return GenAIConfig{
		APIKey:  apiKey,
		Model:   "gemini-2.5-flash",
		Timeout: 5 * time.Minute,
	}
}

// GenAIClient implements Client against Google's genai SDK. It is the
// vendor used when config.LLM.Provider is "genai"; there is no automatic
// failover to it from the Anthropic client.
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAIClient creates a genai-backed client with sneebly's default config.
func NewGenAIClient(ctx context.Context, apiKey string) (*GenAIClient, error) {
	return NewGenAIClientWithConfig(ctx, DefaultGenAIConfig(apiKey))
}

// NewGenAIClientWithConfig creates a genai-backed client with custom config.
func NewGenAIClientWithConfig(ctx context.Context, config GenAIConfig) (*GenAIClient, error) {
	if config.APIKey == "" {
		return nil, &VendorError{Kind: ErrorKindAuth, Message: "genai API key not configured"}
	}
	model := config.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return &GenAIClient{client: client, model: model, timeout: timeout}, nil
}

func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *GenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("genai CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	var config *genai.GenerateContentConfig
	if strings.TrimSpace(systemPrompt) != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		logging.LLMError("genai CompleteWithSystem: request failed after %v: %v", time.Since(start), err)
		return "", ClassifyTransport(err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no completion returned")
	}

	logging.LLM("genai CompleteWithSystem: completed in %v response_len=%d", time.Since(start), len(text))
	return strings.TrimSpace(text), nil
}

// SetModel changes the model used for subsequent completions.
func (c *GenAIClient) SetModel(model string) { c.model = model }

// GetModel returns the currently configured model.
func (c *GenAIClient) GetModel() string { return c.model }
