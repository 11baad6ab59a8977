// Package llm defines sneebly's vendor boundary: a minimal Client interface
// every subagent call goes through, a closed error taxonomy, and concrete
// clients for the Anthropic HTTP API and Google's genai SDK.
package llm

import "context"

// Client is the minimal interface the dispatcher needs from a vendor.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Tier is a named model tier used for budget accounting and model-override
// selection (§3 Budget ledger: "haiku, sonnet, opus in ascending order").
type Tier string

const (
	TierHaiku  Tier = "haiku"
	TierSonnet Tier = "sonnet"
	TierOpus   Tier = "opus"
)
