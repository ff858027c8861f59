package ai

import "context"

// Client is the outbound port to a chat-completion provider. One call, one
// combined exchange; the raw assistant message comes back untouched.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
