package llm

import (
	"context"
	"encoding/json"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls a chat-completion backend and returns the assistant message
// parsed as a JSON document. Implementations own their transport timeout.
type Client interface {
	CompleteJSON(ctx context.Context, messages []Message, temperature float64) (json.RawMessage, error)
}
