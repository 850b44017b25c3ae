package llm

import "context"

// Message roles understood by every backend
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the context sent to the model
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call
type Request struct {
	// SystemPrompt is prepended as the first message when set
	SystemPrompt string
	// Messages is the conversation history, oldest first, ending with the new user prompt
	Messages []Message
}

// StreamChunk is one element of a backend stream. A chunk carrying Err is the last one sent.
type StreamChunk struct {
	Content string
	Err     error
}

// Backend produces a lazy, finite, non-restartable sequence of text fragments.
// The returned channel is closed after the final chunk.
type Backend interface {
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
