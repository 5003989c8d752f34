package reply

import "context"

// Message is one prior conversation entry sent as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the payload handed to the reply capability.
type Request struct {
	Message string    `json:"message"`
	History []Message `json:"history"`
}

// Generator produces the assistant's next reply. Implementations are
// opaque to the orchestrator; any failure is recovered at the call site.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
