// Package llm wraps the two chat-completion providers this service calls
// behind one interface, following the teacher's eino/eino-ext chat-model
// wiring in internal/agents/graph.go.
package llm

import "context"

// Caller is the interface every analyst role calls through. Implementations
// never leak provider-specific types across this boundary.
type Caller interface {
	Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error)
}
