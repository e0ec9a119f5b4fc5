// Package gateway is the client to the external model-gateway sidecar
// that proxies LLM calls (out of scope per spec.md §1, specified here
// only at its interface to the core).
package gateway

import "context"

// Message is one turn of a chat-shaped completion request, mirroring the
// Anthropic Messages / OpenAI chat-completions shape that the teacher's
// ai.AIClient wraps.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request is a structured-completion request: the caller supplies a
// system prompt and messages and asks for a JSON object back.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the gateway's reply plus usage for cost/latency logging.
type Response struct {
	Content      string
	PromptTokens int
	CompletionTokens int
	Latency      int64 // milliseconds
}

// Client is the core's only dependency on the model gateway. The
// production implementation, AnthropicClient, speaks to an
// Anthropic-shaped HTTP endpoint; tests use a fake.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
