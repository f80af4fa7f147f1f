// Package llms defines the provider-agnostic wire types the orchestration
// core exchanges with an LLM provider adapter, and a minimal Anthropic-backed
// adapter implementing them. The adapter itself is an external collaborator;
// the core only depends on the types and the Provider interface below.
package llms

import "context"

// ToolCall is the normalized shape of a model-requested function call:
// {id, type, function:{name, arguments}}.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object string, always a string at the wire boundary
}

// ToolDefinition is the LLM-visible shape of a registered tool.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Message is the provider-agnostic chat message exchanged with the adapter.
// Content is either a plain string or a slice of content parts (text/image);
// both are represented as `interface{}` here and normalized by callers.
type Message struct {
	Role       string      `json:"role"` // system | user | assistant | tool
	Content    interface{} `json:"content"`
	Name       string      `json:"name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// Usage mirrors the provider usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest is the single external call the Provider interface
// exposes: complete({model, messages, temperature, tools?, stream?}).
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	Tools       []ToolDefinition
}

// CompletionResponse is the non-streaming result of Complete.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// StreamChunk is one delta emitted by CompleteStreaming. A chunk carries at
// most one kind of payload; the Streaming Reassembler folds a
// sequence of these into a CompletionResponse.
type StreamChunk struct {
	ContentDelta   string
	ToolCallIndex  int // which tool call this chunk belongs to, -1 if none
	ToolCallID     string
	ToolCallName   string
	ArgumentsDelta string
	Usage          *Usage // set only on the terminal chunk, if at all
	Err            error
}

// Provider is the narrow external interface the Agent Iteration Loop calls
// through. Concrete providers (Anthropic, a test mock, ...) are external
// collaborators; the core never depends on their wire formats.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	CompleteStreaming(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}
