// Package agent defines the conversation loop, the LLM provider
// abstraction, and the tool registry that together run one assistant
// turn: stream model output, execute requested tools, and feed results
// back until the model produces a final reply.
package agent

import (
	"context"
	"encoding/json"
)

// LLMProvider is the interface implemented by LLM backends.
type LLMProvider interface {
	// Complete sends a completion request and returns a channel of
	// streaming response chunks. The channel is closed when the stream
	// completes or fails.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider identifier (e.g. "anthropic").
	Name() string

	// SupportsTools indicates whether the provider supports tool calling.
	SupportsTools() bool
}

// Tool is the interface implemented by callable tools.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description returns a natural-language description for the LLM.
	Description() string

	// Schema returns the JSON schema for the tool parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given parameters.
	// Validation failures are reported through ToolResult.IsError with
	// a descriptive string, not through the error return.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of a tool execution. Content is the
// human-readable summary relayed to the model and ultimately the user,
// so it must never contain credential values.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultMessage carries an executed tool result back to the model.
type ToolResultMessage struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// CompletionMessage is a single message in a conversation.
type CompletionMessage struct {
	// Role is "user", "assistant", or "system".
	Role string `json:"role"`

	Content string `json:"content,omitempty"`

	// ToolCalls are set on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResults are set on user messages carrying tool outcomes.
	ToolResults []ToolResultMessage `json:"tool_results,omitempty"`
}

// CompletionRequest is a request for a model completion.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	MaxTokens int
	Tools     []Tool
}

// CompletionChunk is a single streamed piece of a model response.
type CompletionChunk struct {
	// Text is a partial response text delta.
	Text string

	// ToolCall is set when the model requests a tool execution. The
	// input JSON is complete by the time the chunk is emitted.
	ToolCall *ToolCall

	// Done marks the end of a successful stream, with token counts.
	Done         bool
	InputTokens  int
	OutputTokens int

	// Error reports a stream failure; the channel closes after it.
	Error error
}

// Model describes an available model.
type Model struct {
	ID          string
	Name        string
	ContextSize int
}
