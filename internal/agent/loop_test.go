package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

// scriptedProvider replays canned chunk sequences, one per Complete call.
type scriptedProvider struct {
	responses   [][]CompletionChunk
	currentCall int32
}

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	call := int(atomic.AddInt32(&p.currentCall, 1)) - 1
	ch := make(chan *CompletionChunk, 10)

	go func() {
		defer close(ch)
		if call < len(p.responses) {
			for _, chunk := range p.responses[call] {
				select {
				case ch <- &chunk:
				case <-ctx.Done():
					ch <- &CompletionChunk{Error: ctx.Err()}
					return
				}
			}
		}
	}()

	return ch, nil
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) SupportsTools() bool { return true }

// echoTool returns its input verbatim.
type echoTool struct {
	calls int32
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echoes the input back." }
func (t *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`)
}
func (t *echoTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	atomic.AddInt32(&t.calls, 1)
	return &ToolResult{Content: "echo: " + string(params)}, nil
}

func TestDefaultLoopConfig(t *testing.T) {
	config := DefaultLoopConfig()
	if config.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", config.MaxIterations)
	}
	if config.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", config.MaxTokens)
	}
}

func TestLoopPlainReply(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{
				{Text: "Hello "},
				{Text: "agent."},
				{Done: true, InputTokens: 10, OutputTokens: 4},
			},
		},
	}
	loop := NewLoop(provider, NewToolRegistry(), DefaultLoopConfig(), nil, nil)

	chunks := make(chan *ResponseChunk, 10)
	messages, final, err := loop.Run(context.Background(), []CompletionMessage{
		{Role: "user", Content: "hi"},
	}, chunks)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if final != "Hello agent." {
		t.Errorf("final = %q, want %q", final, "Hello agent.")
	}
	if len(messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(messages))
	}
	if messages[1].Role != "assistant" {
		t.Errorf("last role = %s, want assistant", messages[1].Role)
	}

	close(chunks)
	var streamed string
	for c := range chunks {
		streamed += c.Text
	}
	if streamed != "Hello agent." {
		t.Errorf("streamed = %q, want %q", streamed, "Hello agent.")
	}
}

func TestLoopToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{
				{ToolCall: &ToolCall{ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"ping"}`)}},
				{Done: true},
			},
			{
				{Text: "done"},
				{Done: true},
			},
		},
	}
	tools := NewToolRegistry()
	tool := &echoTool{}
	tools.Register(tool)

	loop := NewLoop(provider, tools, DefaultLoopConfig(), nil, nil)
	messages, final, err := loop.Run(context.Background(), []CompletionMessage{
		{Role: "user", Content: "use the tool"},
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if final != "done" {
		t.Errorf("final = %q, want done", final)
	}
	if atomic.LoadInt32(&tool.calls) != 1 {
		t.Errorf("tool calls = %d, want 1", tool.calls)
	}

	// user, assistant(tool call), user(tool result), assistant(final)
	if len(messages) != 4 {
		t.Fatalf("history length = %d, want 4", len(messages))
	}
	if len(messages[2].ToolResults) != 1 {
		t.Fatalf("expected one tool result, got %d", len(messages[2].ToolResults))
	}
	if messages[2].ToolResults[0].ToolCallID != "t1" {
		t.Errorf("ToolCallID = %s, want t1", messages[2].ToolResults[0].ToolCallID)
	}
}

func TestLoopUnknownTool(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{
				{ToolCall: &ToolCall{ID: "t1", Name: "missing", Input: json.RawMessage(`{}`)}},
				{Done: true},
			},
			{
				{Text: "recovered"},
				{Done: true},
			},
		},
	}
	loop := NewLoop(provider, NewToolRegistry(), DefaultLoopConfig(), nil, nil)

	messages, final, err := loop.Run(context.Background(), []CompletionMessage{
		{Role: "user", Content: "call something"},
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if final != "recovered" {
		t.Errorf("final = %q, want recovered", final)
	}
	result := messages[2].ToolResults[0]
	if !result.IsError {
		t.Error("expected error result for unknown tool")
	}
	if result.Content != "tool not found: missing" {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestLoopIterationLimit(t *testing.T) {
	responses := make([][]CompletionChunk, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, []CompletionChunk{
			{ToolCall: &ToolCall{ID: fmt.Sprintf("t%d", i), Name: "echo", Input: json.RawMessage(`{}`)}},
			{Done: true},
		})
	}
	provider := &scriptedProvider{responses: responses}
	tools := NewToolRegistry()
	tools.Register(&echoTool{})

	config := DefaultLoopConfig()
	config.MaxIterations = 3
	loop := NewLoop(provider, tools, config, nil, nil)

	_, _, err := loop.Run(context.Background(), []CompletionMessage{{Role: "user", Content: "loop"}}, nil)
	var loopErr *LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("expected LoopError, got %v", err)
	}
	if loopErr.Phase != "iteration_limit" {
		t.Errorf("Phase = %s, want iteration_limit", loopErr.Phase)
	}
}

func TestLoopStreamError(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{
				{Text: "partial"},
				{Error: errors.New("boom")},
			},
		},
	}
	loop := NewLoop(provider, NewToolRegistry(), DefaultLoopConfig(), nil, nil)

	_, _, err := loop.Run(context.Background(), []CompletionMessage{{Role: "user", Content: "hi"}}, nil)
	var loopErr *LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("expected LoopError, got %v", err)
	}
	if loopErr.Phase != "stream" {
		t.Errorf("Phase = %s, want stream", loopErr.Phase)
	}
}
