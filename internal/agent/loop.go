package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coverbridge/coverbridge/internal/observability"
)

// LoopConfig configures the conversation loop.
type LoopConfig struct {
	// MaxIterations bounds tool-use round trips per turn. Default 10.
	MaxIterations int

	// MaxTokens bounds each completion. Default 4096.
	MaxTokens int

	// Model overrides the provider default when non-empty.
	Model string

	// System is the system prompt for every completion.
	System string
}

// DefaultLoopConfig returns the default loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 10,
		MaxTokens:     4096,
	}
}

// ResponseChunk is a streamed piece of a conversation turn, relayed by
// the bridge to the extension as response_chunk envelopes.
type ResponseChunk struct {
	// Text is a partial reply delta.
	Text string

	// ToolName is set when a tool execution starts.
	ToolName string
}

// LoopError describes a failure inside the conversation loop.
type LoopError struct {
	Phase     string
	Iteration int
	Cause     error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("conversation loop failed in %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
}

func (e *LoopError) Unwrap() error {
	return e.Cause
}

// Loop runs one conversation turn: stream a completion, execute any
// requested tools, feed the results back, and repeat until the model
// replies without tool calls or the iteration bound is hit.
type Loop struct {
	provider LLMProvider
	tools    *ToolRegistry
	config   LoopConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewLoop creates a conversation loop.
func NewLoop(provider LLMProvider, tools *ToolRegistry, config LoopConfig, logger *observability.Logger, metrics *observability.Metrics) *Loop {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}
	return &Loop{
		provider: provider,
		tools:    tools,
		config:   config,
		logger:   logger.WithFields("component", "agent.loop"),
		metrics:  metrics,
	}
}

// Run executes a turn over the given history. Text deltas and tool
// events stream to chunks as they happen; the updated history and the
// final reply text are returned when the turn completes.
//
// chunks must not be closed by Run's caller until Run returns. A nil
// chunks channel disables streaming.
func (l *Loop) Run(ctx context.Context, messages []CompletionMessage, chunks chan<- *ResponseChunk) ([]CompletionMessage, string, error) {
	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		req := &CompletionRequest{
			Model:     l.config.Model,
			System:    l.config.System,
			Messages:  messages,
			MaxTokens: l.config.MaxTokens,
		}
		if l.provider.SupportsTools() && l.tools != nil {
			req.Tools = l.tools.AsLLMTools()
		}

		start := time.Now()
		stream, err := l.provider.Complete(ctx, req)
		if err != nil {
			return messages, "", &LoopError{Phase: "completion", Iteration: iteration, Cause: err}
		}

		var text strings.Builder
		var toolCalls []ToolCall
		var inputTokens, outputTokens int

		for chunk := range stream {
			if chunk.Error != nil {
				l.recordLLM("error", start, 0, 0)
				return messages, "", &LoopError{Phase: "stream", Iteration: iteration, Cause: chunk.Error}
			}
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
				l.emit(chunks, &ResponseChunk{Text: chunk.Text})
			}
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
			if chunk.Done {
				inputTokens = chunk.InputTokens
				outputTokens = chunk.OutputTokens
			}
		}
		l.recordLLM("success", start, inputTokens, outputTokens)

		messages = append(messages, CompletionMessage{
			Role:      "assistant",
			Content:   text.String(),
			ToolCalls: toolCalls,
		})

		if len(toolCalls) == 0 {
			return messages, text.String(), nil
		}

		results := make([]ToolResultMessage, 0, len(toolCalls))
		for _, tc := range toolCalls {
			l.emit(chunks, &ResponseChunk{ToolName: tc.Name})
			l.logger.Info(ctx, "executing tool", "tool", tc.Name, "iteration", iteration)

			toolStart := time.Now()
			res, err := l.tools.Execute(ctx, tc.Name, tc.Input)
			if err != nil {
				res = &ToolResult{Content: fmt.Sprintf("tool execution failed: %v", err), IsError: true}
			}
			status := "success"
			if res.IsError {
				status = "error"
			}
			if l.metrics != nil {
				l.metrics.RecordToolExecution(tc.Name, status, time.Since(toolStart).Seconds())
			}

			results = append(results, ToolResultMessage{
				ToolCallID: tc.ID,
				Content:    res.Content,
				IsError:    res.IsError,
			})
		}

		messages = append(messages, CompletionMessage{
			Role:        "user",
			ToolResults: results,
		})
	}

	return messages, "", &LoopError{
		Phase:     "iteration_limit",
		Iteration: l.config.MaxIterations,
		Cause:     fmt.Errorf("turn did not converge within %d iterations", l.config.MaxIterations),
	}
}

func (l *Loop) emit(chunks chan<- *ResponseChunk, chunk *ResponseChunk) {
	if chunks != nil {
		chunks <- chunk
	}
}

func (l *Loop) recordLLM(status string, start time.Time, inputTokens, outputTokens int) {
	if l.metrics == nil {
		return
	}
	model := l.config.Model
	if model == "" {
		model = "default"
	}
	l.metrics.RecordLLMRequest(l.provider.Name(), model, status, time.Since(start).Seconds(), inputTokens, outputTokens)
}
