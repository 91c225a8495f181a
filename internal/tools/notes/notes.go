// Package notes gives the agent a per-session scratchpad.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Note is one scratchpad entry.
type Note struct {
	Text      string
	CreatedAt time.Time
}

// Pad is an in-memory scratchpad. Each connection gets its own.
type Pad struct {
	mu    sync.Mutex
	notes []Note
}

// NewPad creates an empty scratchpad.
func NewPad() *Pad {
	return &Pad{}
}

// Take appends a note.
func (p *Pad) Take(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, Note{Text: text, CreatedAt: time.Now()})
}

// List returns all notes in order.
func (p *Pad) List() []Note {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Note(nil), p.notes...)
}

// Clear removes all notes and reports how many were dropped.
func (p *Pad) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.notes)
	p.notes = nil
	return n
}

// Tool exposes the scratchpad to the agent.
type Tool struct {
	pad *Pad
}

// NewTool creates the scratchpad tool.
func NewTool(pad *Pad) *Tool {
	return &Tool{pad: pad}
}

func (t *Tool) Name() string {
	return "notes"
}

func (t *Tool) Description() string {
	return "Keep short working notes during the conversation. Notes are per session and are discarded when it ends."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["take_note", "list_notes", "clear_notes"],
				"description": "The scratchpad operation to perform"
			},
			"text": {
				"type": "string",
				"description": "Note text (required for take_note)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action string `json:"action"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}, nil
	}

	switch p.Action {
	case "take_note":
		if strings.TrimSpace(p.Text) == "" {
			return &agent.ToolResult{Content: "Error: text is required for take_note", IsError: true}, nil
		}
		t.pad.Take(p.Text)
		return &agent.ToolResult{Content: "Noted."}, nil

	case "list_notes":
		notes := t.pad.List()
		if len(notes) == 0 {
			return &agent.ToolResult{Content: "No notes yet."}, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d note(s):\n", len(notes))
		for i, n := range notes {
			fmt.Fprintf(&b, "%d. %s\n", i+1, n.Text)
		}
		return &agent.ToolResult{Content: b.String()}, nil

	case "clear_notes":
		n := t.pad.Clear()
		return &agent.ToolResult{Content: fmt.Sprintf("Cleared %d note(s).", n)}, nil

	default:
		return &agent.ToolResult{Content: fmt.Sprintf("unknown action: %s", p.Action), IsError: true}, nil
	}
}
