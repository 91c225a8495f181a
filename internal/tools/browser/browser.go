// Package browser drives the user's browser through the connected
// extension. Every action goes through the rendezvous layer: the tool
// blocks until the extension reports a result or the action times out.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coverbridge/coverbridge/internal/agent"
	"github.com/coverbridge/coverbridge/internal/rendezvous"
)

// Approver asks the user to approve a sensitive action before it is
// dispatched. The bridge implements this over the action_request
// envelope.
type Approver interface {
	RequestApproval(ctx context.Context, action string, summary string) (bool, error)
}

// Config holds browser tool settings.
type Config struct {
	ActionTimeout   time.Duration
	ApprovalTimeout time.Duration
}

// Tool submits browser actions and waits for their results.
type Tool struct {
	rdv      *rendezvous.Rendezvous
	approver Approver
	config   Config
}

// NewTool creates the browser tool. approver may be nil, in which
// case sensitive actions run without confirmation.
func NewTool(rdv *rendezvous.Rendezvous, approver Approver, cfg Config) *Tool {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 120 * time.Second
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = 300 * time.Second
	}
	return &Tool{rdv: rdv, approver: approver, config: cfg}
}

func (t *Tool) Name() string {
	return "browser"
}

func (t *Tool) Description() string {
	return "Control the user's browser: navigate, click, fill forms, read page state, and take screenshots. Form submission asks the user for confirmation first."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["navigate", "click", "fill_form_field", "get_page_state", "screenshot", "wait", "submit_form"],
				"description": "The browser action to perform"
			},
			"url": {
				"type": "string",
				"description": "Target URL (required for navigate)"
			},
			"selector": {
				"type": "string",
				"description": "CSS selector (required for click, fill_form_field, submit_form)"
			},
			"value": {
				"type": "string",
				"description": "Value to enter (required for fill_form_field)"
			},
			"seconds": {
				"type": "number",
				"description": "Seconds to wait (required for wait, max 30)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action   string  `json:"action"`
		URL      string  `json:"url"`
		Selector string  `json:"selector"`
		Value    string  `json:"value"`
		Seconds  float64 `json:"seconds"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "navigate":
		if p.URL == "" {
			return errResult("Error: url is required for navigate"), nil
		}
		if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
			return errResult("Error: url must be http or https"), nil
		}
		return t.submit(ctx, "navigate", map[string]any{"url": p.URL})

	case "click":
		if p.Selector == "" {
			return errResult("Error: selector is required for click"), nil
		}
		return t.submit(ctx, "click", map[string]any{"selector": p.Selector})

	case "fill_form_field":
		if p.Selector == "" {
			return errResult("Error: selector is required for fill_form_field"), nil
		}
		if p.Value == "" {
			return errResult("Error: value is required for fill_form_field"), nil
		}
		return t.submit(ctx, "fill_form_field", map[string]any{"selector": p.Selector, "value": p.Value})

	case "get_page_state":
		return t.submit(ctx, "get_page_state", map[string]any{})

	case "screenshot":
		return t.submit(ctx, "screenshot", map[string]any{})

	case "wait":
		if p.Seconds <= 0 {
			return errResult("Error: seconds is required for wait"), nil
		}
		if p.Seconds > 30 {
			p.Seconds = 30
		}
		return t.submit(ctx, "wait", map[string]any{"seconds": p.Seconds})

	case "submit_form":
		if p.Selector == "" {
			return errResult("Error: selector is required for submit_form"), nil
		}
		if t.approver != nil {
			approved, err := t.approver.RequestApproval(ctx, "submit_form",
				fmt.Sprintf("Submit the form matching %q?", p.Selector))
			if err != nil {
				return errResult(fmt.Sprintf("Approval failed: %v", err)), nil
			}
			if !approved {
				return errResult("The user declined the form submission."), nil
			}
		}
		return t.submit(ctx, "submit_form", map[string]any{"selector": p.Selector})

	default:
		return errResult(fmt.Sprintf("unknown action: %s", p.Action)), nil
	}
}

func (t *Tool) submit(ctx context.Context, kind string, params map[string]any) (*agent.ToolResult, error) {
	result, err := t.rdv.Submit(ctx, kind, params, t.config.ActionTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return errResult(fmt.Sprintf("Browser action %s failed: %v", kind, err)), nil
	}
	return formatResult(kind, params, result), nil
}

func formatResult(kind string, params, result map[string]any) *agent.ToolResult {
	success, _ := result["success"].(bool)
	if !success {
		msg, _ := result["error"].(string)
		if msg == "" {
			msg = "the extension reported a failure"
		}
		return errResult(fmt.Sprintf("Browser action %s failed: %s", kind, msg))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Browser action %s succeeded.", kind)
	if summary := describeParams(kind, params); summary != "" {
		fmt.Fprintf(&b, " %s", summary)
	}
	for _, key := range []string{"url", "title", "text", "state", "message"} {
		if v, ok := result[key].(string); ok && v != "" {
			fmt.Fprintf(&b, "\n%s: %s", key, v)
		}
	}
	return okResult(b.String())
}

// describeParams summarizes what was done. Values entered into
// credential-looking fields are never echoed back.
func describeParams(kind string, params map[string]any) string {
	switch kind {
	case "navigate":
		url, _ := params["url"].(string)
		return fmt.Sprintf("Navigated to %s.", url)
	case "click":
		selector, _ := params["selector"].(string)
		return fmt.Sprintf("Clicked %q.", selector)
	case "fill_form_field":
		selector, _ := params["selector"].(string)
		value, _ := params["value"].(string)
		if isSensitiveField(selector) {
			value = "********"
		}
		return fmt.Sprintf("Entered %q into %q.", value, selector)
	case "submit_form":
		selector, _ := params["selector"].(string)
		return fmt.Sprintf("Submitted the form matching %q.", selector)
	default:
		return ""
	}
}

func isSensitiveField(selector string) bool {
	s := strings.ToLower(selector)
	for _, marker := range []string{"password", "passwd", "secret", "token", "api_key", "apikey", "ssn"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func okResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content}
}

func errResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: true}
}
