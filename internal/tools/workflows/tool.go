package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Tool exposes the composite workflows to the agent.
type Tool struct {
	runner        *Runner
	renewalWindow time.Duration
}

// NewTool creates the workflow tool. renewalWindow is the default
// horizon for renewal_check.
func NewTool(runner *Runner, renewalWindow time.Duration) *Tool {
	if renewalWindow <= 0 {
		renewalWindow = 30 * 24 * time.Hour
	}
	return &Tool{runner: runner, renewalWindow: renewalWindow}
}

func (t *Tool) Name() string {
	return "workflows"
}

func (t *Tool) Description() string {
	return "Run multi-step agency routines: carrier_snapshot briefs a carrier across registry, CRM, and AMS; new_prospect verifies a carrier and creates intake records; renewal_check lists policies expiring soon."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["carrier_snapshot", "new_prospect", "renewal_check"],
				"description": "The workflow to run"
			},
			"dot_number": {
				"type": "string",
				"description": "DOT number (required for carrier_snapshot and new_prospect)"
			},
			"contact_name": {
				"type": "string",
				"description": "Contact name for new_prospect"
			},
			"contact_phone": {
				"type": "string",
				"description": "Contact phone for new_prospect"
			},
			"contact_email": {
				"type": "string",
				"description": "Contact email for new_prospect"
			},
			"within_days": {
				"type": "integer",
				"description": "Horizon in days for renewal_check (defaults to the configured window)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action       string `json:"action"`
		DOTNumber    string `json:"dot_number"`
		ContactName  string `json:"contact_name"`
		ContactPhone string `json:"contact_phone"`
		ContactEmail string `json:"contact_email"`
		WithinDays   int    `json:"within_days"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "carrier_snapshot":
		if p.DOTNumber == "" {
			return errResult("Error: dot_number is required for carrier_snapshot"), nil
		}
		summary, err := t.runner.CarrierSnapshot(ctx, p.DOTNumber)
		if err != nil {
			return errResult(fmt.Sprintf("Snapshot failed: %v", err)), nil
		}
		return okResult(summary), nil

	case "new_prospect":
		if p.DOTNumber == "" {
			return errResult("Error: dot_number is required for new_prospect"), nil
		}
		summary, err := t.runner.NewProspect(ctx, NewProspectInput{
			DOTNumber:    p.DOTNumber,
			ContactName:  p.ContactName,
			ContactPhone: p.ContactPhone,
			ContactEmail: p.ContactEmail,
		})
		if err != nil {
			return errResult(fmt.Sprintf("Prospect intake failed: %v", err)), nil
		}
		return okResult(summary), nil

	case "renewal_check":
		window := t.renewalWindow
		if p.WithinDays > 0 {
			window = time.Duration(p.WithinDays) * 24 * time.Hour
		}
		summary, err := t.runner.RenewalCheck(ctx, window)
		if err != nil {
			return errResult(fmt.Sprintf("Renewal check failed: %v", err)), nil
		}
		return okResult(summary), nil

	default:
		return errResult(fmt.Sprintf("unknown action: %s", p.Action)), nil
	}
}

func okResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content}
}

func errResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: true}
}
