package fmcsa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Tool exposes the carrier registry to the agent.
type Tool struct {
	client *Client
}

// NewTool creates the carrier registry tool.
func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Name() string {
	return "carrier_registry"
}

func (t *Tool) Description() string {
	return "Look up motor carriers in the federal safety registry by DOT number, MC number, or name, and retrieve safety ratings. Use this before quoting or writing any trucking risk."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["lookup_carrier_by_dot", "lookup_carrier_by_mc", "search_carriers_by_name", "get_safety_rating"],
				"description": "The registry operation to perform"
			},
			"dot_number": {
				"type": "string",
				"description": "DOT number (required for lookup_carrier_by_dot and get_safety_rating)"
			},
			"mc_number": {
				"type": "string",
				"description": "MC docket number (required for lookup_carrier_by_mc)"
			},
			"name": {
				"type": "string",
				"description": "Carrier legal or DBA name (required for search_carriers_by_name)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action    string `json:"action"`
		DOTNumber string `json:"dot_number"`
		MCNumber  string `json:"mc_number"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "lookup_carrier_by_dot":
		if p.DOTNumber == "" {
			return errResult("Error: dot_number is required for lookup_carrier_by_dot"), nil
		}
		carrier, err := t.client.CarrierByDOT(ctx, p.DOTNumber)
		if err != nil {
			return errResult(fmt.Sprintf("Carrier lookup failed: %v", err)), nil
		}
		return okResult(formatCarrier(carrier)), nil

	case "lookup_carrier_by_mc":
		if p.MCNumber == "" {
			return errResult("Error: mc_number is required for lookup_carrier_by_mc"), nil
		}
		carrier, err := t.client.CarrierByMC(ctx, p.MCNumber)
		if err != nil {
			return errResult(fmt.Sprintf("Carrier lookup failed: %v", err)), nil
		}
		return okResult(formatCarrier(carrier)), nil

	case "search_carriers_by_name":
		if strings.TrimSpace(p.Name) == "" {
			return errResult("Error: name is required for search_carriers_by_name"), nil
		}
		carriers, err := t.client.SearchByName(ctx, p.Name)
		if err != nil {
			return errResult(fmt.Sprintf("Carrier search failed: %v", err)), nil
		}
		if len(carriers) == 0 {
			return okResult(fmt.Sprintf("No carriers found matching %q.", p.Name)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d carrier(s) matching %q:\n", len(carriers), p.Name)
		for _, c := range carriers {
			fmt.Fprintf(&b, "- %s (DOT %s, %s, %s/%s)\n", c.LegalName, c.DOTNumber, c.OperatingStatus, c.PhysicalCity, c.PhysicalState)
		}
		return okResult(b.String()), nil

	case "get_safety_rating":
		if p.DOTNumber == "" {
			return errResult("Error: dot_number is required for get_safety_rating"), nil
		}
		carrier, err := t.client.CarrierByDOT(ctx, p.DOTNumber)
		if err != nil {
			return errResult(fmt.Sprintf("Safety rating lookup failed: %v", err)), nil
		}
		rating := carrier.SafetyRating
		if rating == "" || rating == "None" {
			return okResult(fmt.Sprintf("%s (DOT %s) has no safety rating on file.", carrier.LegalName, carrier.DOTNumber)), nil
		}
		summary := fmt.Sprintf("%s (DOT %s) safety rating: %s", carrier.LegalName, carrier.DOTNumber, rating)
		if carrier.RatingDate != "" {
			summary += fmt.Sprintf(" (rated %s)", carrier.RatingDate)
		}
		return okResult(summary), nil

	default:
		return errResult(fmt.Sprintf("unknown action: %s", p.Action)), nil
	}
}

func formatCarrier(c *Carrier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", c.LegalName)
	if c.DBAName != "" {
		fmt.Fprintf(&b, " (DBA %s)", c.DBAName)
	}
	fmt.Fprintf(&b, "\nDOT: %s", c.DOTNumber)
	if c.MCNumber != "" {
		fmt.Fprintf(&b, "  MC: %s", c.MCNumber)
	}
	fmt.Fprintf(&b, "\nStatus: %s", c.OperatingStatus)
	fmt.Fprintf(&b, "\nLocation: %s, %s", c.PhysicalCity, c.PhysicalState)
	fmt.Fprintf(&b, "\nFleet: %d power units, %d drivers", c.PowerUnits, c.Drivers)
	if c.SafetyRating != "" && c.SafetyRating != "None" {
		fmt.Fprintf(&b, "\nSafety rating: %s", c.SafetyRating)
	}
	return b.String()
}

func okResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content}
}

func errResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: true}
}
