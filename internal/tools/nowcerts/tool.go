package nowcerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Tool exposes the agency management system to the agent.
type Tool struct {
	client *Client
}

// NewTool creates the AMS tool.
func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Name() string {
	return "agency_management"
}

func (t *Tool) Description() string {
	return "Query the agency management system for insureds and policies, and create prospect records. Use find_insured first to get an insured id."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["find_insured", "get_policies", "get_policy_details", "create_prospect"],
				"description": "The AMS operation to perform"
			},
			"name": {
				"type": "string",
				"description": "Insured or contact name (required for find_insured)"
			},
			"insured_id": {
				"type": "string",
				"description": "Insured id (required for get_policies)"
			},
			"policy_id": {
				"type": "string",
				"description": "Policy id (required for get_policy_details)"
			},
			"commercial_name": {
				"type": "string",
				"description": "Company name (required for create_prospect)"
			},
			"contact_first_name": {
				"type": "string",
				"description": "Contact first name for create_prospect"
			},
			"contact_last_name": {
				"type": "string",
				"description": "Contact last name for create_prospect"
			},
			"email": {
				"type": "string",
				"description": "Contact email for create_prospect"
			},
			"phone": {
				"type": "string",
				"description": "Contact phone for create_prospect"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action           string `json:"action"`
		Name             string `json:"name"`
		InsuredID        string `json:"insured_id"`
		PolicyID         string `json:"policy_id"`
		CommercialName   string `json:"commercial_name"`
		ContactFirstName string `json:"contact_first_name"`
		ContactLastName  string `json:"contact_last_name"`
		Email            string `json:"email"`
		Phone            string `json:"phone"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "find_insured":
		if strings.TrimSpace(p.Name) == "" {
			return errResult("Error: name is required for find_insured"), nil
		}
		insureds, err := t.client.FindInsured(ctx, p.Name)
		if err != nil {
			return errResult(fmt.Sprintf("Insured search failed: %v", err)), nil
		}
		if len(insureds) == 0 {
			return okResult(fmt.Sprintf("No insureds found matching %q.", p.Name)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d insured(s) matching %q:\n", len(insureds), p.Name)
		for _, ins := range insureds {
			fmt.Fprintf(&b, "- %s [%s] (id: %s)", ins.CommercialName, ins.Type, ins.ID)
			if ins.City != "" {
				fmt.Fprintf(&b, " %s, %s", ins.City, ins.State)
			}
			b.WriteString("\n")
		}
		return okResult(b.String()), nil

	case "get_policies":
		if p.InsuredID == "" {
			return errResult("Error: insured_id is required for get_policies"), nil
		}
		policies, err := t.client.GetPolicies(ctx, p.InsuredID)
		if err != nil {
			return errResult(fmt.Sprintf("Policy listing failed: %v", err)), nil
		}
		if len(policies) == 0 {
			return okResult("No policies found for insured " + p.InsuredID + "."), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d polic(ies) for insured %s:\n", len(policies), p.InsuredID)
		for _, pol := range policies {
			fmt.Fprintf(&b, "- %s %s with %s, expires %s [%s] (id: %s)\n",
				pol.Number, pol.LineOfBusiness, pol.Carrier, pol.ExpirationDate, pol.Status, pol.ID)
		}
		return okResult(b.String()), nil

	case "get_policy_details":
		if p.PolicyID == "" {
			return errResult("Error: policy_id is required for get_policy_details"), nil
		}
		pol, err := t.client.GetPolicyDetails(ctx, p.PolicyID)
		if err != nil {
			return errResult(fmt.Sprintf("Policy lookup failed: %v", err)), nil
		}
		return okResult(formatPolicy(pol)), nil

	case "create_prospect":
		if strings.TrimSpace(p.CommercialName) == "" {
			return errResult("Error: commercial_name is required for create_prospect"), nil
		}
		ins, err := t.client.CreateProspect(ctx, p.CommercialName, p.ContactFirstName, p.ContactLastName, p.Email, p.Phone)
		if err != nil {
			return errResult(fmt.Sprintf("Prospect creation failed: %v", err)), nil
		}
		return okResult(fmt.Sprintf("Created prospect %s (id: %s).", ins.CommercialName, ins.ID)), nil

	default:
		return errResult(fmt.Sprintf("unknown action: %s", p.Action)), nil
	}
}

func formatPolicy(p *Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy %s (%s)", p.Number, p.LineOfBusiness)
	fmt.Fprintf(&b, "\nCarrier: %s", p.Carrier)
	fmt.Fprintf(&b, "\nPremium: $%.2f", p.Premium)
	fmt.Fprintf(&b, "\nTerm: %s to %s", p.EffectiveDate, p.ExpirationDate)
	fmt.Fprintf(&b, "\nStatus: %s", p.Status)
	return b.String()
}

func okResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content}
}

func errResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: true}
}
