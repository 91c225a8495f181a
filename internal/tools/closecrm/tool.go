package closecrm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Tool exposes the CRM to the agent.
type Tool struct {
	client *Client
}

// NewTool creates the CRM tool.
func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Name() string {
	return "crm"
}

func (t *Tool) Description() string {
	return "Manage leads, notes, opportunities, and activity logs in the agency CRM. Search for existing leads before creating new ones."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["search_leads", "get_lead", "create_lead", "add_note", "list_opportunities", "log_activity"],
				"description": "The CRM operation to perform"
			},
			"query": {
				"type": "string",
				"description": "Search keywords (required for search_leads)"
			},
			"lead_id": {
				"type": "string",
				"description": "Lead id (required for get_lead, add_note, log_activity)"
			},
			"name": {
				"type": "string",
				"description": "Company name (required for create_lead)"
			},
			"description": {
				"type": "string",
				"description": "Lead description for create_lead"
			},
			"contact_name": {
				"type": "string",
				"description": "Primary contact name for create_lead"
			},
			"contact_phone": {
				"type": "string",
				"description": "Primary contact phone for create_lead"
			},
			"contact_email": {
				"type": "string",
				"description": "Primary contact email for create_lead"
			},
			"note": {
				"type": "string",
				"description": "Note text (required for add_note)"
			},
			"activity_type": {
				"type": "string",
				"enum": ["call", "email"],
				"description": "Activity type (required for log_activity)"
			},
			"summary": {
				"type": "string",
				"description": "Activity summary (required for log_activity)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action       string `json:"action"`
		Query        string `json:"query"`
		LeadID       string `json:"lead_id"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		ContactName  string `json:"contact_name"`
		ContactPhone string `json:"contact_phone"`
		ContactEmail string `json:"contact_email"`
		Note         string `json:"note"`
		ActivityType string `json:"activity_type"`
		Summary      string `json:"summary"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "search_leads":
		if strings.TrimSpace(p.Query) == "" {
			return errResult("Error: query is required for search_leads"), nil
		}
		leads, err := t.client.SearchLeads(ctx, p.Query)
		if err != nil {
			return errResult(fmt.Sprintf("Lead search failed: %v", err)), nil
		}
		if len(leads) == 0 {
			return okResult(fmt.Sprintf("No leads found matching %q.", p.Query)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d lead(s) matching %q:\n", len(leads), p.Query)
		for _, l := range leads {
			fmt.Fprintf(&b, "- %s [%s] (id: %s)\n", l.Name, l.StatusLabel, l.ID)
		}
		return okResult(b.String()), nil

	case "get_lead":
		if p.LeadID == "" {
			return errResult("Error: lead_id is required for get_lead"), nil
		}
		lead, err := t.client.GetLead(ctx, p.LeadID)
		if err != nil {
			return errResult(fmt.Sprintf("Lead lookup failed: %v", err)), nil
		}
		return okResult(formatLead(lead)), nil

	case "create_lead":
		if strings.TrimSpace(p.Name) == "" {
			return errResult("Error: name is required for create_lead"), nil
		}
		lead, err := t.client.CreateLead(ctx, p.Name, p.Description, p.ContactName, p.ContactPhone, p.ContactEmail)
		if err != nil {
			return errResult(fmt.Sprintf("Lead creation failed: %v", err)), nil
		}
		return okResult(fmt.Sprintf("Created lead %s (id: %s).", lead.Name, lead.ID)), nil

	case "add_note":
		if p.LeadID == "" {
			return errResult("Error: lead_id is required for add_note"), nil
		}
		if strings.TrimSpace(p.Note) == "" {
			return errResult("Error: note is required for add_note"), nil
		}
		if err := t.client.AddNote(ctx, p.LeadID, p.Note); err != nil {
			return errResult(fmt.Sprintf("Adding note failed: %v", err)), nil
		}
		return okResult("Note added to lead " + p.LeadID + "."), nil

	case "list_opportunities":
		opps, err := t.client.ListOpportunities(ctx, p.LeadID)
		if err != nil {
			return errResult(fmt.Sprintf("Listing opportunities failed: %v", err)), nil
		}
		if len(opps) == 0 {
			return okResult("No opportunities found."), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d opportunit(ies):\n", len(opps))
		for _, o := range opps {
			fmt.Fprintf(&b, "- %s: $%.0f/%s [%s] %s\n", o.LeadName, o.Value, o.ValuePeriod, o.StatusLabel, o.Note)
		}
		return okResult(b.String()), nil

	case "log_activity":
		if p.LeadID == "" {
			return errResult("Error: lead_id is required for log_activity"), nil
		}
		if p.ActivityType == "" {
			return errResult("Error: activity_type is required for log_activity"), nil
		}
		if strings.TrimSpace(p.Summary) == "" {
			return errResult("Error: summary is required for log_activity"), nil
		}
		if err := t.client.LogActivity(ctx, p.LeadID, p.ActivityType, p.Summary); err != nil {
			return errResult(fmt.Sprintf("Logging activity failed: %v", err)), nil
		}
		return okResult(fmt.Sprintf("Logged %s activity on lead %s.", p.ActivityType, p.LeadID)), nil

	default:
		return errResult(fmt.Sprintf("unknown action: %s", p.Action)), nil
	}
}

func formatLead(l *Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] (id: %s)", l.Name, l.StatusLabel, l.ID)
	if l.Description != "" {
		fmt.Fprintf(&b, "\n%s", l.Description)
	}
	for _, c := range l.Contacts {
		fmt.Fprintf(&b, "\nContact: %s", c.Name)
		if c.Title != "" {
			fmt.Fprintf(&b, " (%s)", c.Title)
		}
		for _, ph := range c.Phones {
			fmt.Fprintf(&b, " %s", ph.Phone)
		}
		for _, em := range c.Emails {
			fmt.Fprintf(&b, " %s", em.Email)
		}
	}
	return b.String()
}

func okResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content}
}

func errResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: true}
}
