package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Tool exposes the knowledge base to the agent.
type Tool struct {
	store *Store
}

// NewTool creates the knowledge tool.
func NewTool(store *Store) *Tool {
	return &Tool{store: store}
}

func (t *Tool) Name() string {
	return "knowledge_base"
}

func (t *Tool) Description() string {
	return "Search and read the agency's reference library: coverage guides, carrier appetite notes, and underwriting checklists."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["search_knowledge", "list_topics", "read_topic"],
				"description": "The knowledge base operation to perform"
			},
			"query": {
				"type": "string",
				"description": "Search keywords (required for search_knowledge)"
			},
			"topic": {
				"type": "string",
				"description": "Topic name (required for read_topic)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action string `json:"action"`
		Query  string `json:"query"`
		Topic  string `json:"topic"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "search_knowledge":
		if strings.TrimSpace(p.Query) == "" {
			return errResult("Error: query is required for search_knowledge"), nil
		}
		hits := t.store.Search(p.Query)
		if len(hits) == 0 {
			return okResult(fmt.Sprintf("No knowledge base entries match %q.", p.Query)), nil
		}
		const maxHits = 20
		var b strings.Builder
		fmt.Fprintf(&b, "%d match(es) for %q:\n", len(hits), p.Query)
		for i, hit := range hits {
			if i == maxHits {
				fmt.Fprintf(&b, "... and %d more\n", len(hits)-maxHits)
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", hit.Topic, hit.Line)
		}
		return okResult(b.String()), nil

	case "list_topics":
		topics := t.store.ListTopics()
		if len(topics) == 0 {
			return okResult("The knowledge base is empty."), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d topic(s):\n", len(topics))
		for _, topic := range topics {
			fmt.Fprintf(&b, "- %s: %s\n", topic.Name, topic.Title)
		}
		return okResult(b.String()), nil

	case "read_topic":
		if strings.TrimSpace(p.Topic) == "" {
			return errResult("Error: topic is required for read_topic"), nil
		}
		topic, err := t.store.ReadTopic(p.Topic)
		if err != nil {
			return errResult(fmt.Sprintf("Reading topic failed: %v", err)), nil
		}
		return okResult(topic.Content), nil

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
