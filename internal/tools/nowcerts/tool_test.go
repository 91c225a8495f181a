package nowcerts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, tool *Tool, params string) (string, bool) {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	return res.Content, res.IsError
}

func TestFindInsured(t *testing.T) {
	tool := NewTool(NewClient(Config{}))

	content, isErr := run(t, tool, `{"action":"find_insured","name":"acme"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if !strings.Contains(content, "Acme Trucking LLC") {
		t.Errorf("search missed insured: %s", content)
	}
	if !strings.Contains(content, "ins_acme") {
		t.Errorf("result missing insured id: %s", content)
	}
}

func TestFindInsuredMissingName(t *testing.T) {
	tool := NewTool(NewClient(Config{}))

	content, isErr := run(t, tool, `{"action":"find_insured"}`)
	if !isErr {
		t.Fatal("expected error result")
	}
	if !strings.Contains(content, "name is required") {
		t.Errorf("unexpected message: %s", content)
	}
}

func TestGetPolicies(t *testing.T) {
	tool := NewTool(NewClient(Config{}))

	content, isErr := run(t, tool, `{"action":"get_policies","insured_id":"ins_acme"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if !strings.Contains(content, "Commercial Auto Liability") {
		t.Errorf("policy listing missing line: %s", content)
	}
	if !strings.Contains(content, "Motor Truck Cargo") {
		t.Errorf("policy listing missing line: %s", content)
	}
	if strings.Contains(content, "General Liability") {
		t.Errorf("policy listing leaked another insured: %s", content)
	}
}

func TestGetPolicyDetails(t *testing.T) {
	tool := NewTool(NewClient(Config{}))

	content, isErr := run(t, tool, `{"action":"get_policy_details","policy_id":"pol_acme_al"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if !strings.Contains(content, "Progressive Commercial") {
		t.Errorf("details missing carrier: %s", content)
	}
	if !strings.Contains(content, "$84000.00") {
		t.Errorf("details missing premium: %s", content)
	}
}

func TestGetPolicyDetailsNotFound(t *testing.T) {
	tool := NewTool(NewClient(Config{}))

	_, isErr := run(t, tool, `{"action":"get_policy_details","policy_id":"pol_nope"}`)
	if !isErr {
		t.Fatal("expected error result for unknown policy")
	}
}

func TestCreateProspect(t *testing.T) {
	client := NewClient(Config{})
	tool := NewTool(client)

	content, isErr := run(t, tool, `{"action":"create_prospect","commercial_name":"Sunset Logistics Corp","contact_first_name":"Dana","contact_last_name":"Reyes"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if !strings.Contains(content, "Created prospect Sunset Logistics Corp") {
		t.Errorf("unexpected summary: %s", content)
	}

	insureds, err := client.FindInsured(context.Background(), "sunset")
	if err != nil {
		t.Fatalf("FindInsured failed: %v", err)
	}
	if len(insureds) != 1 || insureds[0].Type != "Prospect" {
		t.Errorf("prospect not persisted: %+v", insureds)
	}
}

func TestExpiringPolicies(t *testing.T) {
	client := NewClient(Config{})

	policies, err := client.ExpiringPolicies(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("ExpiringPolicies failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("expiring = %d, want 1", len(policies))
	}
	if policies[0].ID != "pol_acme_al" {
		t.Errorf("expiring policy = %s, want pol_acme_al", policies[0].ID)
	}
}
