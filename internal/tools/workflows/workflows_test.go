package workflows

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coverbridge/coverbridge/internal/tools/closecrm"
	"github.com/coverbridge/coverbridge/internal/tools/fmcsa"
	"github.com/coverbridge/coverbridge/internal/tools/nowcerts"
)

func newTestRunner() *Runner {
	return NewRunner(
		fmcsa.NewClient("", ""),
		closecrm.NewClient("", ""),
		nowcerts.NewClient(nowcerts.Config{}),
	)
}

func TestCarrierSnapshot(t *testing.T) {
	runner := newTestRunner()

	summary, err := runner.CarrierSnapshot(context.Background(), "1234567")
	if err != nil {
		t.Fatalf("CarrierSnapshot failed: %v", err)
	}
	if !strings.Contains(summary, "ACME TRUCKING LLC") {
		t.Errorf("snapshot missing registry record: %s", summary)
	}
	if !strings.Contains(summary, "lead_acme") {
		t.Errorf("snapshot missing CRM lead: %s", summary)
	}
	if !strings.Contains(summary, "Commercial Auto Liability") {
		t.Errorf("snapshot missing AMS policy: %s", summary)
	}
}

func TestCarrierSnapshotUnknownDOT(t *testing.T) {
	runner := newTestRunner()

	if _, err := runner.CarrierSnapshot(context.Background(), "0000000"); err == nil {
		t.Fatal("expected error for unknown DOT")
	}
}

func TestNewProspect(t *testing.T) {
	crm := closecrm.NewClient("", "")
	ams := nowcerts.NewClient(nowcerts.Config{})
	runner := NewRunner(fmcsa.NewClient("", ""), crm, ams)

	summary, err := runner.NewProspect(context.Background(), NewProspectInput{
		DOTNumber:    "7654321",
		ContactName:  "Sam Whitfield",
		ContactPhone: "+18285550177",
	})
	if err != nil {
		t.Fatalf("NewProspect failed: %v", err)
	}
	if !strings.Contains(summary, "BLUE RIDGE HAULERS INC") {
		t.Errorf("summary missing carrier: %s", summary)
	}

	leads, err := crm.SearchLeads(context.Background(), "BLUE RIDGE HAULERS")
	if err != nil {
		t.Fatalf("SearchLeads failed: %v", err)
	}
	if len(leads) == 0 {
		t.Error("CRM lead not created")
	}
	insureds, err := ams.FindInsured(context.Background(), "BLUE RIDGE HAULERS")
	if err != nil {
		t.Fatalf("FindInsured failed: %v", err)
	}
	found := false
	for _, ins := range insureds {
		if ins.Type == "Prospect" {
			found = true
		}
	}
	if !found {
		t.Error("AMS prospect not created")
	}
}

func TestNewProspectRejectsInactiveCarrier(t *testing.T) {
	runner := newTestRunner()

	_, err := runner.NewProspect(context.Background(), NewProspectInput{DOTNumber: "5550123"})
	if err == nil {
		t.Fatal("expected error for inactive carrier")
	}
	if !strings.Contains(err.Error(), "INACTIVE") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRenewalCheck(t *testing.T) {
	runner := newTestRunner()

	summary, err := runner.RenewalCheck(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("RenewalCheck failed: %v", err)
	}
	if !strings.Contains(summary, "CA-2025-88311") {
		t.Errorf("renewal check missing expiring policy: %s", summary)
	}

	summary, err = runner.RenewalCheck(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("RenewalCheck failed: %v", err)
	}
	if !strings.Contains(summary, "No policies expire") {
		t.Errorf("short window should be empty: %s", summary)
	}
}

func TestToolRouting(t *testing.T) {
	tool := NewTool(newTestRunner(), 30*24*time.Hour)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"renewal_check"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content)
	}
	if !strings.Contains(res.Content, "30 days") {
		t.Errorf("default window not applied: %s", res.Content)
	}

	res, err = tool.Execute(context.Background(), json.RawMessage(`{"action":"carrier_snapshot"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "dot_number is required") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler(newTestRunner(), "not a cron spec", 0, nil); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
