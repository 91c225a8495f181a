package browser

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coverbridge/coverbridge/internal/rendezvous"
)

func newTestRendezvous() *rendezvous.Rendezvous {
	return rendezvous.New(rendezvous.Config{DefaultTimeout: time.Second})
}

// respond plays the extension side: it drains the queue and delivers
// payload for every action it sees.
func respond(ctx context.Context, rdv *rendezvous.Rendezvous, payload map[string]any) {
	go func() {
		for {
			action, err := rdv.Next(ctx)
			if err != nil {
				return
			}
			rdv.Deliver(action.ID, payload)
		}
	}()
}

func exec(t *testing.T, tool *Tool, params string) (string, bool) {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	return res.Content, res.IsError
}

func TestNavigate(t *testing.T) {
	rdv := newTestRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	respond(ctx, rdv, map[string]any{"success": true, "url": "https://mobile.fmcsa.dot.gov", "title": "SAFER"})

	tool := NewTool(rdv, nil, Config{ActionTimeout: time.Second})
	content, isErr := exec(t, tool, `{"action":"navigate","url":"https://mobile.fmcsa.dot.gov"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if !strings.Contains(content, "Navigated to https://mobile.fmcsa.dot.gov") {
		t.Errorf("unexpected summary: %s", content)
	}
	if !strings.Contains(content, "title: SAFER") {
		t.Errorf("result fields missing: %s", content)
	}
}

func TestNavigateRejectsBadScheme(t *testing.T) {
	tool := NewTool(newTestRendezvous(), nil, Config{ActionTimeout: time.Second})

	content, isErr := exec(t, tool, `{"action":"navigate","url":"file:///etc/passwd"}`)
	if !isErr {
		t.Fatal("expected error result")
	}
	if !strings.Contains(content, "must be http or https") {
		t.Errorf("unexpected message: %s", content)
	}
}

func TestActionTimeout(t *testing.T) {
	rdv := newTestRendezvous()
	tool := NewTool(rdv, nil, Config{ActionTimeout: 100 * time.Millisecond})

	content, isErr := exec(t, tool, `{"action":"click","selector":"#quote"}`)
	if !isErr {
		t.Fatal("expected error result on timeout")
	}
	if !strings.Contains(content, "click") {
		t.Errorf("timeout message missing action kind: %s", content)
	}
}

func TestExtensionFailureReported(t *testing.T) {
	rdv := newTestRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	respond(ctx, rdv, map[string]any{"success": false, "error": "element not found"})

	tool := NewTool(rdv, nil, Config{ActionTimeout: time.Second})
	content, isErr := exec(t, tool, `{"action":"click","selector":"#missing"}`)
	if !isErr {
		t.Fatal("expected error result")
	}
	if !strings.Contains(content, "element not found") {
		t.Errorf("extension error not surfaced: %s", content)
	}
}

func TestFillPasswordFieldMasksValue(t *testing.T) {
	rdv := newTestRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	respond(ctx, rdv, map[string]any{"success": true})

	tool := NewTool(rdv, nil, Config{ActionTimeout: time.Second})
	content, isErr := exec(t, tool, `{"action":"fill_form_field","selector":"#login-password","value":"hunter2"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if strings.Contains(content, "hunter2") {
		t.Errorf("credential leaked into summary: %s", content)
	}
	if !strings.Contains(content, "********") {
		t.Errorf("masked value missing: %s", content)
	}
}

func TestFillPlainFieldEchoesValue(t *testing.T) {
	rdv := newTestRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	respond(ctx, rdv, map[string]any{"success": true})

	tool := NewTool(rdv, nil, Config{ActionTimeout: time.Second})
	content, _ := exec(t, tool, `{"action":"fill_form_field","selector":"#dot-number","value":"1234567"}`)
	if !strings.Contains(content, `"1234567"`) {
		t.Errorf("plain value should appear in summary: %s", content)
	}
}

type scriptedApprover struct {
	approve bool
	asked   int
	summary string
}

func (a *scriptedApprover) RequestApproval(ctx context.Context, action, summary string) (bool, error) {
	a.asked++
	a.summary = summary
	return a.approve, nil
}

func TestSubmitFormRequiresApproval(t *testing.T) {
	rdv := newTestRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	respond(ctx, rdv, map[string]any{"success": true})

	approver := &scriptedApprover{approve: true}
	tool := NewTool(rdv, approver, Config{ActionTimeout: time.Second})
	content, isErr := exec(t, tool, `{"action":"submit_form","selector":"#quote-form"}`)
	if isErr {
		t.Fatalf("unexpected error: %s", content)
	}
	if approver.asked != 1 {
		t.Errorf("approver asked %d times, want 1", approver.asked)
	}
	if !strings.Contains(approver.summary, "#quote-form") {
		t.Errorf("approval summary missing selector: %s", approver.summary)
	}
}

func TestSubmitFormDeclined(t *testing.T) {
	rdv := newTestRendezvous()
	approver := &scriptedApprover{approve: false}
	tool := NewTool(rdv, approver, Config{ActionTimeout: time.Second})

	content, isErr := exec(t, tool, `{"action":"submit_form","selector":"#quote-form"}`)
	if !isErr {
		t.Fatal("expected error result when declined")
	}
	if !strings.Contains(content, "declined") {
		t.Errorf("unexpected message: %s", content)
	}
	if rdv.QueueDepth() != 0 {
		t.Error("declined action should never reach the queue")
	}
}

func TestWaitClampsSeconds(t *testing.T) {
	rdv := newTestRendezvous()
	done := make(chan float64, 1)
	go func() {
		action, err := rdv.Next(context.Background())
		if err != nil {
			return
		}
		secs, _ := action.Parameters["seconds"].(float64)
		done <- secs
		rdv.Deliver(action.ID, map[string]any{"success": true})
	}()

	tool := NewTool(rdv, nil, Config{ActionTimeout: time.Second})
	exec(t, tool, `{"action":"wait","seconds":120}`)

	select {
	case secs := <-done:
		if secs != 30 {
			t.Errorf("seconds = %v, want clamped to 30", secs)
		}
	case <-time.After(time.Second):
		t.Fatal("action never dispatched")
	}
}
