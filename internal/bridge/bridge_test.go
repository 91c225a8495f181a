package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coverbridge/coverbridge/internal/agent"
	"github.com/coverbridge/coverbridge/internal/rendezvous"
	"github.com/coverbridge/coverbridge/internal/tools/browser"
)

// scriptedProvider replays canned chunk streams, one per Complete
// call.
type scriptedProvider struct {
	calls   atomic.Int64
	scripts [][]*agent.CompletionChunk
}

func (p *scriptedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	n := int(p.calls.Add(1)) - 1
	if n >= len(p.scripts) {
		n = len(p.scripts) - 1
	}
	script := p.scripts[n]
	out := make(chan *agent.CompletionChunk, len(script))
	for _, chunk := range script {
		out <- chunk
	}
	close(out)
	return out, nil
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) SupportsTools() bool { return true }

type harness struct {
	server *Server
	rdv    *rendezvous.Rendezvous
	ws     *websocket.Conn
	http   *httptest.Server
}

func newHarness(t *testing.T, provider agent.LLMProvider, actionTimeout time.Duration) *harness {
	t.Helper()

	rdv := rendezvous.New(rendezvous.Config{DefaultTimeout: actionTimeout})
	registry := agent.NewToolRegistry()

	server := NewServer(Options{
		Version:         "test",
		Provider:        provider,
		Registry:        registry,
		LoopConfig:      agent.DefaultLoopConfig(),
		Rendezvous:      rdv,
		ApprovalTimeout: time.Second,
	})
	registry.Register(browser.NewTool(rdv, server, browser.Config{
		ActionTimeout:   actionTimeout,
		ApprovalTimeout: time.Second,
	}))

	httpSrv := httptest.NewServer(server.Handler())
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		httpSrv.Close()
		t.Fatalf("dial failed: %v", err)
	}

	h := &harness{server: server, rdv: rdv, ws: ws, http: httpSrv}
	t.Cleanup(func() {
		ws.Close()
		httpSrv.Close()
	})
	return h
}

func (h *harness) send(t *testing.T, env map[string]any) {
	t.Helper()
	if err := h.ws.WriteJSON(env); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
}

func (h *harness) read(t *testing.T) *Envelope {
	t.Helper()
	h.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env Envelope
	if err := h.ws.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return &env
}

// readUntil skips envelopes until one of the wanted type arrives.
func (h *harness) readUntil(t *testing.T, wanted string) *Envelope {
	t.Helper()
	for i := 0; i < 50; i++ {
		env := h.read(t)
		if env.Type == wanted {
			return env
		}
	}
	t.Fatalf("never received %s envelope", wanted)
	return nil
}

func TestEndToEndNavigateTurn(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{
		{
			{ToolCall: &agent.ToolCall{
				ID:    "t1",
				Name:  "browser",
				Input: json.RawMessage(`{"action":"navigate","url":"https://safer.fmcsa.dot.gov"}`),
			}},
			{Done: true},
		},
		{
			{Text: "The SAFER site is open."},
			{Done: true},
		},
	}}
	h := newHarness(t, provider, 5*time.Second)

	h.send(t, map[string]any{"type": "message", "text": "open the SAFER site"})

	if env := h.read(t); env.Type != EnvelopeResponseStart {
		t.Fatalf("first envelope = %s, want response_start", env.Type)
	}

	action := h.readUntil(t, EnvelopeBrowserAction)
	if action.Action != "navigate" {
		t.Errorf("action = %s, want navigate", action.Action)
	}
	if action.Token == "" {
		t.Fatal("browser_action missing token")
	}
	if url, _ := action.Params["url"].(string); url != "https://safer.fmcsa.dot.gov" {
		t.Errorf("url param = %v", action.Params["url"])
	}

	h.send(t, map[string]any{
		"type":   "browser_action_result",
		"token":  action.Token,
		"result": map[string]any{"success": true, "url": "https://safer.fmcsa.dot.gov"},
	})

	var sawText bool
	for {
		env := h.read(t)
		if env.Type == EnvelopeResponseChunk && strings.Contains(env.Text, "SAFER site is open") {
			sawText = true
		}
		if env.Type == EnvelopeResponseEnd {
			break
		}
	}
	if !sawText {
		t.Error("final reply text never streamed")
	}

	if tokens := h.rdv.LiveTokens(); len(tokens) != 0 {
		t.Errorf("tokens still live after turn: %v", tokens)
	}
}

func TestTurnEndsOnActionTimeout(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{
		{
			{ToolCall: &agent.ToolCall{
				ID:    "t1",
				Name:  "browser",
				Input: json.RawMessage(`{"action":"click","selector":"#quote"}`),
			}},
			{Done: true},
		},
		{
			{Text: "The click did not go through."},
			{Done: true},
		},
	}}
	h := newHarness(t, provider, 150*time.Millisecond)

	h.send(t, map[string]any{"type": "message", "text": "click the quote button"})

	// Never answer the browser_action; the adapter must time out and
	// the turn must still finish with response_end.
	h.readUntil(t, EnvelopeBrowserAction)
	h.readUntil(t, EnvelopeResponseEnd)
}

func TestInvalidEnvelopeRejected(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{{{Done: true}}}}
	h := newHarness(t, provider, time.Second)

	h.send(t, map[string]any{"type": "message"})
	env := h.read(t)
	if env.Type != EnvelopeError {
		t.Fatalf("envelope = %s, want error", env.Type)
	}
	if !strings.Contains(env.Message, "invalid envelope") {
		t.Errorf("unexpected message: %s", env.Message)
	}
}

func TestUnknownEnvelopeTypeRejected(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{{{Done: true}}}}
	h := newHarness(t, provider, time.Second)

	h.send(t, map[string]any{"type": "telemetry"})
	env := h.read(t)
	if env.Type != EnvelopeError {
		t.Fatalf("envelope = %s, want error", env.Type)
	}
}

func TestApprovalRoundTrip(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{{{Done: true}}}}
	h := newHarness(t, provider, time.Second)

	type outcome struct {
		approved bool
		err      error
	}
	results := make(chan outcome, 1)
	go func() {
		approved, err := h.server.RequestApproval(context.Background(), "submit_form", "Submit the quote form?")
		results <- outcome{approved, err}
	}()

	req := h.readUntil(t, EnvelopeActionRequest)
	if req.Action != "submit_form" {
		t.Errorf("action = %s, want submit_form", req.Action)
	}
	h.send(t, map[string]any{"type": "action_response", "token": req.Token, "approved": true})

	select {
	case out := <-results:
		if out.err != nil {
			t.Fatalf("RequestApproval failed: %v", out.err)
		}
		if !out.approved {
			t.Error("approved = false, want true")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("approval never resolved")
	}
}

func TestApprovalDeclined(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{{{Done: true}}}}
	h := newHarness(t, provider, time.Second)

	results := make(chan bool, 1)
	go func() {
		approved, err := h.server.RequestApproval(context.Background(), "submit_form", "Submit?")
		if err != nil {
			t.Errorf("RequestApproval failed: %v", err)
		}
		results <- approved
	}()

	req := h.readUntil(t, EnvelopeActionRequest)
	h.send(t, map[string]any{"type": "action_response", "token": req.Token, "approved": false})

	select {
	case approved := <-results:
		if approved {
			t.Error("approved = true, want false")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("approval never resolved")
	}
}

func TestTabStateFoldedIntoTurn(t *testing.T) {
	var captured atomic.Value
	provider := &capturingProvider{reply: "Looking at it now."}
	provider.captured = &captured

	h := newHarness(t, provider, time.Second)

	h.send(t, map[string]any{"type": "tab_state", "tab": map[string]any{"url": "https://portal.example/quote", "title": "Quote Portal"}})
	time.Sleep(100 * time.Millisecond)
	h.send(t, map[string]any{"type": "message", "text": "what page am I on?"})
	h.readUntil(t, EnvelopeResponseEnd)

	content, _ := captured.Load().(string)
	if !strings.Contains(content, "https://portal.example/quote") {
		t.Errorf("tab context missing from turn: %q", content)
	}
}

// capturingProvider records the last user message content.
type capturingProvider struct {
	reply    string
	captured *atomic.Value
}

func (p *capturingProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if len(req.Messages) > 0 {
		p.captured.Store(req.Messages[len(req.Messages)-1].Content)
	}
	out := make(chan *agent.CompletionChunk, 2)
	out <- &agent.CompletionChunk{Text: p.reply}
	out <- &agent.CompletionChunk{Done: true}
	close(out)
	return out, nil
}

func (p *capturingProvider) Name() string        { return "capturing" }
func (p *capturingProvider) SupportsTools() bool { return false }

func TestHealthEndpoint(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{{{Done: true}}}}
	h := newHarness(t, provider, time.Second)

	resp, err := h.http.Client().Get(h.http.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload["status"] != "ok" || payload["service"] != "coverbridge" {
		t.Errorf("unexpected health payload: %v", payload)
	}
}

func TestDebugPendingEndpoint(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*agent.CompletionChunk{{{Done: true}}}}
	h := newHarness(t, provider, time.Second)

	resp, err := h.http.Client().Get(h.http.URL + "/debug/pending")
	if err != nil {
		t.Fatalf("GET /debug/pending failed: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		QueueDepth int      `json:"queue_depth"`
		LiveTokens []string `json:"live_tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.QueueDepth != 0 {
		t.Errorf("queue_depth = %d, want 0", payload.QueueDepth)
	}
}
