package convlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionLifecycle(t *testing.T) {
	store, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	sess, err := store.StartSession()
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if !strings.HasPrefix(sess.ID(), "session_") {
		t.Errorf("unexpected session id format: %s", sess.ID())
	}

	if err := sess.Log(EventUserMessage, map[string]any{"text": "look up DOT 123456"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := sess.Log(EventAgentResponse, map[string]any{"text": "Carrier found."}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events, err := store.ReadSession(sess.ID())
	if err != nil {
		t.Fatalf("ReadSession failed: %v", err)
	}
	// session_start, user_message, agent_response, session_end
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}
	if events[0].Type != EventSessionStart {
		t.Errorf("first event = %s, want session_start", events[0].Type)
	}
	if events[3].Type != EventSessionEnd {
		t.Errorf("last event = %s, want session_end", events[3].Type)
	}
}

func TestStartSessionIndexFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	// A directory at the index path makes the index unreadable.
	if err := os.Mkdir(filepath.Join(dir, "index.json"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	if _, err := store.StartSession(); err == nil {
		t.Fatal("expected StartSession to fail when the index is unreadable")
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sess, err := store.StartSession()
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := sess.Log(EventError, nil); err == nil {
		t.Error("Log after Close should fail")
	}
}

func TestIndexTrimsToLimit(t *testing.T) {
	store, err := NewStore(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		sess, err := store.StartSession()
		if err != nil {
			t.Fatalf("StartSession failed: %v", err)
		}
		if err := sess.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	sessions, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("index holds %d sessions, want 3", len(sessions))
	}
}

func TestToolUsageStats(t *testing.T) {
	store, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sess, err := store.StartSession()
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	sess.Log(EventToolCall, map[string]any{"tool": "lookup_carrier_by_dot", "duration_ms": 120.0})
	sess.Log(EventToolCall, map[string]any{"tool": "lookup_carrier_by_dot", "duration_ms": 80.0, "is_error": true})
	sess.Log(EventToolCall, map[string]any{"tool": "search_leads", "duration_ms": 45.0})
	sess.Close()

	stats, err := store.ToolUsageStats()
	if err != nil {
		t.Fatalf("ToolUsageStats failed: %v", err)
	}

	dot := stats["lookup_carrier_by_dot"]
	if dot.Calls != 2 {
		t.Errorf("calls = %d, want 2", dot.Calls)
	}
	if dot.Errors != 1 {
		t.Errorf("errors = %d, want 1", dot.Errors)
	}
	if dot.AverageMs != 100.0 {
		t.Errorf("average = %v, want 100", dot.AverageMs)
	}
	if stats["search_leads"].Calls != 1 {
		t.Errorf("search_leads calls = %d, want 1", stats["search_leads"].Calls)
	}
}

func TestSearch(t *testing.T) {
	store, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sess, err := store.StartSession()
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	sess.Log(EventUserMessage, map[string]any{"text": "check renewal for Acme Trucking"})
	sess.Log(EventAgentResponse, map[string]any{"text": "Acme Trucking has 2 policies expiring."})
	sess.Log(EventToolCall, map[string]any{"tool": "find_insured"})
	sess.Close()

	hits, err := store.Search("acme")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].SessionID != sess.ID() {
		t.Errorf("SessionID = %s, want %s", hits[0].SessionID, sess.ID())
	}

	if _, err := store.Search("  "); err == nil {
		t.Error("empty query should fail")
	}
}

func TestReadSessionRejectsPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := store.ReadSession("../etc/passwd"); err == nil {
		t.Error("expected error for path traversal id")
	}
}
