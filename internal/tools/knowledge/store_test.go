package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTopic(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	writeTopic(t, dir, "trucking-coverages.md", "# Trucking Coverages\n\nAuto liability is federally mandated for interstate carriers.\nMotor truck cargo covers the freight itself.\n")
	writeTopic(t, dir, "carrier-appetite.md", "# Carrier Appetite\n\nProgressive writes fleets under 50 power units.\n")
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestListTopics(t *testing.T) {
	store, _ := newTestStore(t)

	topics := store.ListTopics()
	if len(topics) != 2 {
		t.Fatalf("topics = %d, want 2", len(topics))
	}
	if topics[0].Name != "carrier-appetite" {
		t.Errorf("topics not sorted: %s first", topics[0].Name)
	}
	if topics[1].Title != "Trucking Coverages" {
		t.Errorf("title = %q, want heading text", topics[1].Title)
	}
}

func TestReadTopic(t *testing.T) {
	store, _ := newTestStore(t)

	topic, err := store.ReadTopic("trucking-coverages")
	if err != nil {
		t.Fatalf("ReadTopic failed: %v", err)
	}
	if !strings.Contains(topic.Content, "federally mandated") {
		t.Errorf("unexpected content: %s", topic.Content)
	}

	if _, err := store.ReadTopic("missing"); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestSearch(t *testing.T) {
	store, _ := newTestStore(t)

	hits := store.Search("CARGO")
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Topic != "trucking-coverages" {
		t.Errorf("hit topic = %s", hits[0].Topic)
	}
}

func TestHotReload(t *testing.T) {
	store, dir := newTestStore(t)

	writeTopic(t, dir, "renewals.md", "# Renewal Checklist\n\nPull loss runs 90 days out.\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.ReadTopic("renewals"); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("new topic never appeared after reload")
}

func TestToolActions(t *testing.T) {
	store, _ := newTestStore(t)
	tool := NewTool(store)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"list_topics"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(res.Content, "carrier-appetite") {
		t.Errorf("list missing topic: %s", res.Content)
	}

	res, err = tool.Execute(context.Background(), json.RawMessage(`{"action":"search_knowledge","query":"progressive"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(res.Content, "[carrier-appetite]") {
		t.Errorf("search missing hit: %s", res.Content)
	}

	res, err = tool.Execute(context.Background(), json.RawMessage(`{"action":"read_topic"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.IsError {
		t.Error("expected error for missing topic arg")
	}
}
