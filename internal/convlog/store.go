// Package convlog persists conversation sessions as append-only JSONL
// files, one file per session, with an index of recent sessions and
// read-side helpers for the debug endpoints.
package convlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types written to session files.
const (
	EventSessionStart  = "session_start"
	EventSessionEnd    = "session_end"
	EventUserMessage   = "user_message"
	EventAgentResponse = "agent_response"
	EventToolCall      = "tool_call"
	EventBrowserAction = "browser_action"
	EventApproval      = "approval"
	EventError         = "error"
)

// Event is one line in a session file.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// IndexEntry summarizes one session in index.json.
type IndexEntry struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Events    int       `json:"events"`
}

type indexFile struct {
	Sessions []IndexEntry `json:"sessions"`
}

// Store owns the conversation log directory and its index.
type Store struct {
	dir        string
	indexLimit int
	mu         sync.Mutex
}

// NewStore creates the log directory if needed and returns a store.
// indexLimit caps how many sessions index.json retains (oldest first
// to go); zero means 1000.
func NewStore(dir string, indexLimit int) (*Store, error) {
	if indexLimit <= 0 {
		indexLimit = 1000
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation log dir: %w", err)
	}
	return &Store{dir: dir, indexLimit: indexLimit}, nil
}

// Dir returns the log directory.
func (s *Store) Dir() string {
	return s.dir
}

// StartSession opens a new session file and writes its start event.
// Session IDs look like session_142530_a1b2c3.
func (s *Store) StartSession() (*Session, error) {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	id := fmt.Sprintf("session_%s_%s", time.Now().Format("150405"), suffix)
	filename := id + ".jsonl"

	f, err := os.OpenFile(filepath.Join(s.dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create session file: %w", err)
	}

	sess := &Session{
		id:    id,
		file:  f,
		enc:   json.NewEncoder(f),
		store: s,
	}
	if err := sess.Log(EventSessionStart, nil); err != nil {
		f.Close()
		return nil, err
	}

	if err := s.updateIndex(IndexEntry{
		ID:        id,
		File:      filename,
		StartedAt: time.Now(),
	}); err != nil {
		f.Close()
		return nil, err
	}
	return sess, nil
}

// updateIndex inserts or replaces the entry and trims to the limit.
func (s *Store) updateIndex(entry IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndexLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i := range idx.Sessions {
		if idx.Sessions[i].ID == entry.ID {
			idx.Sessions[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Sessions = append(idx.Sessions, entry)
	}
	if len(idx.Sessions) > s.indexLimit {
		idx.Sessions = idx.Sessions[len(idx.Sessions)-s.indexLimit:]
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, "index.json"), data, 0o644)
}

func (s *Store) readIndexLocked() (*indexFile, error) {
	var idx indexFile
	data, err := os.ReadFile(filepath.Join(s.dir, "index.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &idx, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		// A corrupt index is rebuilt from scratch rather than blocking
		// new sessions.
		return &indexFile{}, nil
	}
	return &idx, nil
}

// ListSessions returns the indexed sessions, most recent last.
func (s *Store) ListSessions() ([]IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndexLocked()
	if err != nil {
		return nil, err
	}
	return idx.Sessions, nil
}

// ReadSession loads all events of one session.
func (s *Store) ReadSession(id string) ([]Event, error) {
	if strings.ContainsAny(id, "/\\") {
		return nil, fmt.Errorf("invalid session id: %s", id)
	}
	f, err := os.Open(filepath.Join(s.dir, id+".jsonl"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// ToolStats aggregates tool_call events for one tool.
type ToolStats struct {
	Calls      int     `json:"calls"`
	Errors     int     `json:"errors"`
	TotalMs    float64 `json:"total_ms"`
	AverageMs  float64 `json:"average_ms"`
	LastCalled string  `json:"last_called,omitempty"`
}

// ToolUsageStats scans indexed sessions and aggregates tool usage.
func (s *Store) ToolUsageStats() (map[string]ToolStats, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, err
	}

	stats := make(map[string]ToolStats)
	for _, entry := range sessions {
		events, err := s.ReadSession(entry.ID)
		if err != nil {
			continue
		}
		for _, ev := range events {
			if ev.Type != EventToolCall {
				continue
			}
			name, _ := ev.Data["tool"].(string)
			if name == "" {
				continue
			}
			st := stats[name]
			st.Calls++
			if isErr, _ := ev.Data["is_error"].(bool); isErr {
				st.Errors++
			}
			if ms, ok := ev.Data["duration_ms"].(float64); ok {
				st.TotalMs += ms
			}
			st.LastCalled = ev.Timestamp.Format(time.RFC3339)
			stats[name] = st
		}
	}
	for name, st := range stats {
		if st.Calls > 0 {
			st.AverageMs = st.TotalMs / float64(st.Calls)
		}
		stats[name] = st
	}
	return stats, nil
}

// SearchHit is one matching event from Search.
type SearchHit struct {
	SessionID string `json:"session_id"`
	Event     Event  `json:"event"`
}

// Search scans message and response events for a case-insensitive
// substring match.
func (s *Store) Search(query string) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var hits []SearchHit
	for _, entry := range sessions {
		events, err := s.ReadSession(entry.ID)
		if err != nil {
			continue
		}
		for _, ev := range events {
			if ev.Type != EventUserMessage && ev.Type != EventAgentResponse {
				continue
			}
			text, _ := ev.Data["text"].(string)
			if strings.Contains(strings.ToLower(text), needle) {
				hits = append(hits, SearchHit{SessionID: entry.ID, Event: ev})
			}
		}
	}
	return hits, nil
}
