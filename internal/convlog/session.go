package convlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Session is an open conversation log. Log appends one JSONL line per
// event; Close writes the end event and updates the index.
type Session struct {
	mu     sync.Mutex
	id     string
	file   *os.File
	enc    *json.Encoder
	store  *Store
	events int
	start  time.Time
	closed bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Log appends an event to the session file.
func (s *Session) Log(eventType string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.id)
	}
	if s.start.IsZero() {
		s.start = time.Now()
	}
	s.events++
	return s.enc.Encode(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Data:      data,
	})
}

// Close writes the session_end event, closes the file, and records the
// final index entry. Safe to call once; later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.events++
	endErr := s.enc.Encode(Event{
		Timestamp: time.Now(),
		Type:      EventSessionEnd,
		Data:      map[string]any{"events": s.events},
	})
	s.closed = true
	closeErr := s.file.Close()
	events := s.events
	start := s.start
	s.mu.Unlock()

	idxErr := s.store.updateIndex(IndexEntry{
		ID:        s.id,
		File:      s.id + ".jsonl",
		StartedAt: start,
		EndedAt:   time.Now(),
		Events:    events,
	})

	if endErr != nil {
		return endErr
	}
	if closeErr != nil {
		return closeErr
	}
	return idxErr
}
