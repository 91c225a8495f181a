package rendezvous

import (
	"fmt"
	"sync"
)

// Store is the correlation registry mapping live tokens to waiters and
// delivered payloads. It is shared between the worker goroutines running
// conversation turns and the bridge goroutines servicing the extension
// socket, so every access holds the mutex.
type Store struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
	results map[string]map[string]any
}

// NewStore creates an empty correlation store.
func NewStore() *Store {
	return &Store{
		waiters: make(map[string]chan struct{}),
		results: make(map[string]map[string]any),
	}
}

// Register creates and stores a fresh waiter for the token. It fails if
// the token is already live, which cannot happen with uuid tokens.
func (s *Store) Register(token string) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.waiters[token]; exists {
		return nil, fmt.Errorf("correlation token already registered: %s", token)
	}
	ch := make(chan struct{}, 1)
	s.waiters[token] = ch
	return ch, nil
}

// Signal stores the payload and wakes the waiter registered for the
// token. Returns false if no waiter is registered (already expired or
// consumed); the payload is discarded in that case.
func (s *Store) Signal(token string, payload map[string]any) bool {
	s.mu.Lock()
	ch, ok := s.waiters[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.waiters, token)
	s.results[token] = payload
	s.mu.Unlock()

	// Buffered, exactly one send per registration.
	ch <- struct{}{}
	return true
}

// TakeResult removes and returns the payload stored for the token.
func (s *Store) TakeResult(token string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.results[token]
	if ok {
		delete(s.results, token)
	}
	return payload, ok
}

// Expire removes the waiter and any stored payload for the token.
// Called by the timeout and cancellation paths.
func (s *Store) Expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, token)
	delete(s.results, token)
}

// Live reports whether the token currently has a registered waiter or
// an undelivered payload.
func (s *Store) Live(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.waiters[token]; ok {
		return true
	}
	_, ok := s.results[token]
	return ok
}

// Tokens returns the tokens with registered waiters, for debug output.
func (s *Store) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]string, 0, len(s.waiters))
	for token := range s.waiters {
		tokens = append(tokens, token)
	}
	return tokens
}

// Len returns the number of live waiters.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
