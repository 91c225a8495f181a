// Package knowledge serves a directory of markdown reference topics
// to the agent, reloading on file changes.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/coverbridge/coverbridge/internal/observability"
)

// Topic is one markdown document in the knowledge directory.
type Topic struct {
	Name    string
	Title   string
	Content string
}

// Store loads markdown topics from a directory and keeps them current
// with an fsnotify watcher.
type Store struct {
	dir    string
	logger *observability.Logger

	mu     sync.RWMutex
	topics map[string]*Topic

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore loads the directory and starts watching it. A missing
// directory is not an error, it just yields an empty store.
func NewStore(dir string, logger *observability.Logger) (*Store, error) {
	s := &Store{
		dir:    dir,
		logger: logger,
		topics: make(map[string]*Topic),
		done:   make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		// Watch what we can; the initial load already succeeded.
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

func (s *Store) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil && s.logger != nil {
				s.logger.Warn(context.Background(), "knowledge reload failed", "error", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn(context.Background(), "knowledge watcher error", "error", err)
			}
		case <-s.done:
			return
		}
	}
}

func (s *Store) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.topics = make(map[string]*Topic)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read knowledge dir: %w", err)
	}

	topics := make(map[string]*Topic)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		topics[name] = &Topic{
			Name:    name,
			Title:   titleOf(string(data), name),
			Content: string(data),
		}
	}

	s.mu.Lock()
	s.topics = topics
	s.mu.Unlock()
	return nil
}

// titleOf takes the first markdown heading, falling back to the file
// name.
func titleOf(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return fallback
}

// ListTopics returns all topics sorted by name.
func (s *Store) ListTopics() []*Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topics := make([]*Topic, 0, len(s.topics))
	for _, t := range s.topics {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics
}

// ReadTopic returns one topic by name.
func (s *Store) ReadTopic(name string) (*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[name]
	if !ok {
		return nil, fmt.Errorf("topic not found: %s", name)
	}
	return t, nil
}

// SearchHit is one matching line in a topic.
type SearchHit struct {
	Topic string
	Line  string
}

// Search finds lines containing the query, case-insensitive.
func (s *Store) Search(query string) []SearchHit {
	needle := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []SearchHit
	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, line := range strings.Split(s.topics[name].Content, "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				hits = append(hits, SearchHit{Topic: name, Line: strings.TrimSpace(line)})
			}
		}
	}
	return hits
}

// Close stops the watcher.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
