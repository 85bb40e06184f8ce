// Package inmemory provides a storage.Driver that keeps sessions in process
// memory. It backs one-off decodes and the test suites.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/runstream/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	sessions map[string]*storage.Session
	lines    map[string][]*storage.Line
	records  map[string][]*storage.Record
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*storage.Session),
		lines:    make(map[string][]*storage.Line),
		records:  make(map[string][]*storage.Record),
	}
}

// CreateSession stores a copy of session.
func (s *Driver) CreateSession(_ context.Context, session *storage.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session already exists: %s", session.ID)
	}

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// AppendLine records a raw line.
func (s *Driver) AppendLine(_ context.Context, line *storage.Line) error {
	if line == nil {
		return errors.New("cannot store nil line")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[line.SessionID]; !ok {
		return storage.NotFoundError{ID: line.SessionID}
	}

	cp := *line
	s.lines[line.SessionID] = append(s.lines[line.SessionID], &cp)
	return nil
}

// AppendRecord records a decoded event.
func (s *Driver) AppendRecord(_ context.Context, record *storage.Record) error {
	if record == nil {
		return errors.New("cannot store nil record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[record.SessionID]; !ok {
		return storage.NotFoundError{ID: record.SessionID}
	}

	cp := *record
	s.records[record.SessionID] = append(s.records[record.SessionID], &cp)
	return nil
}

// CompleteSession stores the final counters of a session.
func (s *Driver) CompleteSession(_ context.Context, id string, summary storage.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return storage.NotFoundError{ID: id}
	}

	ended := summary.EndedAt
	session.EndedAt = &ended
	session.LineCount = summary.LineCount
	session.EventCount = summary.EventCount
	session.ParseErrors = summary.ParseErrors
	return nil
}

// GetSession retrieves a session by its ID.
func (s *Driver) GetSession(_ context.Context, id string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	cp := *session
	return &cp, nil
}

// ListSessions returns sessions, newest first.
func (s *Driver) ListSessions(_ context.Context, limit int) ([]*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		cp := *session
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Lines returns the raw lines of a session in index order.
func (s *Driver) Lines(_ context.Context, id string) ([]*storage.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	result := make([]*storage.Line, 0, len(s.lines[id]))
	for _, line := range s.lines[id] {
		cp := *line
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// Records returns the decoded events of a session in index order.
func (s *Driver) Records(_ context.Context, id string) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	result := make([]*storage.Record, 0, len(s.records[id]))
	for _, record := range s.records[id] {
		cp := *record
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}
