package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/runstream/pkg/eventstream"
)

// MockPublisher records every published event.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.EventDecoded

	// Fail causes PublishEvent to return an error.
	Fail bool

	Closed bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishEvent(_ context.Context, event *eventstream.EventDecoded) error {
	if m.Fail {
		return errors.New("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns the published events in order.
func (m *MockPublisher) Events() []*eventstream.EventDecoded {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*eventstream.EventDecoded, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockPublisher) Close() error {
	m.Closed = true
	return nil
}
