package mocks

import (
	"context"
	"sync"

	"github.com/you/findmyseat/domain"
)

// MockEventLogger records session events for assertions
type MockEventLogger struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

// NewMockEventLogger creates an empty recorder
func NewMockEventLogger() *MockEventLogger {
	return &MockEventLogger{}
}

// LogEvent implements domain.EventLogger
func (m *MockEventLogger) LogEvent(ctx context.Context, event *domain.SessionEvent) {
	if event == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
}

// Events returns a copy of the recorded events
func (m *MockEventLogger) Events() []domain.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionEvent(nil), m.events...)
}

// Count returns how many events of type were recorded
func (m *MockEventLogger) Count(eventType domain.SessionEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

var _ domain.EventLogger = (*MockEventLogger)(nil)
