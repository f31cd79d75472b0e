package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event names emitted by the services. Sessions emit editor.EventChanged
// on their own.
const (
	EventNotifyError           = "notify:error"
	EventPageSaved             = "page:saved"
	EventDraftSaved            = "draft:saved"
	EventSessionClosed         = "session:closed"
	EventPageChangedExternally = "page:changed-externally"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from their transports
// ─────────────────────────────────────────────────────────────

// EventEmitter delivers events to whoever renders the editor: the
// websocket hub for browsers, a log line for the MCP server. Services take
// this interface so they can be tested with MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Notification is the payload of EventNotifyError.
type Notification struct {
	SessionID string `json:"sessionId,omitempty"`
	PageID    string `json:"pageId,omitempty"`
	Message   string `json:"message"`
}

// MultiEmitter fans an event out to several emitters.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event string, data any) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event, data)
		}
	}
}

// LogEmitter writes every event as a debug log line, and notifications
// as warnings.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, event string, data any) {
	entry := logrus.WithField("event", event)
	if n, ok := data.(Notification); ok {
		entry.WithField("page_id", n.PageID).Warn(n.Message)
		return
	}
	entry.Debug("event")
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
