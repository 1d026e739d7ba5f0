package llm

import (
	"context"

	"github.com/edgegraph/chatd/internal/domain"
)

// EventType discriminates the events a completion stream can yield
type EventType string

const (
	EventStart   EventType = "start"
	EventContent EventType = "content"
	EventEnd     EventType = "end"
	EventError   EventType = "error"
)

// Event is one decoded unit of a completion stream
type Event struct {
	Type    EventType
	Content string
	Err     string
}

// Completer turns a message history into a lazy stream of events.
//
// A non-nil error means the call itself failed (bad status, transport error)
// and no events will be produced. Once a channel is returned, failures travel
// as EventError events. The channel is unbuffered: consumption pace governs
// how fast the upstream body is read.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (<-chan Event, error)
}
