// Package eventstream defines the outbound event surface. Lifecycle events
// are emitted after the fact for downstream consumers; publishing is best
// effort and never gates a session operation.
package eventstream

import (
	"context"
	"time"
)

// Event types carried in Event.Type.
const (
	TypeSessionCreated  = "session.created"
	TypeSessionMediated = "session.mediated"
	TypeSessionEvicted  = "session.evicted"
	TypeModuleAudited   = "module.audited"
)

// Event is one lifecycle event. SessionID keys the event for partitioning;
// audit events use the module name instead.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Module     string    `json:"module,omitempty"`
	Status     string    `json:"status,omitempty"`
	Messages   int       `json:"messages,omitempty"`
	Persistent bool      `json:"persistent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key returns the partitioning key for the event.
func (e Event) Key() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.Module
}

// Publisher delivers events to a downstream stream.
type Publisher interface {
	// Publish delivers one event. Implementations may buffer; a returned
	// error means the event was not accepted.
	Publish(ctx context.Context, event Event) error

	// Close flushes buffered events and releases the connection.
	Close() error
}
