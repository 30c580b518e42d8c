package session

import (
	"time"

	"github.com/meshmindco/meshmind/pkg/graph"
)

// Metadata describes one logical session's lifecycle state.
type Metadata struct {
	// SessionID uniquely identifies the session.
	SessionID string

	// Provider and Model name the backend serving the session.
	Provider string
	Model    string

	// CreatedAt is when the session was allocated.
	CreatedAt time.Time

	// LastAccessedAt is refreshed by every mediation; a session is Active
	// while now - LastAccessedAt stays inside the manager's active window.
	LastAccessedAt time.Time

	// MessageCount mirrors the conversation's length as of the last
	// mediation.
	MessageCount int

	// IsPersistent marks sessions that are never evicted by cleanup.
	IsPersistent bool

	// GraphNodeRef is the session's node in the graph projection.
	GraphNodeRef graph.Ref
}
