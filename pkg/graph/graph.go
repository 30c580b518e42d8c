// Package graph defines the capability interface for the shared knowledge
// graph used as durable conversational memory.
//
// The graph holds typed nodes and typed links. A link connects an ordered
// tuple of nodes and/or other links. Both AddNode and AddLink have
// create-or-get semantics: writing an identical (type, name) node or an
// identical (type, endpoints) link returns the existing ref instead of
// inserting a duplicate. Core logic relies on this for idempotent
// synchronization; it is the store's contract, not an optimization.
//
// Stores are pluggable drivers: memstore (in-process), sqlitestore and
// pgstore (durable), and nop (a null store that discards writes and returns
// empty on reads, so core logic never branches on graph availability).
package graph

import "context"

// Node types used by the conversation core.
const (
	NodeConcept   = "concept"
	NodePredicate = "predicate"
	NodeSession   = "session"
	NodeMessage   = "message"
	NodeResponse  = "response"
	NodeModule    = "module"
	NodePattern   = "pattern"
)

// Link types used by the conversation core.
const (
	LinkMember     = "member"
	LinkEvaluation = "evaluation"
	LinkList       = "list"
)

// Ref identifies a node or link in the store. Refs are opaque to callers and
// stable for the lifetime of the store.
type Ref string

// RefNil is the zero Ref, returned alongside errors.
const RefNil = Ref("")

// Store is the abstract capability interface to the knowledge graph.
// All core graph writes are expressed purely in these terms.
type Store interface {
	// AddNode creates a typed, named node, or returns the existing ref if
	// an identical node already exists.
	AddNode(ctx context.Context, nodeType, name string) (Ref, error)

	// AddLink creates a typed link over the ordered refs, or returns the
	// existing ref if an identical link already exists.
	AddLink(ctx context.Context, linkType string, refs ...Ref) (Ref, error)

	// GetIncident returns every link that includes ref in its tuple.
	GetIncident(ctx context.Context, ref Ref) ([]Ref, error)

	// GetOutgoing returns the ordered tuple of refs a link connects.
	// Returns nil for node refs.
	GetOutgoing(ctx context.Context, link Ref) ([]Ref, error)

	// FindNode looks up a node by type and name. Returns RefNil and no
	// error when the node does not exist: absence is an expected case.
	FindNode(ctx context.Context, nodeType, name string) (Ref, error)

	// NodeName returns the (type, name) of a node ref or the link type of
	// a link ref.
	NodeName(ctx context.Context, ref Ref) (nodeType string, name string, err error)

	// Remove deletes a node or link. Removing a node does not cascade to
	// its incident links; callers remove links first.
	Remove(ctx context.Context, ref Ref) error

	// Close releases store resources.
	Close() error
}
