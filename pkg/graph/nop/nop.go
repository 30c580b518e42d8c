// Package nop provides a null graph store that quietly discards writes and
// returns empty on reads. Injecting it lets core logic always call the
// graph.Store interface instead of branching on "is the graph available".
package nop

import (
	"context"

	"github.com/meshmindco/meshmind/pkg/graph"
)

// Store is the no-op graph store.
type Store struct{}

// New creates a no-op graph store.
func New() *Store {
	return &Store{}
}

// AddNode returns the identity ref for the node without storing anything.
func (s *Store) AddNode(_ context.Context, nodeType, name string) (graph.Ref, error) {
	return graph.NodeRef(nodeType, name), nil
}

// AddLink returns the identity ref for the link without storing anything.
func (s *Store) AddLink(_ context.Context, linkType string, refs ...graph.Ref) (graph.Ref, error) {
	return graph.LinkRef(linkType, refs), nil
}

// GetIncident always returns empty.
func (s *Store) GetIncident(_ context.Context, _ graph.Ref) ([]graph.Ref, error) {
	return nil, nil
}

// GetOutgoing always returns empty.
func (s *Store) GetOutgoing(_ context.Context, _ graph.Ref) ([]graph.Ref, error) {
	return nil, nil
}

// FindNode never finds anything.
func (s *Store) FindNode(_ context.Context, _, _ string) (graph.Ref, error) {
	return graph.RefNil, nil
}

// NodeName reports every ref as unknown.
func (s *Store) NodeName(_ context.Context, ref graph.Ref) (string, string, error) {
	return "", "", graph.NotFoundError{Ref: ref}
}

// Remove is a no-op.
func (s *Store) Remove(_ context.Context, _ graph.Ref) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ graph.Store = (*Store)(nil)
