// Package memstore provides an in-process implementation of graph.Store.
//
// Nodes and links are identity-deduplicated via content-addressed refs, so
// repeated writes of the same node or link are no-ops returning the existing
// ref. This is the default store for tests and for deployments that do not
// need durability.
package memstore

import (
	"context"
	"sync"

	"github.com/meshmindco/meshmind/pkg/graph"
)

type nodeRecord struct {
	nodeType string
	name     string
}

type linkRecord struct {
	linkType string
	outgoing []graph.Ref
}

// Store implements graph.Store using in-memory maps.
type Store struct {
	mu sync.RWMutex

	nodes map[graph.Ref]nodeRecord
	links map[graph.Ref]linkRecord

	// incident maps a ref to every link that includes it, in creation order.
	incident map[graph.Ref][]graph.Ref
}

// New creates an empty in-memory graph store.
func New() *Store {
	return &Store{
		nodes:    make(map[graph.Ref]nodeRecord),
		links:    make(map[graph.Ref]linkRecord),
		incident: make(map[graph.Ref][]graph.Ref),
	}
}

// AddNode creates or gets a typed, named node.
func (s *Store) AddNode(_ context.Context, nodeType, name string) (graph.Ref, error) {
	ref := graph.NodeRef(nodeType, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[ref]; !ok {
		s.nodes[ref] = nodeRecord{nodeType: nodeType, name: name}
	}
	return ref, nil
}

// AddLink creates or gets a typed link over the ordered refs.
func (s *Store) AddLink(_ context.Context, linkType string, refs ...graph.Ref) (graph.Ref, error) {
	ref := graph.LinkRef(linkType, refs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[ref]; ok {
		return ref, nil
	}

	outgoing := make([]graph.Ref, len(refs))
	copy(outgoing, refs)
	s.links[ref] = linkRecord{linkType: linkType, outgoing: outgoing}

	for _, member := range outgoing {
		s.incident[member] = append(s.incident[member], ref)
	}
	return ref, nil
}

// GetIncident returns every link that includes ref, in creation order.
func (s *Store) GetIncident(_ context.Context, ref graph.Ref) ([]graph.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := s.incident[ref]
	result := make([]graph.Ref, len(links))
	copy(result, links)
	return result, nil
}

// GetOutgoing returns the ordered tuple a link connects, or nil for nodes.
func (s *Store) GetOutgoing(_ context.Context, link graph.Ref) ([]graph.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.links[link]
	if !ok {
		return nil, nil
	}
	result := make([]graph.Ref, len(rec.outgoing))
	copy(result, rec.outgoing)
	return result, nil
}

// FindNode looks up a node by type and name. Absence is not an error.
func (s *Store) FindNode(_ context.Context, nodeType, name string) (graph.Ref, error) {
	ref := graph.NodeRef(nodeType, name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[ref]; !ok {
		return graph.RefNil, nil
	}
	return ref, nil
}

// NodeName returns the (type, name) of a node ref or the link type of a link.
func (s *Store) NodeName(_ context.Context, ref graph.Ref) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.nodes[ref]; ok {
		return n.nodeType, n.name, nil
	}
	if l, ok := s.links[ref]; ok {
		return l.linkType, "", nil
	}
	return "", "", graph.NotFoundError{Ref: ref}
}

// Remove deletes a node or link. Incident links of a removed node are kept;
// callers remove links first.
func (s *Store) Remove(_ context.Context, ref graph.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[ref]; ok {
		delete(s.nodes, ref)
		delete(s.incident, ref)
		return nil
	}

	rec, ok := s.links[ref]
	if !ok {
		return graph.NotFoundError{Ref: ref}
	}

	delete(s.links, ref)
	for _, member := range rec.outgoing {
		incident := s.incident[member]
		for i, l := range incident {
			if l == ref {
				s.incident[member] = append(incident[:i], incident[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

var _ graph.Store = (*Store)(nil)
