package graph

import "errors"

// ErrUnavailable indicates the graph store collaborator could not be reached.
// Callers may degrade gracefully: the in-memory conversation state remains
// authoritative and graph durability is best effort.
var ErrUnavailable = errors.New("graph store unavailable")

// NotFoundError is returned when a ref does not exist in the store.
type NotFoundError struct {
	Ref Ref
}

func (e NotFoundError) Error() string {
	if e.Ref == RefNil {
		return "graph ref not found"
	}
	return "graph ref not found: " + string(e.Ref)
}
