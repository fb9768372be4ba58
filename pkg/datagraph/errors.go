package datagraph

import "errors"

// Sentinel errors returned by graph and container operations. Callers match
// them with errors.Is; messages carry the offending names and identities.
var (
	ErrNameCollision = errors.New("datagraph: name already used by a sibling")
	ErrInvalidParent = errors.New("datagraph: invalid parent")
	ErrInvalidName   = errors.New("datagraph: invalid name")
	ErrTupleMismatch = errors.New("datagraph: tuple count mismatch")
	ErrNotFound      = errors.New("datagraph: object not found")
	ErrTypeMismatch  = errors.New("datagraph: object type mismatch")
	ErrOutOfRange    = errors.New("datagraph: index out of range")
	// ErrUnsupported is returned when a geometry has no such derived structure.
	ErrUnsupported = errors.New("datagraph: operation not supported by geometry type")
	// ErrAttached is returned when inserting an object that already belongs to
	// a graph.
	ErrAttached = errors.New("datagraph: object already belongs to a graph")
	// ErrDetached is returned by operations that need the owning graph.
	ErrDetached = errors.New("datagraph: object is not part of a graph")
	// ErrIdentityInUse is returned by InsertWithID for a taken identity.
	ErrIdentityInUse = errors.New("datagraph: identity already in use")
)
