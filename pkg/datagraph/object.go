// Package datagraph implements the identity-addressed object graph: groups,
// attribute matrices, data arrays and geometries living in one arena, linked
// to each other by ID rather than by pointer.
package datagraph

import "fmt"

// Kind tags the closed set of object variants.
type Kind uint8

// Object kinds.
const (
	KindGroup Kind = iota + 1
	KindAttributeMatrix
	KindDataArray
	KindGeometry
)

var kindNames = map[Kind]string{
	KindGroup:           "group",
	KindAttributeMatrix: "attribute_matrix",
	KindDataArray:       "data_array",
	KindGeometry:        "geometry",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown object kind %q", ErrTypeMismatch, s)
}

// Object is implemented by every value the graph can own. The unexported
// methods close the set to this package.
type Object interface {
	ID() ID
	Name() string
	Kind() Kind
	base() *objectBase
	// clone returns a detached deep copy. References to other objects are
	// copied verbatim; the graph remaps them when needed.
	clone() Object
}

// container is implemented by objects that may hold children. admit rejects
// children the container cannot hold.
type container interface {
	Object
	admit(child Object) error
}

// referrer is implemented by objects holding non-owning identity references.
// rewriteRefs replaces each reference r with fn(r); references rewritten to
// NoID are cleared.
type referrer interface {
	Object
	rewriteRefs(fn func(ID) ID)
}

type objectBase struct {
	id    ID
	name  string
	graph *Graph
}

// ID returns the identity assigned on insertion, or NoID while detached.
func (b *objectBase) ID() ID { return b.id }

// Name returns the object's name among its siblings.
func (b *objectBase) Name() string { return b.name }

// Graph returns the owning graph, or nil while detached.
func (b *objectBase) Graph() *Graph { return b.graph }

func (b *objectBase) base() *objectBase { return b }

func (b *objectBase) attached() (*Graph, error) {
	if b.graph == nil {
		return nil, fmt.Errorf("%w: %q", ErrDetached, b.name)
	}
	return b.graph, nil
}

// Group is a general ordered container of named children.
type Group struct {
	objectBase
}

// NewGroup returns a detached group.
func NewGroup(name string) *Group {
	return &Group{objectBase: objectBase{name: name}}
}

// CreateGroup inserts a new group under parent.
func CreateGroup(g *Graph, name string, parent ID) (*Group, error) {
	grp := NewGroup(name)
	if _, err := g.Insert(grp, parent); err != nil {
		return nil, err
	}
	return grp, nil
}

// Kind returns KindGroup.
func (grp *Group) Kind() Kind { return KindGroup }

func (grp *Group) admit(Object) error { return nil }

func (grp *Group) clone() Object { return NewGroup(grp.name) }
