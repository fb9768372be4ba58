package filterapi

import (
	"fmt"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

// Mode selects how an action materialises new data.
type Mode uint8

const (
	// ModePreflight creates metadata-only stores so a whole pipeline can be
	// simulated without allocating buffers.
	ModePreflight Mode = iota + 1
	// ModeExecute allocates real buffers.
	ModeExecute
)

func (m Mode) String() string {
	switch m {
	case ModePreflight:
		return "preflight"
	case ModeExecute:
		return "execute"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Action is a declarative structural change returned by preflight and
// applied by the driver before execute.
type Action interface {
	Apply(g *datagraph.Graph, mode Mode) error
	Describe() string
}

// Actions is an ordered action list.
type Actions []Action

// ActionError reports the action that failed while applying a list. Actions
// before Index were applied and stay applied.
type ActionError struct {
	Index  int
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("filterapi: action %d (%s): %v", e.Index, e.Action.Describe(), e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Apply applies every action in order and stops at the first failure.
func (as Actions) Apply(g *datagraph.Graph, mode Mode) error {
	for i, a := range as {
		if err := a.Apply(g, mode); err != nil {
			return &ActionError{Index: i, Action: a, Err: err}
		}
	}
	return nil
}

// resolveParent returns the identity of the parent of p.
func resolveParent(g *datagraph.Graph, p datagraph.Path) (datagraph.ID, error) {
	if len(p) == 0 {
		return datagraph.NoID, fmt.Errorf("%w: the root cannot be created", datagraph.ErrInvalidName)
	}
	parent, ok := g.GetByPath(p.Parent())
	if !ok {
		return datagraph.NoID, fmt.Errorf("%w: %s does not exist", datagraph.ErrInvalidParent, p.Parent())
	}
	return parent, nil
}

// CreateArrayAction creates a data array.
type CreateArrayAction struct {
	Path           datagraph.Path
	DataType       datastore.DataType
	TupleShape     datastore.Shape
	ComponentShape datastore.Shape
	// ChunkShape selects chunked storage when non-nil.
	ChunkShape datastore.Shape
}

// Apply creates the array with a metadata-only store in preflight mode.
func (a CreateArrayAction) Apply(g *datagraph.Graph, mode Mode) error {
	parent, err := resolveParent(g, a.Path)
	if err != nil {
		return err
	}
	comp := a.ComponentShape
	if len(comp) == 0 {
		comp = datastore.Shape{1}
	}
	var store datastore.Store
	if mode == ModePreflight {
		store, err = datastore.NewEmptyStore(a.DataType, a.TupleShape, comp, a.ChunkShape)
	} else {
		store, err = datastore.New(a.DataType, a.TupleShape, comp, a.ChunkShape)
	}
	if err != nil {
		return err
	}
	_, err = datagraph.CreateDataArray(g, a.Path.Name(), parent, store)
	return err
}

// Describe summarises the action.
func (a CreateArrayAction) Describe() string {
	return fmt.Sprintf("create %s array %s tuples %v components %v", a.DataType, a.Path, a.TupleShape, a.ComponentShape)
}

// CreateAttributeMatrixAction creates an attribute matrix.
type CreateAttributeMatrixAction struct {
	Path  datagraph.Path
	Shape datastore.Shape
}

// Apply creates the matrix.
func (a CreateAttributeMatrixAction) Apply(g *datagraph.Graph, _ Mode) error {
	parent, err := resolveParent(g, a.Path)
	if err != nil {
		return err
	}
	_, err = datagraph.CreateAttributeMatrix(g, a.Path.Name(), parent, a.Shape)
	return err
}

// Describe summarises the action.
func (a CreateAttributeMatrixAction) Describe() string {
	return fmt.Sprintf("create attribute matrix %s shape %v", a.Path, a.Shape)
}

// CreateGroupAction creates a group.
type CreateGroupAction struct {
	Path datagraph.Path
}

// Apply creates the group.
func (a CreateGroupAction) Apply(g *datagraph.Graph, _ Mode) error {
	parent, err := resolveParent(g, a.Path)
	if err != nil {
		return err
	}
	_, err = datagraph.CreateGroup(g, a.Path.Name(), parent)
	return err
}

// Describe summarises the action.
func (a CreateGroupAction) Describe() string { return fmt.Sprintf("create group %s", a.Path) }

// CreateImageGeometryAction creates an image geometry.
type CreateImageGeometryAction struct {
	Path datagraph.Path
	Spec datagraph.ImageSpec
}

// Apply creates the geometry and its optional cell data matrix.
func (a CreateImageGeometryAction) Apply(g *datagraph.Graph, _ Mode) error {
	parent, err := resolveParent(g, a.Path)
	if err != nil {
		return err
	}
	_, err = datagraph.CreateImageGeometry(g, a.Path.Name(), parent, a.Spec)
	return err
}

// Describe summarises the action.
func (a CreateImageGeometryAction) Describe() string {
	return fmt.Sprintf("create image geometry %s dimensions %v", a.Path, a.Spec.Dimensions)
}

// CreateNodeGeometryAction creates a vertex, edge, surface or volume mesh
// together with its shared lists.
type CreateNodeGeometryAction struct {
	Path datagraph.Path
	Spec datagraph.NodeGeometrySpec
}

// Apply creates the geometry; shared lists are metadata-only in preflight.
func (a CreateNodeGeometryAction) Apply(g *datagraph.Graph, mode Mode) error {
	parent, err := resolveParent(g, a.Path)
	if err != nil {
		return err
	}
	spec := a.Spec
	spec.MetadataOnly = mode == ModePreflight
	_, err = datagraph.CreateNodeGeometry(g, a.Path.Name(), parent, spec)
	return err
}

// Describe summarises the action.
func (a CreateNodeGeometryAction) Describe() string {
	return fmt.Sprintf("create %s geometry %s with %d vertices and %d elements",
		a.Spec.Type, a.Path, a.Spec.NumVertices, a.Spec.NumElements)
}

// DeleteDataAction removes an object and its subtree.
type DeleteDataAction struct {
	Path datagraph.Path
}

// Apply removes the object.
func (a DeleteDataAction) Apply(g *datagraph.Graph, _ Mode) error {
	return g.RemovePath(a.Path)
}

// Describe summarises the action.
func (a DeleteDataAction) Describe() string { return fmt.Sprintf("delete %s", a.Path) }

// CopyDataAction deep copies Source to Destination, which names the copy.
type CopyDataAction struct {
	Source      datagraph.Path
	Destination datagraph.Path
}

// Apply copies the subtree.
func (a CopyDataAction) Apply(g *datagraph.Graph, _ Mode) error {
	if len(a.Destination) == 0 {
		return fmt.Errorf("%w: copy destination is the root", datagraph.ErrInvalidName)
	}
	_, err := g.DeepCopyAs(a.Source, a.Destination.Parent(), a.Destination.Name())
	return err
}

// Describe summarises the action.
func (a CopyDataAction) Describe() string {
	return fmt.Sprintf("copy %s to %s", a.Source, a.Destination)
}

// RenameDataAction renames the object at Path.
type RenameDataAction struct {
	Path    datagraph.Path
	NewName string
}

// Apply renames the object.
func (a RenameDataAction) Apply(g *datagraph.Graph, _ Mode) error {
	id, ok := g.GetByPath(a.Path)
	if !ok || id == datagraph.NoID {
		return fmt.Errorf("%w: %s", datagraph.ErrNotFound, a.Path)
	}
	return g.Rename(id, a.NewName)
}

// Describe summarises the action.
func (a RenameDataAction) Describe() string {
	return fmt.Sprintf("rename %s to %s", a.Path, a.NewName)
}
