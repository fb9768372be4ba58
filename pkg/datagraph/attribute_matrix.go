package datagraph

import (
	"errors"
	"fmt"

	"latticecore/pkg/datastore"
)

// AttributeMatrix is a group of data arrays that all share its tuple count.
type AttributeMatrix struct {
	objectBase
	shape datastore.Shape
}

// NewAttributeMatrix returns a detached attribute matrix.
func NewAttributeMatrix(name string, shape datastore.Shape) *AttributeMatrix {
	return &AttributeMatrix{objectBase: objectBase{name: name}, shape: shape.Clone()}
}

// CreateAttributeMatrix inserts a new attribute matrix under parent.
func CreateAttributeMatrix(g *Graph, name string, parent ID, shape datastore.Shape) (*AttributeMatrix, error) {
	if err := validateMatrixShape(shape); err != nil {
		return nil, err
	}
	m := NewAttributeMatrix(name, shape)
	if _, err := g.Insert(m, parent); err != nil {
		return nil, err
	}
	return m, nil
}

func validateMatrixShape(shape datastore.Shape) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: attribute matrix shape must have at least one dimension", ErrTupleMismatch)
	}
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("%w: negative extent in %v", ErrTupleMismatch, shape)
		}
	}
	return nil
}

// Kind returns KindAttributeMatrix.
func (m *AttributeMatrix) Kind() Kind { return KindAttributeMatrix }

// Shape returns a copy of the tuple shape.
func (m *AttributeMatrix) Shape() datastore.Shape { return m.shape.Clone() }

// NumTuples returns the product of the tuple shape.
func (m *AttributeMatrix) NumTuples() int { return m.shape.Product() }

// Arrays returns the child arrays in insertion order.
func (m *AttributeMatrix) Arrays() []*DataArray {
	if m.graph == nil {
		return nil
	}
	ids := m.graph.Children(m.id)
	out := make([]*DataArray, 0, len(ids))
	for _, id := range ids {
		if arr, ok := GetAs[*DataArray](m.graph, id); ok {
			out = append(out, arr)
		}
	}
	return out
}

// Resize sets a new tuple shape and reshapes every child array to it.
// Shrinking drops the trailing tuples of each array. Either every child is
// reshaped and the matrix takes the new shape, or nothing changes.
func (m *AttributeMatrix) Resize(shape datastore.Shape) error {
	if err := validateMatrixShape(shape); err != nil {
		return err
	}
	arrays := m.Arrays()
	var errs []error
	for _, arr := range arrays {
		if err := arr.store.Load(); err != nil {
			errs = append(errs, fmt.Errorf("array %q: %w", arr.name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	type undo struct {
		arr   *DataArray
		shape datastore.Shape
		prev  datastore.Store
	}
	done := make([]undo, 0, len(arrays))
	for _, arr := range arrays {
		u := undo{arr: arr, shape: arr.store.TupleShape()}
		if shape.Product() < arr.store.NumTuples() {
			// shrinking loses the tail, keep a copy to put back
			u.prev = arr.store.Clone()
		}
		if err := arr.store.Reshape(shape); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				d := done[i]
				if d.prev != nil {
					d.arr.store = d.prev
					continue
				}
				_ = d.arr.store.Reshape(d.shape)
			}
			return fmt.Errorf("array %q: %w", arr.name, err)
		}
		done = append(done, u)
	}
	m.shape = shape.Clone()
	return nil
}

// Validate reports every child array whose tuple count differs from the
// matrix's, joined into one error.
func (m *AttributeMatrix) Validate() error {
	want := m.NumTuples()
	var errs []error
	for _, arr := range m.Arrays() {
		if got := arr.NumTuples(); got != want {
			errs = append(errs, fmt.Errorf("%w: array %q has %d tuples, attribute matrix %q has %d",
				ErrTupleMismatch, arr.name, got, m.name, want))
		}
	}
	return errors.Join(errs...)
}

func (m *AttributeMatrix) admit(child Object) error {
	arr, ok := child.(*DataArray)
	if !ok {
		return fmt.Errorf("%w: attribute matrix %q holds only data arrays, got %s %q",
			ErrInvalidParent, m.name, child.Kind(), child.Name())
	}
	if got := arr.NumTuples(); got != m.NumTuples() {
		return fmt.Errorf("%w: array %q has %d tuples, attribute matrix %q has %d",
			ErrTupleMismatch, arr.name, got, m.name, m.NumTuples())
	}
	return nil
}

func (m *AttributeMatrix) clone() Object {
	return NewAttributeMatrix(m.name, m.shape)
}
