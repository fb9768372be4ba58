package datagraph

import (
	"fmt"

	"latticecore/pkg/datastore"
)

// DataArray is the named, identity-bearing wrapper around a raw store.
type DataArray struct {
	objectBase
	store datastore.Store
}

// NewDataArray wraps store in a detached array.
func NewDataArray(name string, store datastore.Store) *DataArray {
	return &DataArray{objectBase: objectBase{name: name}, store: store}
}

// CreateDataArray inserts a new array under parent. Attribute matrix parents
// reject stores whose tuple count differs from theirs.
func CreateDataArray(g *Graph, name string, parent ID, store datastore.Store) (*DataArray, error) {
	if store == nil {
		return nil, fmt.Errorf("datagraph: array %q has no store", name)
	}
	arr := NewDataArray(name, store)
	if _, err := g.Insert(arr, parent); err != nil {
		return nil, err
	}
	return arr, nil
}

// CreateTypedArray allocates a contiguous zero-filled store of element type T
// and inserts it under parent.
func CreateTypedArray[T datastore.Element](g *Graph, name string, parent ID, tupleShape, compShape datastore.Shape) (*DataArray, *datastore.DataStore[T], error) {
	store, err := datastore.NewDataStore[T](tupleShape, compShape)
	if err != nil {
		return nil, nil, err
	}
	arr, err := CreateDataArray(g, name, parent, store)
	if err != nil {
		return nil, nil, err
	}
	return arr, store, nil
}

// Kind returns KindDataArray.
func (a *DataArray) Kind() Kind { return KindDataArray }

// Store returns the backing store.
func (a *DataArray) Store() datastore.Store { return a.store }

// DataType returns the element type of the backing store.
func (a *DataArray) DataType() datastore.DataType { return a.store.DataType() }

// TupleShape returns the tuple shape of the backing store.
func (a *DataArray) TupleShape() datastore.Shape { return a.store.TupleShape() }

// ComponentShape returns the per-tuple component shape.
func (a *DataArray) ComponentShape() datastore.Shape { return a.store.ComponentShape() }

// NumTuples returns the tuple count.
func (a *DataArray) NumTuples() int { return a.store.NumTuples() }

// NumComponents returns the component count per tuple.
func (a *DataArray) NumComponents() int { return a.store.NumComponents() }

// SetStore replaces the backing store, for example when an array declared
// during preflight receives its buffer.
func (a *DataArray) SetStore(store datastore.Store) error {
	if store == nil {
		return fmt.Errorf("datagraph: array %q: nil store", a.name)
	}
	if m, ok := a.parentMatrix(); ok && store.NumTuples() != m.NumTuples() {
		return fmt.Errorf("%w: store for %q has %d tuples, attribute matrix %q has %d",
			ErrTupleMismatch, a.name, store.NumTuples(), m.name, m.NumTuples())
	}
	a.store = store
	return nil
}

// Reshape changes the tuple shape of the backing store. Inside an attribute
// matrix the tuple count must stay equal to the matrix's; resize the matrix
// instead to change it.
func (a *DataArray) Reshape(tupleShape datastore.Shape) error {
	if m, ok := a.parentMatrix(); ok && tupleShape.Product() != m.NumTuples() {
		return fmt.Errorf("%w: reshape of %q to %v breaks attribute matrix %q with %d tuples",
			ErrTupleMismatch, a.name, tupleShape, m.name, m.NumTuples())
	}
	return a.store.Reshape(tupleShape)
}

func (a *DataArray) parentMatrix() (*AttributeMatrix, bool) {
	if a.graph == nil {
		return nil, false
	}
	parent, ok := a.graph.Parent(a.id)
	if !ok {
		return nil, false
	}
	return GetAs[*AttributeMatrix](a.graph, parent)
}

func (a *DataArray) clone() Object {
	return NewDataArray(a.name, a.store.Clone())
}

// ArrayStore returns the typed store behind a. It fails for metadata-only
// stores and for element types other than T.
func ArrayStore[T datastore.Element](a *DataArray) (*datastore.DataStore[T], error) {
	if !a.store.Allocated() {
		return nil, fmt.Errorf("array %q: %w", a.name, datastore.ErrNotAllocated)
	}
	typed, ok := datastore.As[T](a.store)
	if !ok {
		return nil, fmt.Errorf("%w: array %q holds %s, want %s", ErrTypeMismatch, a.name, a.store.DataType(), datastore.DataTypeOf[T]())
	}
	return typed, nil
}
