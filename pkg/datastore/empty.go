package datastore

import (
	"encoding/binary"
	"io"
)

// EmptyStore carries the shape and type of a store without a buffer. Actions
// applied while preflighting a pipeline create these so that later steps can
// see declared outputs without any allocation.
type EmptyStore struct {
	dtype      DataType
	tupleShape Shape
	compShape  Shape
	chunkShape Shape
}

var _ Store = (*EmptyStore)(nil)

// NewEmptyStore validates the shapes and returns a metadata-only store. A nil
// chunkShape means contiguous.
func NewEmptyStore(dtype DataType, tupleShape, compShape, chunkShape Shape) (*EmptyStore, error) {
	if err := tupleShape.validate("tuple", 0); err != nil {
		return nil, err
	}
	if err := compShape.validate("component", 1); err != nil {
		return nil, err
	}
	if chunkShape != nil {
		if _, err := NewChunkGrid(tupleShape, chunkShape); err != nil {
			return nil, err
		}
	}
	return &EmptyStore{dtype: dtype, tupleShape: tupleShape.Clone(), compShape: compShape.Clone(), chunkShape: chunkShape.Clone()}, nil
}

func (e *EmptyStore) DataType() DataType    { return e.dtype }
func (e *EmptyStore) TupleShape() Shape     { return e.tupleShape.Clone() }
func (e *EmptyStore) ComponentShape() Shape { return e.compShape.Clone() }
func (e *EmptyStore) NumTuples() int        { return e.tupleShape.Product() }
func (e *EmptyStore) NumComponents() int    { return e.compShape.Product() }
func (e *EmptyStore) Len() int              { return e.NumTuples() * e.NumComponents() }
func (e *EmptyStore) Chunked() bool         { return e.chunkShape != nil }
func (e *EmptyStore) Allocated() bool       { return false }

func (e *EmptyStore) ChunkShape() Shape {
	if e.chunkShape == nil {
		return contiguousChunk(e.tupleShape)
	}
	return e.chunkShape.Clone()
}

func (e *EmptyStore) NumChunks() int {
	if e.chunkShape == nil {
		return 1
	}
	grid, err := NewChunkGrid(e.tupleShape, e.chunkShape)
	if err != nil {
		return 0
	}
	return grid.NumChunks()
}

func (e *EmptyStore) Reshape(tupleShape Shape) error {
	if err := tupleShape.validate("tuple", 0); err != nil {
		return err
	}
	if e.chunkShape != nil && len(e.chunkShape) != len(tupleShape) {
		e.chunkShape = nil
	}
	e.tupleShape = tupleShape.Clone()
	return nil
}

func (e *EmptyStore) Clone() Store {
	cp := *e
	cp.tupleShape = e.tupleShape.Clone()
	cp.compShape = e.compShape.Clone()
	cp.chunkShape = e.chunkShape.Clone()
	return &cp
}

// Float64At always returns 0; there is no buffer to read.
func (e *EmptyStore) Float64At(int) float64 { return 0 }

// SetFloat64 is a no-op.
func (e *EmptyStore) SetFloat64(int, float64) {}

// Err is always nil; nothing is ever loaded.
func (e *EmptyStore) Err() error { return nil }

func (e *EmptyStore) Load() error { return nil }

func (e *EmptyStore) WriteBinary(io.Writer, binary.ByteOrder) error { return ErrNotAllocated }
func (e *EmptyStore) ReadBinary(io.Reader, binary.ByteOrder) error  { return ErrNotAllocated }

func (e *EmptyStore) ChunkBytes(int, binary.ByteOrder) ([]byte, error) {
	return nil, ErrNotAllocated
}

func (e *EmptyStore) SetChunkBytes(int, []byte, binary.ByteOrder) error {
	return ErrNotAllocated
}
