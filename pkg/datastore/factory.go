package datastore

import "fmt"

// New allocates a store for a runtime type tag. A nil chunkShape yields a
// contiguous store.
func New(dtype DataType, tupleShape, compShape, chunkShape Shape) (Store, error) {
	switch dtype {
	case Int8:
		return build[int8](tupleShape, compShape, chunkShape, nil)
	case UInt8:
		return build[uint8](tupleShape, compShape, chunkShape, nil)
	case Int16:
		return build[int16](tupleShape, compShape, chunkShape, nil)
	case UInt16:
		return build[uint16](tupleShape, compShape, chunkShape, nil)
	case Int32:
		return build[int32](tupleShape, compShape, chunkShape, nil)
	case UInt32:
		return build[uint32](tupleShape, compShape, chunkShape, nil)
	case Int64:
		return build[int64](tupleShape, compShape, chunkShape, nil)
	case UInt64:
		return build[uint64](tupleShape, compShape, chunkShape, nil)
	case Float32:
		return build[float32](tupleShape, compShape, chunkShape, nil)
	case Float64:
		return build[float64](tupleShape, compShape, chunkShape, nil)
	case Boolean:
		return build[bool](tupleShape, compShape, chunkShape, nil)
	default:
		return nil, fmt.Errorf("datastore: unsupported data type %v", dtype)
	}
}

// NewLazy is New for stores whose chunks arrive through loader.
func NewLazy(dtype DataType, tupleShape, compShape, chunkShape Shape, loader ChunkLoader) (Store, error) {
	if loader == nil {
		return nil, fmt.Errorf("datastore: nil chunk loader")
	}
	switch dtype {
	case Int8:
		return build[int8](tupleShape, compShape, chunkShape, loader)
	case UInt8:
		return build[uint8](tupleShape, compShape, chunkShape, loader)
	case Int16:
		return build[int16](tupleShape, compShape, chunkShape, loader)
	case UInt16:
		return build[uint16](tupleShape, compShape, chunkShape, loader)
	case Int32:
		return build[int32](tupleShape, compShape, chunkShape, loader)
	case UInt32:
		return build[uint32](tupleShape, compShape, chunkShape, loader)
	case Int64:
		return build[int64](tupleShape, compShape, chunkShape, loader)
	case UInt64:
		return build[uint64](tupleShape, compShape, chunkShape, loader)
	case Float32:
		return build[float32](tupleShape, compShape, chunkShape, loader)
	case Float64:
		return build[float64](tupleShape, compShape, chunkShape, loader)
	case Boolean:
		return build[bool](tupleShape, compShape, chunkShape, loader)
	default:
		return nil, fmt.Errorf("datastore: unsupported data type %v", dtype)
	}
}

func build[T Element](tupleShape, compShape, chunkShape Shape, loader ChunkLoader) (Store, error) {
	s, err := newStore[T](tupleShape, compShape, chunkShape, chunkShape != nil, loader)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Allocate returns s unchanged when it already has a buffer, otherwise a new
// zero-filled store with the same type and shapes.
func Allocate(s Store) (Store, error) {
	if s.Allocated() {
		return s, nil
	}
	var chunkShape Shape
	if s.Chunked() {
		chunkShape = s.ChunkShape()
	}
	return New(s.DataType(), s.TupleShape(), s.ComponentShape(), chunkShape)
}

// As returns the typed store behind s.
func As[T Element](s Store) (*DataStore[T], bool) {
	typed, ok := s.(*DataStore[T])
	return typed, ok
}
