// Package datastore provides the typed raw buffers behind every data array:
// a tuple shape, a per-tuple component shape, an element type tag and either
// one contiguous buffer or a grid of equally shaped chunks.
package datastore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Element enumerates the Go types a DataStore can hold.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64 | bool
}

var (
	// ErrNotAllocated is returned by operations that need a buffer on a
	// metadata-only store.
	ErrNotAllocated = errors.New("datastore: store has no allocated buffer")
	// ErrChunkLoad wraps failures reported by a ChunkLoader.
	ErrChunkLoad = errors.New("datastore: chunk load failed")
)

// Store is the type-erased view of a raw buffer. Contiguous storage is the
// single-chunk case of the same interface.
type Store interface {
	DataType() DataType
	TupleShape() Shape
	ComponentShape() Shape
	NumTuples() int
	NumComponents() int
	// Len returns NumTuples()*NumComponents().
	Len() int
	// ChunkShape returns the tuple extent of one chunk. For contiguous stores
	// it equals the tuple shape.
	ChunkShape() Shape
	NumChunks() int
	Chunked() bool
	// Allocated is false for metadata-only stores.
	Allocated() bool
	// Reshape changes the tuple shape. Shrinking keeps the leading elements,
	// growing fills the new tail with the init value, and an equal element
	// count only updates metadata.
	Reshape(tupleShape Shape) error
	Clone() Store
	// Float64At and SetFloat64 give numeric access without knowing T.
	Float64At(i int) float64
	SetFloat64(i int, v float64)
	WriteBinary(w io.Writer, order binary.ByteOrder) error
	ReadBinary(r io.Reader, order binary.ByteOrder) error
	// ChunkBytes encodes one chunk, including padding, in the given byte order.
	ChunkBytes(chunkIndex int, order binary.ByteOrder) ([]byte, error)
	SetChunkBytes(chunkIndex int, data []byte, order binary.ByteOrder) error
	// Err returns the first chunk load failure hit by an element accessor.
	// At and Float64At read the init value and Set drops the write after such
	// a failure, so loops over elements must check Err when they finish.
	Err() error
	// Load fetches every lazy chunk and returns the first failure.
	Load() error
}

// ChunkLoader supplies the little-endian encoded contents of a chunk on first
// access. Calls block until the bytes are available.
type ChunkLoader func(chunkIndex int) ([]byte, error)

// DataStore is the concrete buffer for element type T.
type DataStore[T Element] struct {
	tupleShape Shape
	compShape  Shape
	chunked    bool
	grid       ChunkGrid
	chunks     [][]T
	loader     ChunkLoader
	loadErr    error
	initValue  T
}

var _ Store = (*DataStore[float32])(nil)

// NewDataStore allocates a contiguous zero-filled store.
func NewDataStore[T Element](tupleShape, compShape Shape) (*DataStore[T], error) {
	return newStore[T](tupleShape, compShape, nil, false, nil)
}

// NewChunkedDataStore allocates a store tiled by chunkShape.
func NewChunkedDataStore[T Element](tupleShape, compShape, chunkShape Shape) (*DataStore[T], error) {
	if chunkShape == nil {
		return nil, fmt.Errorf("datastore: chunk shape required for a chunked store")
	}
	return newStore[T](tupleShape, compShape, chunkShape, true, nil)
}

// NewLazyDataStore builds a chunked store whose chunks are fetched through
// loader on first access. A nil chunkShape means a single chunk.
func NewLazyDataStore[T Element](tupleShape, compShape, chunkShape Shape, loader ChunkLoader) (*DataStore[T], error) {
	if loader == nil {
		return nil, fmt.Errorf("datastore: nil chunk loader")
	}
	return newStore[T](tupleShape, compShape, chunkShape, chunkShape != nil, loader)
}

func newStore[T Element](tupleShape, compShape, chunkShape Shape, chunked bool, loader ChunkLoader) (*DataStore[T], error) {
	if err := compShape.validate("component", 1); err != nil {
		return nil, err
	}
	if !chunked {
		chunkShape = contiguousChunk(tupleShape)
	}
	grid, err := NewChunkGrid(tupleShape, chunkShape)
	if err != nil {
		return nil, err
	}
	s := &DataStore[T]{
		tupleShape: tupleShape.Clone(),
		compShape:  compShape.Clone(),
		chunked:    chunked,
		grid:       grid,
		loader:     loader,
	}
	n := grid.NumChunks()
	if !chunked {
		n = 1
	}
	s.chunks = make([][]T, n)
	if loader == nil {
		per := s.chunkLen()
		for i := range s.chunks {
			s.chunks[i] = make([]T, per)
		}
	}
	return s, nil
}

// contiguousChunk returns a chunk shape covering the whole tuple shape. Zero
// extents are clamped to one so the grid stays valid for empty stores.
func contiguousChunk(tupleShape Shape) Shape {
	out := make(Shape, len(tupleShape))
	for i, d := range tupleShape {
		if d < 1 {
			d = 1
		}
		out[i] = d
	}
	return out
}

// chunkLen is the element length of one chunk buffer. A contiguous store
// holds exactly Len() elements; chunked stores pad edge chunks.
func (s *DataStore[T]) chunkLen() int {
	if !s.chunked {
		return s.Len()
	}
	return s.grid.TuplesPerChunk() * s.compShape.Product()
}

// DataType returns the tag for T.
func (s *DataStore[T]) DataType() DataType { return DataTypeOf[T]() }

// TupleShape returns a copy of the tuple shape.
func (s *DataStore[T]) TupleShape() Shape { return s.tupleShape.Clone() }

// ComponentShape returns a copy of the component shape.
func (s *DataStore[T]) ComponentShape() Shape { return s.compShape.Clone() }

// NumTuples returns the product of the tuple shape.
func (s *DataStore[T]) NumTuples() int { return s.tupleShape.Product() }

// NumComponents returns the product of the component shape.
func (s *DataStore[T]) NumComponents() int { return s.compShape.Product() }

// Len returns the total element count.
func (s *DataStore[T]) Len() int { return s.NumTuples() * s.NumComponents() }

// ChunkShape returns a copy of the chunk extent.
func (s *DataStore[T]) ChunkShape() Shape { return s.grid.ChunkShape.Clone() }

// NumChunks returns the number of chunk buffers; one for contiguous stores.
func (s *DataStore[T]) NumChunks() int { return len(s.chunks) }

// Chunked reports whether the store was created with an explicit chunk shape.
func (s *DataStore[T]) Chunked() bool { return s.chunked }

// Allocated is always true for a DataStore.
func (s *DataStore[T]) Allocated() bool { return true }

// Grid returns the chunk grid.
func (s *DataStore[T]) Grid() ChunkGrid { return s.grid }

// SetInitValue sets the value used to fill storage added by Reshape.
func (s *DataStore[T]) SetInitValue(v T) { s.initValue = v }

// InitValue returns the fill value used when growing.
func (s *DataStore[T]) InitValue() T { return s.initValue }

// Err returns the first chunk load failure seen by element accessors, which
// cannot report errors themselves.
func (s *DataStore[T]) Err() error { return s.loadErr }

// Load fetches every chunk not yet in memory.
func (s *DataStore[T]) Load() error {
	for i := range s.chunks {
		if _, err := s.chunk(i); err != nil {
			return err
		}
	}
	return nil
}

func (s *DataStore[T]) chunk(index int) ([]T, error) {
	if c := s.chunks[index]; c != nil {
		return c, nil
	}
	if s.loader == nil {
		return nil, fmt.Errorf("%w: chunk %d missing", ErrChunkLoad, index)
	}
	raw, err := s.loader(index)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrChunkLoad, index, err)
	}
	c := make([]T, s.chunkLen())
	if err := decodeInto(raw, binary.LittleEndian, c); err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrChunkLoad, index, err)
	}
	s.chunks[index] = c
	return c, nil
}

// locate maps a flat element index to its chunk slice and offset.
func (s *DataStore[T]) locate(i int) ([]T, int) {
	ncomp := s.NumComponents()
	tuple, comp := i/ncomp, i%ncomp
	var chunkIndex, local int
	if !s.chunked {
		chunkIndex, local = 0, tuple
	} else {
		chunkIndex, local = s.grid.Locate(tuple)
	}
	c, err := s.chunk(chunkIndex)
	if err != nil {
		if s.loadErr == nil {
			s.loadErr = err
		}
		return nil, 0
	}
	return c, local*ncomp + comp
}

// At returns the element at flat index i (tuple-major, component-minor).
func (s *DataStore[T]) At(i int) T {
	c, off := s.locate(i)
	if c == nil {
		return s.initValue
	}
	return c[off]
}

// Set stores v at flat index i.
func (s *DataStore[T]) Set(i int, v T) {
	c, off := s.locate(i)
	if c == nil {
		return
	}
	c[off] = v
}

// Component returns component comp of tuple tuple.
func (s *DataStore[T]) Component(tuple, comp int) T {
	return s.At(tuple*s.NumComponents() + comp)
}

// SetComponent stores component comp of tuple tuple.
func (s *DataStore[T]) SetComponent(tuple, comp int, v T) {
	s.Set(tuple*s.NumComponents()+comp, v)
}

// Tuple copies tuple i into dst, growing it if needed.
func (s *DataStore[T]) Tuple(i int, dst []T) []T {
	ncomp := s.NumComponents()
	if cap(dst) < ncomp {
		dst = make([]T, ncomp)
	}
	dst = dst[:ncomp]
	for c := 0; c < ncomp; c++ {
		dst[c] = s.At(i*ncomp + c)
	}
	return dst
}

// CopyFrom copies count tuples of src, starting at srcTuple, into s starting
// at dstTuple. Both stores must have the same component count. src may be s;
// overlapping ranges copy as if through a temporary buffer.
func (s *DataStore[T]) CopyFrom(dstTuple int, src *DataStore[T], srcTuple, count int) error {
	ncomp := s.NumComponents()
	if src.NumComponents() != ncomp {
		return fmt.Errorf("datastore: copy %d-component tuples into %d-component store", src.NumComponents(), ncomp)
	}
	if count < 0 || srcTuple < 0 || dstTuple < 0 ||
		srcTuple+count > src.NumTuples() || dstTuple+count > s.NumTuples() {
		return fmt.Errorf("datastore: copy of %d tuples from %d to %d out of range", count, srcTuple, dstTuple)
	}
	n := count * ncomp
	buf := make([]T, n)
	for i := 0; i < n; i++ {
		buf[i] = src.At(srcTuple*ncomp + i)
	}
	if err := src.Err(); err != nil {
		return err
	}
	for i, v := range buf {
		s.Set(dstTuple*ncomp+i, v)
	}
	return nil
}

// SetTuple writes values into tuple i.
func (s *DataStore[T]) SetTuple(i int, values []T) {
	ncomp := s.NumComponents()
	for c := 0; c < ncomp && c < len(values); c++ {
		s.Set(i*ncomp+c, values[c])
	}
}

// Fill sets every element to v.
func (s *DataStore[T]) Fill(v T) error {
	for i := range s.chunks {
		c, err := s.chunk(i)
		if err != nil {
			return err
		}
		for j := range c {
			c[j] = v
		}
	}
	return nil
}

// ReadChunk returns the backing slice of the chunk at coord. The slice
// aliases the store; edge chunks include padding.
func (s *DataStore[T]) ReadChunk(coord []int) ([]T, error) {
	index, err := s.grid.ChunkIndex(coord)
	if err != nil {
		return nil, err
	}
	return s.chunk(index)
}

// Contiguous returns the backing slice of an unchunked store.
func (s *DataStore[T]) Contiguous() ([]T, bool) {
	if s.chunked {
		return nil, false
	}
	c, err := s.chunk(0)
	if err != nil {
		return nil, false
	}
	return c, true
}

// Values returns a copy of every element in flat tuple order.
func (s *DataStore[T]) Values() ([]T, error) {
	if c, ok := s.Contiguous(); ok {
		return append([]T(nil), c...), nil
	}
	n := s.Len()
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = s.At(i)
	}
	return out, s.loadErr
}

// SetValues overwrites the leading elements with values.
func (s *DataStore[T]) SetValues(values []T) {
	n := s.Len()
	if c, ok := s.Contiguous(); ok {
		copy(c, values)
		return
	}
	for i := 0; i < n && i < len(values); i++ {
		s.Set(i, values[i])
	}
}

// Reshape changes the tuple shape.
func (s *DataStore[T]) Reshape(tupleShape Shape) error {
	if err := tupleShape.validate("tuple", 0); err != nil {
		return err
	}
	oldLen := s.Len()
	newLen := tupleShape.Product() * s.NumComponents()

	if !s.chunked {
		c, err := s.chunk(0)
		if err != nil {
			return err
		}
		grid, err := NewChunkGrid(tupleShape, contiguousChunk(tupleShape))
		if err != nil {
			return err
		}
		if newLen != oldLen {
			c = resized(c[:oldLen], newLen, s.initValue)
		}
		s.tupleShape = tupleShape.Clone()
		s.grid = grid
		s.chunks = [][]T{c}
		return nil
	}

	if tupleShape.Equal(s.tupleShape) {
		return nil
	}
	flat, err := s.Values()
	if err != nil {
		return err
	}
	flat = resized(flat, newLen, s.initValue)
	chunkShape := contiguousChunk(tupleShape)
	if s.chunked && len(s.grid.ChunkShape) == len(tupleShape) {
		for d := range chunkShape {
			if s.grid.ChunkShape[d] < chunkShape[d] {
				chunkShape[d] = s.grid.ChunkShape[d]
			}
		}
	}
	next, err := newStore[T](tupleShape, s.compShape, chunkShape, true, nil)
	if err != nil {
		return err
	}
	next.SetValues(flat)
	s.tupleShape = next.tupleShape
	s.grid = next.grid
	s.chunks = next.chunks
	s.loader = nil
	return nil
}

// resized returns a slice of length n holding the prefix of c, filling any new
// tail with fill. Shrinking copies so the discarded tail can be released.
func resized[T Element](c []T, n int, fill T) []T {
	out := make([]T, n)
	copied := copy(out, c)
	var zero T
	if fill != zero {
		for i := copied; i < n; i++ {
			out[i] = fill
		}
	}
	return out
}

// Clone returns a deep copy. Lazy chunks are loaded first.
func (s *DataStore[T]) Clone() Store {
	return s.CloneTyped()
}

// CloneTyped is Clone without the interface conversion.
func (s *DataStore[T]) CloneTyped() *DataStore[T] {
	cp := &DataStore[T]{
		tupleShape: s.tupleShape.Clone(),
		compShape:  s.compShape.Clone(),
		chunked:    s.chunked,
		grid:       ChunkGrid{TupleShape: s.grid.TupleShape.Clone(), ChunkShape: s.grid.ChunkShape.Clone(), GridShape: s.grid.GridShape.Clone()},
		chunks:     make([][]T, len(s.chunks)),
		initValue:  s.initValue,
	}
	for i := range s.chunks {
		c, err := s.chunk(i)
		if err != nil {
			// Keep the loader so the copy can retry on access.
			cp.loader = s.loader
			continue
		}
		cp.chunks[i] = append([]T(nil), c...)
	}
	return cp
}

// Float64At converts the element at i to float64.
func (s *DataStore[T]) Float64At(i int) float64 {
	return toFloat64(s.At(i))
}

// SetFloat64 converts v to T and stores it at i.
func (s *DataStore[T]) SetFloat64(i int, v float64) {
	s.Set(i, fromFloat64[T](v))
}

// WriteBinary writes every element in flat tuple order without padding.
func (s *DataStore[T]) WriteBinary(w io.Writer, order binary.ByteOrder) error {
	values, err := s.Values()
	if err != nil {
		return err
	}
	return binary.Write(w, order, values)
}

// ReadBinary fills the store from Len() densely packed elements.
func (s *DataStore[T]) ReadBinary(r io.Reader, order binary.ByteOrder) error {
	values := make([]T, s.Len())
	if err := binary.Read(r, order, values); err != nil {
		return fmt.Errorf("datastore: read %d %s elements: %w", len(values), s.DataType(), err)
	}
	s.SetValues(values)
	return nil
}

// ChunkBytes encodes chunk chunkIndex.
func (s *DataStore[T]) ChunkBytes(chunkIndex int, order binary.ByteOrder) ([]byte, error) {
	if chunkIndex < 0 || chunkIndex >= len(s.chunks) {
		return nil, fmt.Errorf("datastore: chunk index %d out of range", chunkIndex)
	}
	c, err := s.chunk(chunkIndex)
	if err != nil {
		return nil, err
	}
	return encode(c, order)
}

// SetChunkBytes replaces chunk chunkIndex with decoded data.
func (s *DataStore[T]) SetChunkBytes(chunkIndex int, data []byte, order binary.ByteOrder) error {
	if chunkIndex < 0 || chunkIndex >= len(s.chunks) {
		return fmt.Errorf("datastore: chunk index %d out of range", chunkIndex)
	}
	c := make([]T, s.chunkLen())
	if err := decodeInto(data, order, c); err != nil {
		return fmt.Errorf("datastore: chunk %d: %w", chunkIndex, err)
	}
	s.chunks[chunkIndex] = c
	return nil
}
