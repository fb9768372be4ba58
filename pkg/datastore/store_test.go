package datastore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func newFloatStore(t *testing.T, tuples Shape, comps Shape) *DataStore[float32] {
	t.Helper()
	s, err := NewDataStore[float32](tuples, comps)
	if err != nil {
		t.Fatalf("NewDataStore: %v", err)
	}
	return s
}

func TestDataStoreAccessors(t *testing.T) {
	s := newFloatStore(t, Shape{2, 3}, Shape{3})
	if s.NumTuples() != 6 || s.NumComponents() != 3 || s.Len() != 18 {
		t.Fatalf("unexpected sizes tuples=%d comps=%d len=%d", s.NumTuples(), s.NumComponents(), s.Len())
	}
	if s.DataType() != Float32 {
		t.Fatalf("expected float32 tag, got %v", s.DataType())
	}
	s.SetTuple(4, []float32{1, 2, 3})
	if got := s.Component(4, 2); got != 3 {
		t.Fatalf("component mismatch: %v", got)
	}
	if s.Chunked() || s.NumChunks() != 1 {
		t.Fatalf("expected contiguous store")
	}
}

func TestReshapeShrinkGrowEqual(t *testing.T) {
	s := newFloatStore(t, Shape{4}, Shape{1})
	s.SetValues([]float32{1, 2, 3, 4})

	if err := s.Reshape(Shape{2, 2}); err != nil {
		t.Fatalf("reshape equal: %v", err)
	}
	values, _ := s.Values()
	if want := []float32{1, 2, 3, 4}; !equalSlices(values, want) {
		t.Fatalf("equal-count reshape changed data: %v", values)
	}

	if err := s.Reshape(Shape{3}); err != nil {
		t.Fatalf("reshape shrink: %v", err)
	}
	values, _ = s.Values()
	if want := []float32{1, 2, 3}; !equalSlices(values, want) {
		t.Fatalf("shrink kept wrong prefix: %v", values)
	}

	s.SetInitValue(-1)
	if err := s.Reshape(Shape{5}); err != nil {
		t.Fatalf("reshape grow: %v", err)
	}
	values, _ = s.Values()
	if want := []float32{1, 2, 3, -1, -1}; !equalSlices(values, want) {
		t.Fatalf("grow fill mismatch: %v", values)
	}
}

func TestReshapeToSameCountIsIdempotent(t *testing.T) {
	s, err := NewChunkedDataStore[int32](Shape{3, 4}, Shape{2}, Shape{2, 3})
	if err != nil {
		t.Fatalf("NewChunkedDataStore: %v", err)
	}
	for i := 0; i < s.Len(); i++ {
		s.Set(i, int32(i*7))
	}
	before, _ := s.Values()
	if err := s.Reshape(Shape{3, 4}); err != nil {
		t.Fatalf("reshape: %v", err)
	}
	if err := s.Reshape(Shape{12}); err != nil {
		t.Fatalf("reshape rank change: %v", err)
	}
	after, _ := s.Values()
	if !equalSlices(before, after) {
		t.Fatalf("data changed after same-count reshape")
	}
}

func TestChunkedStoreMatchesContiguousOrder(t *testing.T) {
	chunked, err := NewChunkedDataStore[uint16](Shape{5, 3}, Shape{1}, Shape{2, 2})
	if err != nil {
		t.Fatalf("NewChunkedDataStore: %v", err)
	}
	if chunked.NumChunks() != 6 {
		t.Fatalf("expected 3x2 chunk grid, got %d chunks", chunked.NumChunks())
	}
	for i := 0; i < chunked.Len(); i++ {
		chunked.Set(i, uint16(i))
	}
	for i := 0; i < chunked.Len(); i++ {
		if chunked.At(i) != uint16(i) {
			t.Fatalf("element %d = %d", i, chunked.At(i))
		}
	}
	// tuple (4, 2) lives in chunk (2, 1) at local (0, 0)
	chunk, err := chunked.ReadChunk([]int{2, 1})
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if chunk[0] != 14 {
		t.Fatalf("expected tuple 14 at chunk origin, got %d", chunk[0])
	}
	if _, err := chunked.ReadChunk([]int{3, 0}); err == nil {
		t.Fatalf("expected out of grid coordinate to fail")
	}
}

func TestLazyStoreLoadsOnFirstRead(t *testing.T) {
	source, _ := NewChunkedDataStore[float64](Shape{4}, Shape{1}, Shape{2})
	source.SetValues([]float64{1.5, 2.5, 3.5, 4.5})
	loads := 0
	lazy, err := NewLazyDataStore[float64](Shape{4}, Shape{1}, Shape{2}, func(i int) ([]byte, error) {
		loads++
		return source.ChunkBytes(i, binary.LittleEndian)
	})
	if err != nil {
		t.Fatalf("NewLazyDataStore: %v", err)
	}
	if loads != 0 {
		t.Fatalf("loader called eagerly")
	}
	if lazy.At(3) != 4.5 {
		t.Fatalf("lazy read mismatch")
	}
	if loads != 1 {
		t.Fatalf("expected exactly one chunk load, got %d", loads)
	}
	_ = lazy.At(2)
	if loads != 1 {
		t.Fatalf("loaded chunk fetched twice")
	}
}

func TestLazyStoreRecordsLoadError(t *testing.T) {
	lazy, _ := NewLazyDataStore[int8](Shape{2}, Shape{1}, nil, func(int) ([]byte, error) {
		return nil, errors.New("disk gone")
	})
	_ = lazy.At(0)
	if !errors.Is(lazy.Err(), ErrChunkLoad) {
		t.Fatalf("expected ErrChunkLoad, got %v", lazy.Err())
	}
}

func TestWriteReadBinaryByteOrder(t *testing.T) {
	s, _ := NewDataStore[uint16](Shape{2}, Shape{1})
	s.SetValues([]uint16{0x0102, 0x0304})
	var buf bytes.Buffer
	if err := s.WriteBinary(&buf, binary.BigEndian); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected big-endian bytes %v", buf.Bytes())
	}
	back, _ := NewDataStore[uint16](Shape{2}, Shape{1})
	if err := back.ReadBinary(bytes.NewReader(buf.Bytes()), binary.BigEndian); err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if back.At(1) != 0x0304 {
		t.Fatalf("round trip mismatch")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newFloatStore(t, Shape{3}, Shape{1})
	s.SetValues([]float32{1, 2, 3})
	cp, ok := As[float32](s.Clone())
	if !ok {
		t.Fatalf("clone lost its type")
	}
	cp.Set(0, 99)
	if s.At(0) != 1 {
		t.Fatalf("clone aliases the original")
	}
}

func TestEmptyStoreIsMetadataOnly(t *testing.T) {
	e, err := NewEmptyStore(Int64, Shape{10}, Shape{3}, nil)
	if err != nil {
		t.Fatalf("NewEmptyStore: %v", err)
	}
	if e.Allocated() || e.Len() != 30 {
		t.Fatalf("unexpected empty store state")
	}
	if err := e.WriteBinary(&bytes.Buffer{}, binary.LittleEndian); !errors.Is(err, ErrNotAllocated) {
		t.Fatalf("expected ErrNotAllocated, got %v", err)
	}
	real, err := Allocate(e)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !real.Allocated() || real.DataType() != Int64 || real.Len() != 30 {
		t.Fatalf("allocated store mismatch")
	}
}

func TestNewRejectsBadShapes(t *testing.T) {
	if _, err := New(Float32, Shape{}, Shape{1}, nil); err == nil {
		t.Fatalf("expected rank-0 tuple shape to fail")
	}
	if _, err := New(Float32, Shape{4}, Shape{0}, nil); err == nil {
		t.Fatalf("expected zero component extent to fail")
	}
	if _, err := New(Float32, Shape{4}, Shape{1}, Shape{2, 2}); err == nil {
		t.Fatalf("expected chunk rank mismatch to fail")
	}
	if _, err := New(DataType(200), Shape{4}, Shape{1}, nil); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

func TestFloat64Bridge(t *testing.T) {
	s, _ := New(UInt8, Shape{2}, Shape{1}, nil)
	s.SetFloat64(1, 200.7)
	if got := s.Float64At(1); got != 200 {
		t.Fatalf("expected truncation to 200, got %v", got)
	}
	b, _ := New(Boolean, Shape{1}, Shape{1}, nil)
	b.SetFloat64(0, 3)
	if b.Float64At(0) != 1 {
		t.Fatalf("bool bridge mismatch")
	}
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCopyFrom(t *testing.T) {
	src := newFloatStore(t, Shape{3}, Shape{2})
	src.SetValues([]float32{1, 2, 3, 4, 5, 6})
	dst, err := NewChunkedDataStore[float32](Shape{4}, Shape{2}, Shape{3})
	if err != nil {
		t.Fatalf("chunked: %v", err)
	}
	if err := dst.CopyFrom(1, src, 1, 2); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, _ := dst.Values()
	want := []float32{0, 0, 3, 4, 5, 6, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("copy result %v want %v", got, want)
		}
	}

	if err := src.CopyFrom(1, src, 0, 2); err != nil {
		t.Fatalf("overlapping copy: %v", err)
	}
	got, _ = src.Values()
	if got[2] != 1 || got[3] != 2 || got[4] != 3 || got[5] != 4 {
		t.Fatalf("overlapping copy produced %v", got)
	}

	if err := dst.CopyFrom(3, src, 0, 2); err == nil {
		t.Fatalf("expected range error")
	}
	other := newFloatStore(t, Shape{3}, Shape{1})
	if err := dst.CopyFrom(0, other, 0, 1); err == nil {
		t.Fatalf("expected component mismatch")
	}
}
