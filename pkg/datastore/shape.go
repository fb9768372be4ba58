package datastore

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape is an ordered list of dimension extents, slowest varying first.
type Shape []int

// Product returns the number of elements spanned by the shape. An empty
// shape spans one element.
func (s Shape) Product() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	return append(Shape(nil), s...)
}

// Equal reports element-wise equality.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Uint64s converts the shape to unsigned extents for persisted headers.
func (s Shape) Uint64s() []uint64 {
	out := make([]uint64, len(s))
	for i, d := range s {
		out[i] = uint64(d)
	}
	return out
}

// ShapeFromUint64s is the inverse of Shape.Uint64s.
func ShapeFromUint64s(dims []uint64) Shape {
	out := make(Shape, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}

// validate checks rank and extents. minExtent is 0 for tuple shapes and 1 for
// component and chunk shapes.
func (s Shape) validate(what string, minExtent int) error {
	if len(s) == 0 {
		return fmt.Errorf("datastore: %s shape must have at least one dimension", what)
	}
	for i, d := range s {
		if d < minExtent {
			return fmt.Errorf("datastore: %s shape %v has invalid extent %d at dimension %d", what, s, d, i)
		}
	}
	return nil
}

// Unravel converts a flat row-major index into per-dimension coordinates.
func (s Shape) Unravel(index int, coords []int) []int {
	if cap(coords) < len(s) {
		coords = make([]int, len(s))
	}
	coords = coords[:len(s)]
	for d := len(s) - 1; d >= 0; d-- {
		extent := s[d]
		if extent == 0 {
			coords[d] = 0
			continue
		}
		coords[d] = index % extent
		index /= extent
	}
	return coords
}

// Ravel converts per-dimension coordinates into a flat row-major index.
func (s Shape) Ravel(coords []int) int {
	index := 0
	for d, extent := range s {
		index = index*extent + coords[d]
	}
	return index
}
