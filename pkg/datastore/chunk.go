package datastore

import "fmt"

// ChunkGrid describes how a tuple shape is tiled by a chunk shape. Edge chunks
// keep the full chunk extent; the cells past the tuple shape are padding.
//
// Every mapping below is a pure function of (tuple shape, chunk shape), so a
// reader can recompute chunk placement without any stored index.
type ChunkGrid struct {
	TupleShape Shape
	ChunkShape Shape
	GridShape  Shape
}

// NewChunkGrid validates the shapes and computes the grid extent.
func NewChunkGrid(tupleShape, chunkShape Shape) (ChunkGrid, error) {
	if err := tupleShape.validate("tuple", 0); err != nil {
		return ChunkGrid{}, err
	}
	if err := chunkShape.validate("chunk", 1); err != nil {
		return ChunkGrid{}, err
	}
	if len(chunkShape) != len(tupleShape) {
		return ChunkGrid{}, fmt.Errorf("datastore: chunk shape %v rank differs from tuple shape %v", chunkShape, tupleShape)
	}
	grid := make(Shape, len(tupleShape))
	for d := range tupleShape {
		grid[d] = (tupleShape[d] + chunkShape[d] - 1) / chunkShape[d]
	}
	return ChunkGrid{TupleShape: tupleShape.Clone(), ChunkShape: chunkShape.Clone(), GridShape: grid}, nil
}

// NumChunks returns the number of chunks in the grid.
func (g ChunkGrid) NumChunks() int {
	return g.GridShape.Product()
}

// TuplesPerChunk returns the (padded) tuple capacity of one chunk.
func (g ChunkGrid) TuplesPerChunk() int {
	return g.ChunkShape.Product()
}

// Locate maps a flat tuple index to the flat chunk index and the tuple offset
// inside that chunk, using a row-major divmod decomposition.
func (g ChunkGrid) Locate(tupleIndex int) (chunkIndex, local int) {
	rank := len(g.TupleShape)
	var stackCoords [8]int
	coords := g.TupleShape.Unravel(tupleIndex, stackCoords[:0])
	chunkIndex = 0
	local = 0
	for d := 0; d < rank; d++ {
		c := coords[d]
		chunkIndex = chunkIndex*g.GridShape[d] + c/g.ChunkShape[d]
		local = local*g.ChunkShape[d] + c%g.ChunkShape[d]
	}
	return chunkIndex, local
}

// ChunkCoord returns the chunk coordinates containing the given tuple.
func (g ChunkGrid) ChunkCoord(tupleIndex int) []int {
	coords := g.TupleShape.Unravel(tupleIndex, nil)
	for d := range coords {
		coords[d] /= g.ChunkShape[d]
	}
	return coords
}

// ChunkIndex converts chunk coordinates to a flat chunk index.
func (g ChunkGrid) ChunkIndex(coord []int) (int, error) {
	if len(coord) != len(g.GridShape) {
		return 0, fmt.Errorf("datastore: chunk coordinate %v has rank %d, want %d", coord, len(coord), len(g.GridShape))
	}
	for d, c := range coord {
		if c < 0 || c >= g.GridShape[d] {
			return 0, fmt.Errorf("datastore: chunk coordinate %v outside grid %v", coord, g.GridShape)
		}
	}
	return g.GridShape.Ravel(coord), nil
}

// ChunkCoordOf converts a flat chunk index into chunk coordinates.
func (g ChunkGrid) ChunkCoordOf(chunkIndex int) []int {
	return g.GridShape.Unravel(chunkIndex, nil)
}
