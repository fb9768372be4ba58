package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

// ReadOptions configures Read.
type ReadOptions struct {
	// Lazy keeps chunk blocks encoded until a store first touches them.
	Lazy bool
}

// Read rebuilds a graph written by Write. Identities, names, kinds and every
// reference are restored exactly. A document that cannot be rebuilt
// consistently fails with ErrStructure and yields no graph.
func Read(r io.Reader, opts ReadOptions) (*datagraph.Graph, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, magic[:])
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	var doc document
	if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: document: %v", ErrFormat, err)
	}
	switch doc.Compression {
	case compressionNone, compressionSnappy:
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", ErrFormat, doc.Compression)
	}
	return rebuild(&doc, opts)
}

type pendingGeometry struct {
	geom datagraph.Geometry
	rec  *geometryRecord
}

// rebuild inserts every object with its recorded identity, then resolves
// geometry references once all identities exist.
func rebuild(doc *document, opts ReadOptions) (*datagraph.Graph, error) {
	g := datagraph.New()
	var geoms []pendingGeometry
	for i := range doc.Nodes {
		rec := &doc.Nodes[i]
		obj, err := decodeObject(rec, doc.Compression, opts.Lazy)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d %q: %w", ErrStructure, rec.ID, rec.Name, err)
		}
		if err := g.InsertWithID(obj, datagraph.ID(rec.Parent), datagraph.ID(rec.ID)); err != nil {
			return nil, fmt.Errorf("%w: node %d %q: %w", ErrStructure, rec.ID, rec.Name, err)
		}
		if geom, ok := obj.(datagraph.Geometry); ok {
			geoms = append(geoms, pendingGeometry{geom: geom, rec: rec.Geometry})
		}
	}
	for _, p := range geoms {
		if err := resolveGeometry(p.geom, p.rec); err != nil {
			return nil, fmt.Errorf("%w: geometry %q: %w", ErrStructure, p.geom.Name(), err)
		}
	}
	return g, nil
}

func decodeObject(rec *nodeRecord, compression string, lazy bool) (datagraph.Object, error) {
	kind, err := datagraph.ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case datagraph.KindGroup:
		return datagraph.NewGroup(rec.Name), nil
	case datagraph.KindAttributeMatrix:
		if len(rec.Shape) == 0 {
			return nil, fmt.Errorf("attribute matrix without shape")
		}
		return datagraph.NewAttributeMatrix(rec.Name, datastore.ShapeFromUint64s(rec.Shape)), nil
	case datagraph.KindDataArray:
		if rec.Array == nil {
			return nil, fmt.Errorf("data array without store attributes")
		}
		store, err := decodeStore(rec.Array, compression, lazy)
		if err != nil {
			return nil, err
		}
		return datagraph.NewDataArray(rec.Name, store), nil
	case datagraph.KindGeometry:
		if rec.Geometry == nil {
			return nil, fmt.Errorf("geometry without attributes")
		}
		return decodeGeometry(rec.Name, rec.Geometry)
	}
	return nil, fmt.Errorf("unhandled kind %s", kind)
}

func decodeStore(ar *arrayRecord, compression string, lazy bool) (datastore.Store, error) {
	dtype, err := datastore.ParseDataType(ar.DataType)
	if err != nil {
		return nil, err
	}
	tuple := datastore.ShapeFromUint64s(ar.TupleShape)
	comp := datastore.ShapeFromUint64s(ar.ComponentShape)
	var chunk datastore.Shape
	if len(ar.ChunkShape) > 0 {
		chunk = datastore.ShapeFromUint64s(ar.ChunkShape)
	}
	if !ar.Allocated {
		return datastore.NewEmptyStore(dtype, tuple, comp, chunk)
	}
	blocks, err := indexBlocks(ar.Blocks, tuple, chunk)
	if err != nil {
		return nil, err
	}
	load := func(i int) ([]byte, error) {
		data, ok := blocks[i]
		if !ok {
			return nil, fmt.Errorf("chunk %d missing", i)
		}
		if compression == compressionSnappy {
			return snappy.Decode(nil, data)
		}
		return data, nil
	}
	if lazy {
		store, err := datastore.NewLazy(dtype, tuple, comp, chunk, load)
		if err != nil {
			return nil, err
		}
		if store.NumChunks() != len(blocks) {
			return nil, fmt.Errorf("store has %d chunks, document holds %d", store.NumChunks(), len(blocks))
		}
		return store, nil
	}
	store, err := datastore.New(dtype, tuple, comp, chunk)
	if err != nil {
		return nil, err
	}
	if store.NumChunks() != len(blocks) {
		return nil, fmt.Errorf("store has %d chunks, document holds %d", store.NumChunks(), len(blocks))
	}
	for i := 0; i < store.NumChunks(); i++ {
		raw, err := load(i)
		if err != nil {
			return nil, err
		}
		if err := store.SetChunkBytes(i, raw, binary.LittleEndian); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return store, nil
}

// indexBlocks maps each block to its flat chunk index. Contiguous stores hold
// one block at the zero coordinate.
func indexBlocks(blocks []blockRecord, tuple, chunk datastore.Shape) (map[int][]byte, error) {
	var grid datastore.ChunkGrid
	if chunk != nil {
		var err error
		if grid, err = datastore.NewChunkGrid(tuple, chunk); err != nil {
			return nil, err
		}
	}
	out := make(map[int][]byte, len(blocks))
	for _, b := range blocks {
		coord := make([]int, len(b.Coord))
		for d, c := range b.Coord {
			coord[d] = int(c)
		}
		idx := 0
		if chunk != nil {
			var err error
			if idx, err = grid.ChunkIndex(coord); err != nil {
				return nil, err
			}
		} else {
			for _, c := range coord {
				if c != 0 {
					return nil, fmt.Errorf("contiguous block at coordinate %v", coord)
				}
			}
		}
		if _, dup := out[idx]; dup {
			return nil, fmt.Errorf("duplicate block at coordinate %v", coord)
		}
		out[idx] = b.Data
	}
	return out, nil
}

func decodeGeometry(name string, rec *geometryRecord) (datagraph.Object, error) {
	gt, err := datagraph.ParseGeometryType(rec.Type)
	if err != nil {
		return nil, err
	}
	units, err := datagraph.ParseLengthUnit(rec.Units)
	if err != nil {
		return nil, err
	}
	if gt != datagraph.GeomImage {
		ng, err := datagraph.NewNodeGeometry(name, gt)
		if err != nil {
			return nil, err
		}
		ng.SetUnits(units)
		return ng, nil
	}
	if len(rec.Dims) != 3 || len(rec.Spacing) != 3 || len(rec.Origin) != 3 {
		return nil, fmt.Errorf("image geometry needs three dimensions, spacings and origins")
	}
	img := datagraph.NewImageGeometry(name)
	if err := img.SetDimensions([3]int{int(rec.Dims[0]), int(rec.Dims[1]), int(rec.Dims[2])}); err != nil {
		return nil, err
	}
	img.SetSpacing([3]float32(rec.Spacing))
	img.SetOrigin([3]float32(rec.Origin))
	img.SetUnits(units)
	return img, nil
}

func resolveGeometry(geom datagraph.Geometry, rec *geometryRecord) error {
	if ng, ok := geom.(*datagraph.NodeGeometry); ok {
		for name := range rec.Refs {
			if _, err := datagraph.ParseGeometryRef(name); err != nil {
				return err
			}
		}
		for _, slot := range datagraph.GeometryRefs() {
			id, ok := rec.Refs[slot.String()]
			if !ok {
				continue
			}
			if err := ng.SetRef(slot, datagraph.ID(id)); err != nil {
				return err
			}
		}
	}
	for _, l := range rec.Linked {
		for _, id := range l.IDs {
			if err := geom.Link(datagraph.Role(l.Role), datagraph.ID(id)); err != nil {
				return err
			}
		}
	}
	return nil
}
