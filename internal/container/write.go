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

// WriteOptions configures Write.
type WriteOptions struct {
	// DisableCompression stores chunk blocks as raw little-endian bytes.
	DisableCompression bool
}

// Write serializes g. Objects are recorded parent-first with their current
// identities so that references survive a round trip unchanged.
func Write(w io.Writer, g *datagraph.Graph, opts WriteOptions) error {
	doc, err := buildDocument(g, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(Magic[:]); err != nil {
		return fmt.Errorf("container: write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return fmt.Errorf("container: write header: %w", err)
	}
	if err := msgpack.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("container: encode document: %w", err)
	}
	return nil
}

func buildDocument(g *datagraph.Graph, opts WriteOptions) (*document, error) {
	doc := &document{Version: FormatVersion, Compression: compressionSnappy}
	if opts.DisableCompression {
		doc.Compression = compressionNone
	}
	err := g.Walk(func(p datagraph.Path, obj datagraph.Object) error {
		parent, _ := g.Parent(obj.ID())
		rec := nodeRecord{
			ID:     uint64(obj.ID()),
			Parent: uint64(parent),
			Kind:   obj.Kind().String(),
			Name:   obj.Name(),
		}
		switch o := obj.(type) {
		case *datagraph.AttributeMatrix:
			rec.Shape = o.Shape().Uint64s()
		case *datagraph.DataArray:
			ar, err := encodeStore(o.Store(), doc.Compression)
			if err != nil {
				return fmt.Errorf("container: array %s: %w", p, err)
			}
			rec.Array = ar
		case *datagraph.ImageGeometry:
			rec.Geometry = encodeImage(o)
		case *datagraph.NodeGeometry:
			rec.Geometry = encodeNodeGeometry(o)
		}
		doc.Nodes = append(doc.Nodes, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func encodeStore(s datastore.Store, compression string) (*arrayRecord, error) {
	rec := &arrayRecord{
		DataType:       s.DataType().String(),
		TupleShape:     s.TupleShape().Uint64s(),
		ComponentShape: s.ComponentShape().Uint64s(),
		Allocated:      s.Allocated(),
	}
	if s.Chunked() {
		rec.ChunkShape = s.ChunkShape().Uint64s()
	}
	if !s.Allocated() {
		return rec, nil
	}
	var grid datastore.ChunkGrid
	if s.Chunked() {
		var err error
		if grid, err = datastore.NewChunkGrid(s.TupleShape(), s.ChunkShape()); err != nil {
			return nil, err
		}
	}
	rank := len(rec.TupleShape)
	for i := 0; i < s.NumChunks(); i++ {
		raw, err := s.ChunkBytes(i, binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		if compression == compressionSnappy {
			raw = snappy.Encode(nil, raw)
		}
		coord := make([]uint64, rank)
		if s.Chunked() {
			for d, c := range grid.ChunkCoordOf(i) {
				coord[d] = uint64(c)
			}
		}
		rec.Blocks = append(rec.Blocks, blockRecord{Coord: coord, Data: raw})
	}
	return rec, nil
}

func encodeImage(img *datagraph.ImageGeometry) *geometryRecord {
	dims := img.Dimensions()
	spacing := img.Spacing()
	origin := img.Origin()
	return &geometryRecord{
		Type:    img.Type().String(),
		Units:   img.Units().String(),
		Dims:    []uint64{uint64(dims[0]), uint64(dims[1]), uint64(dims[2])},
		Spacing: spacing[:],
		Origin:  origin[:],
		Linked:  encodeLinks(img.LinkedData()),
	}
}

func encodeNodeGeometry(n *datagraph.NodeGeometry) *geometryRecord {
	rec := &geometryRecord{
		Type:   n.Type().String(),
		Units:  n.Units().String(),
		Linked: encodeLinks(n.LinkedData()),
	}
	for _, slot := range datagraph.GeometryRefs() {
		id := n.Ref(slot)
		if id == datagraph.NoID {
			continue
		}
		if rec.Refs == nil {
			rec.Refs = make(map[string]uint64)
		}
		rec.Refs[slot.String()] = uint64(id)
	}
	return rec
}

func encodeLinks(l *datagraph.LinkedData) []linkRecord {
	var out []linkRecord
	for _, role := range l.Roles() {
		ids := l.Get(role)
		rec := linkRecord{Role: string(role), IDs: make([]uint64, len(ids))}
		for i, id := range ids {
			rec.IDs[i] = uint64(id)
		}
		out = append(out, rec)
	}
	return out
}
