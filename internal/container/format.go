// Package container persists a datagraph.Graph as a hierarchical binary
// container and exports single arrays as raw binary files.
//
// A container starts with a four byte magic and a little-endian uint16
// format version, followed by one msgpack document. The document lists every
// object parent-first with its original identity, kind, name and kind
// attributes. Store contents are stored per chunk as flat little-endian
// blocks, optionally snappy compressed, keyed by chunk coordinate.
package container

import (
	"errors"
)

// Magic opens every container.
var Magic = [4]byte{'L', 'T', 'C', 'C'}

// FormatVersion is the version this package writes.
const FormatVersion uint16 = 1

// ContentType labels containers stored as artifacts.
const ContentType = "application/x-lattice-container"

var (
	// ErrFormat reports an unreadable container: bad magic, unsupported
	// version or a corrupt document.
	ErrFormat = errors.New("container: invalid format")
	// ErrStructure reports a document that decodes but cannot be rebuilt into
	// a consistent graph, such as a reference to a missing identity.
	ErrStructure = errors.New("container: inconsistent structure")
)

const (
	compressionNone   = "none"
	compressionSnappy = "snappy"
)

type document struct {
	Version     uint16       `msgpack:"version"`
	Compression string       `msgpack:"compression"`
	Nodes       []nodeRecord `msgpack:"nodes"`
}

type nodeRecord struct {
	ID       uint64          `msgpack:"id"`
	Parent   uint64          `msgpack:"parent"`
	Kind     string          `msgpack:"kind"`
	Name     string          `msgpack:"name"`
	Shape    []uint64        `msgpack:"shape,omitempty"`
	Array    *arrayRecord    `msgpack:"array,omitempty"`
	Geometry *geometryRecord `msgpack:"geometry,omitempty"`
}

type arrayRecord struct {
	DataType       string        `msgpack:"dtype"`
	TupleShape     []uint64      `msgpack:"tuple_shape"`
	ComponentShape []uint64      `msgpack:"component_shape"`
	ChunkShape     []uint64      `msgpack:"chunk_shape,omitempty"`
	Allocated      bool          `msgpack:"allocated"`
	Blocks         []blockRecord `msgpack:"blocks,omitempty"`
}

type blockRecord struct {
	Coord []uint64 `msgpack:"coord"`
	Data  []byte   `msgpack:"data"`
}

type geometryRecord struct {
	Type    string            `msgpack:"type"`
	Units   string            `msgpack:"units"`
	Dims    []uint64          `msgpack:"dims,omitempty"`
	Spacing []float32         `msgpack:"spacing,omitempty"`
	Origin  []float32         `msgpack:"origin,omitempty"`
	Refs    map[string]uint64 `msgpack:"refs,omitempty"`
	Linked  []linkRecord      `msgpack:"linked,omitempty"`
}

type linkRecord struct {
	Role string   `msgpack:"role"`
	IDs  []uint64 `msgpack:"ids"`
}
