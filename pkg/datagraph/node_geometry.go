package datagraph

import (
	"fmt"

	"latticecore/pkg/datastore"
)

// GeometryRef names one identity slot of a node geometry.
type GeometryRef uint8

// Reference slots. The first two are the shared lists; the rest hold derived
// structures created by the Find methods.
const (
	RefVertices GeometryRef = iota
	RefElements
	RefEdges
	RefUnsharedEdges
	RefFaces
	RefUnsharedFaces
	RefElementSizes
	RefElementCentroids
	RefElementsContainingVert
	RefElementsContainingVertOffsets
	numGeometryRefs
)

var geometryRefNames = [numGeometryRefs]string{
	RefVertices:                      "vertices",
	RefElements:                      "elements",
	RefEdges:                         "edges",
	RefUnsharedEdges:                 "unshared_edges",
	RefFaces:                         "faces",
	RefUnsharedFaces:                 "unshared_faces",
	RefElementSizes:                  "element_sizes",
	RefElementCentroids:              "element_centroids",
	RefElementsContainingVert:        "elements_containing_vert",
	RefElementsContainingVertOffsets: "elements_containing_vert_offsets",
}

func (r GeometryRef) String() string {
	if r < numGeometryRefs {
		return geometryRefNames[r]
	}
	return fmt.Sprintf("ref(%d)", uint8(r))
}

// GeometryRefs lists every reference slot.
func GeometryRefs() []GeometryRef {
	out := make([]GeometryRef, numGeometryRefs)
	for i := range out {
		out[i] = GeometryRef(i)
	}
	return out
}

// ParseGeometryRef is the inverse of GeometryRef.String.
func ParseGeometryRef(s string) (GeometryRef, error) {
	for i, name := range geometryRefNames {
		if name == s {
			return GeometryRef(i), nil
		}
	}
	return 0, fmt.Errorf("datagraph: unknown geometry reference %q", s)
}

// NodeGeometry covers the vertex, edge, triangle, quad, tetrahedral and
// hexahedral variants. Vertex coordinates are float32 triples; element lists
// are int64 vertex indices with NodesPerElement components per tuple.
type NodeGeometry struct {
	objectBase
	geomType GeometryType
	units    LengthUnit
	refs     [numGeometryRefs]ID
	linked   LinkedData
}

var _ Geometry = (*NodeGeometry)(nil)

// NewNodeGeometry returns a detached node geometry of type t.
func NewNodeGeometry(name string, t GeometryType) (*NodeGeometry, error) {
	if t == GeomImage || t.NodesPerElement() == 0 {
		return nil, fmt.Errorf("%w: %s is not a node geometry", ErrTypeMismatch, t)
	}
	return &NodeGeometry{objectBase: objectBase{name: name}, geomType: t}, nil
}

// NodeGeometrySpec describes a node geometry to create.
type NodeGeometrySpec struct {
	Type        GeometryType
	NumVertices int
	// NumElements is ignored for vertex geometries.
	NumElements int
	Units       LengthUnit
	// VertexDataName and ElementDataName, when set, create attribute
	// matrices sized to the vertex and element counts and link them.
	VertexDataName  string
	ElementDataName string
	// MetadataOnly creates the shared lists without buffers.
	MetadataOnly bool
}

// CreateNodeGeometry inserts a geometry under parent together with its shared
// vertex list and, except for vertex geometries, its element list.
func CreateNodeGeometry(g *Graph, name string, parent ID, spec NodeGeometrySpec) (*NodeGeometry, error) {
	geom, err := NewNodeGeometry(name, spec.Type)
	if err != nil {
		return nil, err
	}
	geom.units = spec.Units
	if _, err := g.Insert(geom, parent); err != nil {
		return nil, err
	}
	if err := geom.populate(g, spec); err != nil {
		_ = g.Remove(geom.id)
		return nil, err
	}
	return geom, nil
}

// populate creates the shared lists and attribute matrices of a freshly
// inserted geometry.
func (geom *NodeGeometry) populate(g *Graph, spec NodeGeometrySpec) error {
	newStore := func(dtype datastore.DataType, tuples, comps int) (datastore.Store, error) {
		if spec.MetadataOnly {
			return datastore.NewEmptyStore(dtype, datastore.Shape{tuples}, datastore.Shape{comps}, nil)
		}
		return datastore.New(dtype, datastore.Shape{tuples}, datastore.Shape{comps}, nil)
	}

	vstore, err := newStore(datastore.Float32, spec.NumVertices, 3)
	if err != nil {
		return err
	}
	verts, err := CreateDataArray(g, VertexListName, geom.id, vstore)
	if err != nil {
		return err
	}
	geom.refs[RefVertices] = verts.id

	numElements := spec.NumVertices
	if spec.Type != GeomVertex {
		numElements = spec.NumElements
		estore, err := newStore(datastore.Int64, spec.NumElements, spec.Type.NodesPerElement())
		if err != nil {
			return err
		}
		elems, err := CreateDataArray(g, spec.Type.ElementListName(), geom.id, estore)
		if err != nil {
			return err
		}
		geom.refs[RefElements] = elems.id
	}

	if spec.VertexDataName != "" {
		am, err := CreateAttributeMatrix(g, spec.VertexDataName, geom.id, datastore.Shape{spec.NumVertices})
		if err != nil {
			return err
		}
		geom.linked.Link(RoleVertex, am.id)
	}
	if spec.ElementDataName != "" {
		am, err := CreateAttributeMatrix(g, spec.ElementDataName, geom.id, datastore.Shape{numElements})
		if err != nil {
			return err
		}
		geom.linked.Link(spec.Type.ElementRole(), am.id)
	}
	return nil
}

// ElementRole is the linked-data role of the geometry's primary elements.
func (t GeometryType) ElementRole() Role {
	switch t.Dimensionality() {
	case 0:
		return RoleVertex
	case 1:
		return RoleEdge
	case 2:
		return RoleFace
	}
	return RoleCell
}

// Kind returns KindGeometry.
func (n *NodeGeometry) Kind() Kind { return KindGeometry }

// Type returns the geometry variant.
func (n *NodeGeometry) Type() GeometryType { return n.geomType }

// Units returns the coordinate unit.
func (n *NodeGeometry) Units() LengthUnit { return n.units }

// SetUnits sets the coordinate unit.
func (n *NodeGeometry) SetUnits(u LengthUnit) { n.units = u }

// Dimensionality returns the topological dimension of the elements.
func (n *NodeGeometry) Dimensionality() int { return n.geomType.Dimensionality() }

// NodesPerElement returns the element list stride.
func (n *NodeGeometry) NodesPerElement() int { return n.geomType.NodesPerElement() }

// LinkedData returns the role table.
func (n *NodeGeometry) LinkedData() *LinkedData { return &n.linked }

// Link records that id carries data for role.
func (n *NodeGeometry) Link(role Role, id ID) error {
	return linkChecked(&n.objectBase, &n.linked, role, id)
}

// Ref returns the identity held in slot r.
func (n *NodeGeometry) Ref(r GeometryRef) ID {
	if r >= numGeometryRefs {
		return NoID
	}
	return n.refs[r]
}

// SetRef stores id in slot r. NoID clears the slot. Attached geometries
// reject identities that are not live data arrays.
func (n *NodeGeometry) SetRef(r GeometryRef, id ID) error {
	if r >= numGeometryRefs {
		return fmt.Errorf("%w: reference slot %d", ErrOutOfRange, r)
	}
	if id != NoID && n.graph != nil {
		obj, ok := n.graph.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s reference %d", ErrNotFound, r, id)
		}
		if _, ok := obj.(*DataArray); !ok {
			return fmt.Errorf("%w: %s reference %d is a %s, want a data array", ErrTypeMismatch, r, id, obj.Kind())
		}
	}
	n.refs[r] = id
	return nil
}

func (n *NodeGeometry) refArray(r GeometryRef) (*DataArray, bool) {
	if n.graph == nil || n.refs[r] == NoID {
		return nil, false
	}
	return GetAs[*DataArray](n.graph, n.refs[r])
}

// Vertices returns the shared vertex list.
func (n *NodeGeometry) Vertices() (*DataArray, bool) { return n.refArray(RefVertices) }

// SetVertices points the geometry at arr, which must hold float32 triples.
func (n *NodeGeometry) SetVertices(arr *DataArray) error {
	if arr.DataType() != datastore.Float32 || arr.NumComponents() != 3 {
		return fmt.Errorf("%w: vertex list %q must be float32 with 3 components, got %s x %d",
			ErrTypeMismatch, arr.Name(), arr.DataType(), arr.NumComponents())
	}
	return n.setArrayRef(RefVertices, arr)
}

// Elements returns the shared element list. Vertex geometries have none.
func (n *NodeGeometry) Elements() (*DataArray, bool) { return n.refArray(RefElements) }

// SetElements points the geometry at arr, which must hold int64 vertex
// indices with NodesPerElement components.
func (n *NodeGeometry) SetElements(arr *DataArray) error {
	if n.geomType == GeomVertex {
		return fmt.Errorf("%w: vertex geometries have no element list", ErrUnsupported)
	}
	if arr.DataType() != datastore.Int64 || arr.NumComponents() != n.NodesPerElement() {
		return fmt.Errorf("%w: element list %q must be int64 with %d components, got %s x %d",
			ErrTypeMismatch, arr.Name(), n.NodesPerElement(), arr.DataType(), arr.NumComponents())
	}
	return n.setArrayRef(RefElements, arr)
}

func (n *NodeGeometry) setArrayRef(r GeometryRef, arr *DataArray) error {
	g, err := n.attached()
	if err != nil {
		return err
	}
	if arr.graph != g {
		return fmt.Errorf("%w: %q belongs to another graph", ErrNotFound, arr.Name())
	}
	n.refs[r] = arr.id
	return nil
}

// NumVertices returns the vertex count, or 0 without a vertex list.
func (n *NodeGeometry) NumVertices() int {
	if v, ok := n.Vertices(); ok {
		return v.NumTuples()
	}
	return 0
}

// NumElements returns the element count. For vertex geometries each vertex
// is an element.
func (n *NodeGeometry) NumElements() int {
	if n.geomType == GeomVertex {
		return n.NumVertices()
	}
	if e, ok := n.Elements(); ok {
		return e.NumTuples()
	}
	return 0
}

func (n *NodeGeometry) vertexStore() (*datastore.DataStore[float32], error) {
	v, ok := n.Vertices()
	if !ok {
		return nil, fmt.Errorf("%w: geometry %q has no vertex list", ErrNotFound, n.name)
	}
	return ArrayStore[float32](v)
}

func (n *NodeGeometry) elementStore() (*datastore.DataStore[int64], error) {
	e, ok := n.Elements()
	if !ok {
		return nil, fmt.Errorf("%w: geometry %q has no element list", ErrNotFound, n.name)
	}
	return ArrayStore[int64](e)
}

// VertexCoords returns the coordinates of vertex v.
func (n *NodeGeometry) VertexCoords(v int) ([3]float32, bool) {
	s, err := n.vertexStore()
	if err != nil || v < 0 || v >= s.NumTuples() {
		return [3]float32{}, false
	}
	t := s.Tuple(v, nil)
	return [3]float32{t[0], t[1], t[2]}, true
}

// SetVertexCoords writes the coordinates of vertex v.
func (n *NodeGeometry) SetVertexCoords(v int, xyz [3]float32) bool {
	s, err := n.vertexStore()
	if err != nil || v < 0 || v >= s.NumTuples() {
		return false
	}
	s.SetTuple(v, xyz[:])
	return true
}

// SetElementPointIDs writes the vertex indices of element elem at offset
// elem*NodesPerElement of the element list. It writes nothing and returns
// false when the element is out of range or ids is too short.
func (n *NodeGeometry) SetElementPointIDs(elem int, ids []int64) bool {
	if n.geomType == GeomVertex {
		return false
	}
	s, err := n.elementStore()
	if err != nil {
		return false
	}
	npe := n.NodesPerElement()
	offset := elem * npe
	if elem < 0 || len(ids) < npe || offset+npe > s.Len() {
		return false
	}
	for i := 0; i < npe; i++ {
		s.Set(offset+i, ids[i])
	}
	return true
}

// GetElementPointIDs reads the vertex indices of element elem into dst.
func (n *NodeGeometry) GetElementPointIDs(elem int, dst []int64) ([]int64, bool) {
	if n.geomType == GeomVertex {
		return dst[:0], false
	}
	s, err := n.elementStore()
	if err != nil {
		return dst[:0], false
	}
	npe := n.NodesPerElement()
	offset := elem * npe
	if elem < 0 || offset+npe > s.Len() {
		return dst[:0], false
	}
	return s.Tuple(elem, dst), true
}

func (n *NodeGeometry) admit(Object) error { return nil }

func (n *NodeGeometry) clone() Object {
	cp := *n
	cp.objectBase = objectBase{name: n.name}
	cp.linked = n.linked.clone()
	return &cp
}

func (n *NodeGeometry) rewriteRefs(fn func(ID) ID) {
	for i, id := range n.refs {
		if id != NoID {
			n.refs[i] = fn(id)
		}
	}
	n.linked.rewrite(fn)
}
