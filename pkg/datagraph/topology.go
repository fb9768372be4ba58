package datagraph

import (
	"fmt"
	"math"
	"slices"

	"latticecore/pkg/datastore"
)

// Child names of derived structures.
var derivedNames = map[GeometryRef]string{
	RefEdges:                         "EdgeList",
	RefUnsharedEdges:                 "UnsharedEdgeList",
	RefFaces:                         "FaceList",
	RefUnsharedFaces:                 "UnsharedFaceList",
	RefElementSizes:                  "ElementSizes",
	RefElementCentroids:              "ElementCentroids",
	RefElementsContainingVert:        "ElementsContainingVert",
	RefElementsContainingVertOffsets: "ElementsContainingVertOffsets",
}

// Local vertex orderings follow the VTK cell conventions.
var (
	triangleEdges = [][2]int{{0, 1}, {1, 2}, {2, 0}}
	quadEdges     = [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	tetEdges      = [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}}
	hexEdges      = [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	tetFaces = [][]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}
	hexFaces = [][]int{{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7}}
	// hexTets fans six tetrahedra around the 0-6 diagonal.
	hexTets = [][4]int{{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6}, {0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6}}
)

func edgeTable(t GeometryType) [][2]int {
	switch t {
	case GeomTriangle:
		return triangleEdges
	case GeomQuad:
		return quadEdges
	case GeomTetrahedral:
		return tetEdges
	case GeomHexahedral:
		return hexEdges
	}
	return nil
}

func faceTable(t GeometryType) [][]int {
	switch t {
	case GeomTetrahedral:
		return tetFaces
	case GeomHexahedral:
		return hexFaces
	}
	return nil
}

func (n *NodeGeometry) unsupported(what string) error {
	return fmt.Errorf("%w: %s on %s geometry %q", ErrUnsupported, what, n.geomType, n.name)
}

// findDerived moves slot r from absent to computed. A computed slot is left
// alone unless recalculate is set.
func (n *NodeGeometry) findDerived(r GeometryRef, recalculate bool, build func() (datastore.Store, error)) error {
	g, err := n.attached()
	if err != nil {
		return err
	}
	if n.refs[r] != NoID {
		if !recalculate {
			return nil
		}
		if err := n.deleteDerived(r); err != nil {
			return err
		}
	}
	store, err := build()
	if err != nil {
		return err
	}
	arr, err := CreateDataArray(g, derivedNames[r], n.id, store)
	if err != nil {
		return err
	}
	n.refs[r] = arr.id
	return nil
}

func (n *NodeGeometry) deleteDerived(r GeometryRef) error {
	id := n.refs[r]
	if id == NoID {
		return nil
	}
	n.refs[r] = NoID
	if n.graph == nil {
		return nil
	}
	if _, ok := n.graph.Get(id); !ok {
		return nil
	}
	return n.graph.Remove(id)
}

// connectivity returns the element list values after checking that every
// vertex index is in range.
func (n *NodeGeometry) connectivity() ([]int64, error) {
	s, err := n.elementStore()
	if err != nil {
		return nil, err
	}
	conn, err := s.Values()
	if err != nil {
		return nil, err
	}
	nv := int64(n.NumVertices())
	for i, v := range conn {
		if v < 0 || v >= nv {
			return nil, fmt.Errorf("%w: element %d references vertex %d of %d",
				ErrOutOfRange, i/n.NodesPerElement(), v, nv)
		}
	}
	return conn, nil
}

func (n *NodeGeometry) points() ([]float32, error) {
	s, err := n.vertexStore()
	if err != nil {
		return nil, err
	}
	return s.Values()
}

func point(coords []float32, v int64) [3]float64 {
	i := int(v) * 3
	return [3]float64{float64(coords[i]), float64(coords[i+1]), float64(coords[i+2])}
}

// collectEdges returns unique edges as sorted vertex pairs in first-seen
// order, with the number of elements using each.
func (n *NodeGeometry) collectEdges() ([]int64, []int, error) {
	conn, err := n.connectivity()
	if err != nil {
		return nil, nil, err
	}
	npe := n.NodesPerElement()
	table := edgeTable(n.geomType)
	index := make(map[[2]int64]int)
	var edges []int64
	var counts []int
	for e := 0; e+npe <= len(conn); e += npe {
		elem := conn[e : e+npe]
		for _, pair := range table {
			a, b := elem[pair[0]], elem[pair[1]]
			if a > b {
				a, b = b, a
			}
			key := [2]int64{a, b}
			if i, ok := index[key]; ok {
				counts[i]++
				continue
			}
			index[key] = len(counts)
			counts = append(counts, 1)
			edges = append(edges, a, b)
		}
	}
	return edges, counts, nil
}

// collectFaces returns unique faces of a 3D geometry in first-seen winding,
// the number of cells using each and the nodes per face.
func (n *NodeGeometry) collectFaces() ([]int64, []int, int, error) {
	conn, err := n.connectivity()
	if err != nil {
		return nil, nil, 0, err
	}
	npe := n.NodesPerElement()
	table := faceTable(n.geomType)
	per := len(table[0])
	index := make(map[[4]int64]int)
	var faces []int64
	var counts []int
	for e := 0; e+npe <= len(conn); e += npe {
		elem := conn[e : e+npe]
		for _, local := range table {
			key := [4]int64{-1, -1, -1, -1}
			for i, l := range local {
				key[i] = elem[l]
			}
			slices.Sort(key[:per])
			if i, ok := index[key]; ok {
				counts[i]++
				continue
			}
			index[key] = len(counts)
			counts = append(counts, 1)
			for _, l := range local {
				faces = append(faces, elem[l])
			}
		}
	}
	return faces, counts, per, nil
}

func indexStore(values []int64, comps int) (datastore.Store, error) {
	s, err := datastore.NewDataStore[int64](datastore.Shape{len(values) / comps}, datastore.Shape{comps})
	if err != nil {
		return nil, err
	}
	s.SetValues(values)
	return s, nil
}

func keepSingles(list []int64, counts []int, per int) []int64 {
	var out []int64
	for i, c := range counts {
		if c == 1 {
			out = append(out, list[i*per:(i+1)*per]...)
		}
	}
	return out
}

// Edges returns the identity of the unique edge list. For edge geometries it
// is the element list.
func (n *NodeGeometry) Edges() ID {
	if n.geomType == GeomEdge {
		return n.refs[RefElements]
	}
	return n.refs[RefEdges]
}

// FindEdges computes the unique edge list of a 2D or 3D geometry.
func (n *NodeGeometry) FindEdges(recalculate bool) error {
	switch n.geomType {
	case GeomEdge:
		return nil
	case GeomVertex:
		return n.unsupported("FindEdges")
	}
	return n.findDerived(RefEdges, recalculate, func() (datastore.Store, error) {
		edges, _, err := n.collectEdges()
		if err != nil {
			return nil, err
		}
		return indexStore(edges, 2)
	})
}

// DeleteEdges removes the derived edge list.
func (n *NodeGeometry) DeleteEdges() error {
	if n.geomType == GeomEdge {
		return nil
	}
	return n.deleteDerived(RefEdges)
}

// UnsharedEdges returns the identity of the boundary edge list.
func (n *NodeGeometry) UnsharedEdges() ID { return n.refs[RefUnsharedEdges] }

// FindUnsharedEdges computes the edges used by exactly one face of a 2D
// geometry.
func (n *NodeGeometry) FindUnsharedEdges(recalculate bool) error {
	if n.Dimensionality() != 2 {
		return n.unsupported("FindUnsharedEdges")
	}
	return n.findDerived(RefUnsharedEdges, recalculate, func() (datastore.Store, error) {
		edges, counts, err := n.collectEdges()
		if err != nil {
			return nil, err
		}
		return indexStore(keepSingles(edges, counts, 2), 2)
	})
}

// DeleteUnsharedEdges removes the derived boundary edge list.
func (n *NodeGeometry) DeleteUnsharedEdges() error { return n.deleteDerived(RefUnsharedEdges) }

// Faces returns the identity of the face list. For 2D geometries it is the
// element list.
func (n *NodeGeometry) Faces() ID {
	switch n.Dimensionality() {
	case 2:
		return n.refs[RefElements]
	case 3:
		return n.refs[RefFaces]
	}
	return NoID
}

// FindFaces computes the unique face list of a 3D geometry.
func (n *NodeGeometry) FindFaces(recalculate bool) error {
	switch n.Dimensionality() {
	case 2:
		return nil
	case 3:
	default:
		return n.unsupported("FindFaces")
	}
	return n.findDerived(RefFaces, recalculate, func() (datastore.Store, error) {
		faces, _, per, err := n.collectFaces()
		if err != nil {
			return nil, err
		}
		return indexStore(faces, per)
	})
}

// DeleteFaces removes the derived face list.
func (n *NodeGeometry) DeleteFaces() error {
	if n.Dimensionality() != 3 {
		return nil
	}
	return n.deleteDerived(RefFaces)
}

// UnsharedFaces returns the identity of the boundary face list.
func (n *NodeGeometry) UnsharedFaces() ID { return n.refs[RefUnsharedFaces] }

// FindUnsharedFaces computes the faces used by exactly one cell of a 3D
// geometry.
func (n *NodeGeometry) FindUnsharedFaces(recalculate bool) error {
	if n.Dimensionality() != 3 {
		return n.unsupported("FindUnsharedFaces")
	}
	return n.findDerived(RefUnsharedFaces, recalculate, func() (datastore.Store, error) {
		faces, counts, per, err := n.collectFaces()
		if err != nil {
			return nil, err
		}
		return indexStore(keepSingles(faces, counts, per), per)
	})
}

// DeleteUnsharedFaces removes the derived boundary face list.
func (n *NodeGeometry) DeleteUnsharedFaces() error { return n.deleteDerived(RefUnsharedFaces) }

// ElementSizes returns the identity of the element size array.
func (n *NodeGeometry) ElementSizes() ID { return n.refs[RefElementSizes] }

// FindElementSizes computes the length, area or volume of every element.
// Vertex elements have size zero.
func (n *NodeGeometry) FindElementSizes(recalculate bool) error {
	return n.findDerived(RefElementSizes, recalculate, func() (datastore.Store, error) {
		num := n.NumElements()
		out, err := datastore.NewDataStore[float32](datastore.Shape{num}, datastore.Shape{1})
		if err != nil {
			return nil, err
		}
		if n.geomType == GeomVertex {
			return out, nil
		}
		coords, err := n.points()
		if err != nil {
			return nil, err
		}
		conn, err := n.connectivity()
		if err != nil {
			return nil, err
		}
		npe := n.NodesPerElement()
		for e := 0; e < num; e++ {
			out.Set(e, float32(elementSize(n.geomType, coords, conn[e*npe:(e+1)*npe])))
		}
		return out, nil
	})
}

// DeleteElementSizes removes the element size array.
func (n *NodeGeometry) DeleteElementSizes() error { return n.deleteDerived(RefElementSizes) }

func elementSize(t GeometryType, coords []float32, elem []int64) float64 {
	p := func(i int) [3]float64 { return point(coords, elem[i]) }
	switch t {
	case GeomEdge:
		return norm(sub(p(1), p(0)))
	case GeomTriangle:
		return triangleArea(p(0), p(1), p(2))
	case GeomQuad:
		return triangleArea(p(0), p(1), p(2)) + triangleArea(p(0), p(2), p(3))
	case GeomTetrahedral:
		return tetVolume(p(0), p(1), p(2), p(3))
	case GeomHexahedral:
		var v float64
		for _, tet := range hexTets {
			v += tetVolume(p(tet[0]), p(tet[1]), p(tet[2]), p(tet[3]))
		}
		return v
	}
	return 0
}

// ElementCentroids returns the identity of the centroid array.
func (n *NodeGeometry) ElementCentroids() ID { return n.refs[RefElementCentroids] }

// FindElementCentroids computes the mean vertex position of every element.
func (n *NodeGeometry) FindElementCentroids(recalculate bool) error {
	return n.findDerived(RefElementCentroids, recalculate, func() (datastore.Store, error) {
		num := n.NumElements()
		out, err := datastore.NewDataStore[float32](datastore.Shape{num}, datastore.Shape{3})
		if err != nil {
			return nil, err
		}
		coords, err := n.points()
		if err != nil {
			return nil, err
		}
		if n.geomType == GeomVertex {
			out.SetValues(coords)
			return out, nil
		}
		conn, err := n.connectivity()
		if err != nil {
			return nil, err
		}
		npe := n.NodesPerElement()
		for e := 0; e < num; e++ {
			var c [3]float64
			for _, v := range conn[e*npe : (e+1)*npe] {
				pt := point(coords, v)
				for d := range c {
					c[d] += pt[d]
				}
			}
			for d := range c {
				out.SetComponent(e, d, float32(c[d]/float64(npe)))
			}
		}
		return out, nil
	})
}

// DeleteElementCentroids removes the centroid array.
func (n *NodeGeometry) DeleteElementCentroids() error { return n.deleteDerived(RefElementCentroids) }

// ElementsContainingVert returns the identities of the vertex-to-element
// index list and its offsets. Elements of vertex v are
// indices[offsets[v]:offsets[v+1]].
func (n *NodeGeometry) ElementsContainingVert() (indices, offsets ID) {
	return n.refs[RefElementsContainingVert], n.refs[RefElementsContainingVertOffsets]
}

// FindElementsContainingVert builds the vertex-to-element map.
func (n *NodeGeometry) FindElementsContainingVert(recalculate bool) error {
	if n.geomType == GeomVertex {
		return n.unsupported("FindElementsContainingVert")
	}
	if n.refs[RefElementsContainingVert] != NoID && !recalculate {
		return nil
	}
	if err := n.DeleteElementsContainingVert(); err != nil {
		return err
	}
	conn, err := n.connectivity()
	if err != nil {
		return err
	}
	nv := n.NumVertices()
	npe := n.NodesPerElement()
	offsets := make([]int64, nv+1)
	for _, v := range conn {
		offsets[v+1]++
	}
	for v := 0; v < nv; v++ {
		offsets[v+1] += offsets[v]
	}
	fill := append([]int64(nil), offsets[:nv]...)
	indices := make([]int64, len(conn))
	for i, v := range conn {
		indices[fill[v]] = int64(i / npe)
		fill[v]++
	}
	if err := n.findDerived(RefElementsContainingVertOffsets, true, func() (datastore.Store, error) {
		return indexStore(offsets, 1)
	}); err != nil {
		return err
	}
	return n.findDerived(RefElementsContainingVert, true, func() (datastore.Store, error) {
		return indexStore(indices, 1)
	})
}

// DeleteElementsContainingVert removes both arrays of the vertex map.
func (n *NodeGeometry) DeleteElementsContainingVert() error {
	if err := n.deleteDerived(RefElementsContainingVert); err != nil {
		return err
	}
	return n.deleteDerived(RefElementsContainingVertOffsets)
}

func sub(a, b [3]float64) [3]float64 { return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

func dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func norm(a [3]float64) float64 { return math.Sqrt(dot(a, a)) }

func triangleArea(a, b, c [3]float64) float64 { return 0.5 * norm(cross(sub(b, a), sub(c, a))) }

func tetVolume(a, b, c, d [3]float64) float64 {
	return math.Abs(dot(sub(b, a), cross(sub(c, a), sub(d, a)))) / 6
}
