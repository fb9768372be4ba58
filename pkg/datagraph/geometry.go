package datagraph

import "fmt"

// GeometryType tags the closed set of geometry variants.
type GeometryType uint8

// Geometry types.
const (
	GeomImage GeometryType = iota
	GeomVertex
	GeomEdge
	GeomTriangle
	GeomQuad
	GeomTetrahedral
	GeomHexahedral
)

var geometryTypeNames = [...]string{
	GeomImage:       "image",
	GeomVertex:      "vertex",
	GeomEdge:        "edge",
	GeomTriangle:    "triangle",
	GeomQuad:        "quad",
	GeomTetrahedral: "tetrahedral",
	GeomHexahedral:  "hexahedral",
}

func (t GeometryType) String() string {
	if int(t) < len(geometryTypeNames) {
		return geometryTypeNames[t]
	}
	return fmt.Sprintf("geometry(%d)", uint8(t))
}

// ParseGeometryType is the inverse of GeometryType.String.
func ParseGeometryType(s string) (GeometryType, error) {
	for i, name := range geometryTypeNames {
		if name == s {
			return GeometryType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown geometry type %q", ErrTypeMismatch, s)
}

// Dimensionality returns the topological dimension of the element type.
func (t GeometryType) Dimensionality() int {
	switch t {
	case GeomVertex:
		return 0
	case GeomEdge:
		return 1
	case GeomTriangle, GeomQuad:
		return 2
	case GeomImage, GeomTetrahedral, GeomHexahedral:
		return 3
	}
	return -1
}

// NodesPerElement returns the stride of the shared element list. Image
// geometries have no element list and report 0.
func (t GeometryType) NodesPerElement() int {
	switch t {
	case GeomVertex:
		return 1
	case GeomEdge:
		return 2
	case GeomTriangle:
		return 3
	case GeomQuad, GeomTetrahedral:
		return 4
	case GeomHexahedral:
		return 8
	}
	return 0
}

// ElementListName is the default child name of the shared element list.
func (t GeometryType) ElementListName() string {
	switch t {
	case GeomEdge:
		return "SharedEdgeList"
	case GeomTriangle:
		return "SharedTriList"
	case GeomQuad:
		return "SharedQuadList"
	case GeomTetrahedral:
		return "SharedTetList"
	case GeomHexahedral:
		return "SharedHexList"
	}
	return ""
}

// VertexListName is the default child name of the shared vertex list.
const VertexListName = "SharedVertexList"

// LengthUnit records the physical unit of geometry coordinates.
type LengthUnit uint8

// Length units.
const (
	UnitUnknown LengthUnit = iota
	UnitAngstrom
	UnitNanometer
	UnitMicrometer
	UnitMillimeter
	UnitCentimeter
	UnitMeter
	UnitKilometer
	UnitInch
	UnitFoot
	UnitMile
)

var lengthUnitNames = [...]string{
	UnitUnknown:    "unknown",
	UnitAngstrom:   "angstrom",
	UnitNanometer:  "nanometer",
	UnitMicrometer: "micrometer",
	UnitMillimeter: "millimeter",
	UnitCentimeter: "centimeter",
	UnitMeter:      "meter",
	UnitKilometer:  "kilometer",
	UnitInch:       "inch",
	UnitFoot:       "foot",
	UnitMile:       "mile",
}

func (u LengthUnit) String() string {
	if int(u) < len(lengthUnitNames) {
		return lengthUnitNames[u]
	}
	return fmt.Sprintf("unit(%d)", uint8(u))
}

// ParseLengthUnit is the inverse of LengthUnit.String.
func ParseLengthUnit(s string) (LengthUnit, error) {
	for i, name := range lengthUnitNames {
		if name == s {
			return LengthUnit(i), nil
		}
	}
	return UnitUnknown, fmt.Errorf("datagraph: unknown length unit %q", s)
}

// Geometry is the capability shared by image and node-based geometries.
type Geometry interface {
	Object
	Type() GeometryType
	Units() LengthUnit
	SetUnits(LengthUnit)
	NumElements() int
	LinkedData() *LinkedData
	// Link records that the object id carries data for role.
	Link(role Role, id ID) error
}

// Role names a topological location that attribute data can be attached to.
type Role string

// Standard roles.
const (
	RoleVertex Role = "vertex"
	RoleEdge   Role = "edge"
	RoleFace   Role = "face"
	RoleCell   Role = "cell"
)

// LinkedData maps roles to the identities of the containers holding data for
// them. It only routes; it owns nothing.
type LinkedData struct {
	order []Role
	links map[Role][]ID
}

// Link appends id under role unless it is already there.
func (l *LinkedData) Link(role Role, id ID) {
	if id == NoID {
		return
	}
	if l.links == nil {
		l.links = make(map[Role][]ID)
	}
	ids, seen := l.links[role]
	if !seen {
		l.order = append(l.order, role)
	}
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	l.links[role] = append(ids, id)
}

// Unlink removes id from role.
func (l *LinkedData) Unlink(role Role, id ID) {
	ids := l.links[role]
	for i, existing := range ids {
		if existing == id {
			l.links[role] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	l.prune()
}

// Get returns the identities linked under role.
func (l *LinkedData) Get(role Role) []ID {
	return append([]ID(nil), l.links[role]...)
}

// First returns the first identity linked under role.
func (l *LinkedData) First(role Role) ID {
	if ids := l.links[role]; len(ids) > 0 {
		return ids[0]
	}
	return NoID
}

// Roles returns the roles with at least one link, in first-link order.
func (l *LinkedData) Roles() []Role {
	return append([]Role(nil), l.order...)
}

// Len returns the number of roles with links.
func (l *LinkedData) Len() int { return len(l.order) }

func (l *LinkedData) clone() LinkedData {
	out := LinkedData{order: append([]Role(nil), l.order...)}
	if l.links != nil {
		out.links = make(map[Role][]ID, len(l.links))
		for role, ids := range l.links {
			out.links[role] = append([]ID(nil), ids...)
		}
	}
	return out
}

func (l *LinkedData) rewrite(fn func(ID) ID) {
	for role, ids := range l.links {
		kept := ids[:0]
		for _, id := range ids {
			if next := fn(id); next != NoID {
				kept = append(kept, next)
			}
		}
		l.links[role] = kept
	}
	l.prune()
}

func (l *LinkedData) prune() {
	order := l.order[:0]
	for _, role := range l.order {
		if len(l.links[role]) > 0 {
			order = append(order, role)
		} else {
			delete(l.links, role)
		}
	}
	l.order = order
}

// linkChecked validates that id is a live object before linking it.
func linkChecked(b *objectBase, l *LinkedData, role Role, id ID) error {
	g, err := b.attached()
	if err != nil {
		return err
	}
	if _, ok := g.Get(id); !ok {
		return fmt.Errorf("%w: cannot link %d under %q", ErrNotFound, id, role)
	}
	l.Link(role, id)
	return nil
}
