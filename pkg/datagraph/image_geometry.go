package datagraph

import (
	"fmt"

	"latticecore/pkg/datastore"
)

// ImageGeometry is a rectilinear grid of voxels described by dimensions,
// spacing and origin. Dimensions are ordered x, y, z; cell data matrices use
// the tuple shape [z, y, x].
type ImageGeometry struct {
	objectBase
	dims    [3]int
	spacing [3]float32
	origin  [3]float32
	units   LengthUnit
	linked  LinkedData
}

var _ Geometry = (*ImageGeometry)(nil)

// NewImageGeometry returns a detached, empty image with unit spacing.
func NewImageGeometry(name string) *ImageGeometry {
	return &ImageGeometry{objectBase: objectBase{name: name}, spacing: [3]float32{1, 1, 1}}
}

// ImageSpec describes an image geometry to create.
type ImageSpec struct {
	Dimensions [3]int
	Spacing    [3]float32
	Origin     [3]float32
	Units      LengthUnit
	// CellDataName, when set, creates a cell data attribute matrix of that
	// name and links it under RoleCell.
	CellDataName string
}

// CreateImageGeometry inserts a new image geometry under parent.
func CreateImageGeometry(g *Graph, name string, parent ID, spec ImageSpec) (*ImageGeometry, error) {
	img := NewImageGeometry(name)
	if err := img.SetDimensions(spec.Dimensions); err != nil {
		return nil, err
	}
	if spec.Spacing != ([3]float32{}) {
		img.spacing = spec.Spacing
	}
	img.origin = spec.Origin
	img.units = spec.Units
	if _, err := g.Insert(img, parent); err != nil {
		return nil, err
	}
	if spec.CellDataName != "" {
		am, err := CreateAttributeMatrix(g, spec.CellDataName, img.id, img.CellShape())
		if err != nil {
			return nil, err
		}
		img.linked.Link(RoleCell, am.id)
	}
	return img, nil
}

// Kind returns KindGeometry.
func (img *ImageGeometry) Kind() Kind { return KindGeometry }

// Type returns GeomImage.
func (img *ImageGeometry) Type() GeometryType { return GeomImage }

// Units returns the coordinate unit.
func (img *ImageGeometry) Units() LengthUnit { return img.units }

// SetUnits sets the coordinate unit.
func (img *ImageGeometry) SetUnits(u LengthUnit) { img.units = u }

// Dimensions returns the voxel counts along x, y and z.
func (img *ImageGeometry) Dimensions() [3]int { return img.dims }

// SetDimensions sets the voxel counts. It does not resize linked data.
func (img *ImageGeometry) SetDimensions(dims [3]int) error {
	for i, d := range dims {
		if d < 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrOutOfRange, i, d)
		}
	}
	img.dims = dims
	return nil
}

// Spacing returns the voxel edge lengths.
func (img *ImageGeometry) Spacing() [3]float32 { return img.spacing }

// SetSpacing sets the voxel edge lengths.
func (img *ImageGeometry) SetSpacing(s [3]float32) { img.spacing = s }

// Origin returns the coordinates of the grid corner.
func (img *ImageGeometry) Origin() [3]float32 { return img.origin }

// SetOrigin sets the coordinates of the grid corner.
func (img *ImageGeometry) SetOrigin(o [3]float32) { img.origin = o }

// NumElements returns the voxel count.
func (img *ImageGeometry) NumElements() int { return img.dims[0] * img.dims[1] * img.dims[2] }

// CellShape returns the tuple shape cell data must have.
func (img *ImageGeometry) CellShape() datastore.Shape {
	return datastore.Shape{img.dims[2], img.dims[1], img.dims[0]}
}

// ElementSize returns the volume of one voxel.
func (img *ImageGeometry) ElementSize() float64 {
	return float64(img.spacing[0]) * float64(img.spacing[1]) * float64(img.spacing[2])
}

// ElementCentroid returns the center of voxel index (x fastest).
func (img *ImageGeometry) ElementCentroid(index int) ([3]float64, bool) {
	if index < 0 || index >= img.NumElements() {
		return [3]float64{}, false
	}
	x := index % img.dims[0]
	y := (index / img.dims[0]) % img.dims[1]
	z := index / (img.dims[0] * img.dims[1])
	var out [3]float64
	for d, c := range [3]int{x, y, z} {
		out[d] = float64(img.origin[d]) + (float64(c)+0.5)*float64(img.spacing[d])
	}
	return out, true
}

// CellData returns the first attribute matrix linked under RoleCell.
func (img *ImageGeometry) CellData() (*AttributeMatrix, bool) {
	if img.graph == nil {
		return nil, false
	}
	return GetAs[*AttributeMatrix](img.graph, img.linked.First(RoleCell))
}

// LinkedData returns the role table.
func (img *ImageGeometry) LinkedData() *LinkedData { return &img.linked }

// Link records that id carries data for role.
func (img *ImageGeometry) Link(role Role, id ID) error {
	return linkChecked(&img.objectBase, &img.linked, role, id)
}

func (img *ImageGeometry) admit(Object) error { return nil }

func (img *ImageGeometry) clone() Object {
	cp := *img
	cp.objectBase = objectBase{name: img.name}
	cp.linked = img.linked.clone()
	return &cp
}

func (img *ImageGeometry) rewriteRefs(fn func(ID) ID) { img.linked.rewrite(fn) }
