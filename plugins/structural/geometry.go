package structural

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/filterapi"
)

// Argument keys of CreateGeometry.
const (
	KeyGeometryType    = "geometry_type"
	KeyDimensions      = "dimensions"
	KeySpacing         = "spacing"
	KeyOrigin          = "origin"
	KeyLengthUnit      = "length_unit"
	KeyCellDataName    = "cell_data_name"
	KeyNumVertices     = "num_vertices"
	KeyNumElements     = "num_elements"
	KeyVertexDataName  = "vertex_data_name"
	KeyElementDataName = "element_data_name"
)

// geometryChoices is indexed by datagraph.GeometryType.
var geometryChoices = []string{
	datagraph.GeomImage.String(),
	datagraph.GeomVertex.String(),
	datagraph.GeomEdge.String(),
	datagraph.GeomTriangle.String(),
	datagraph.GeomQuad.String(),
	datagraph.GeomTetrahedral.String(),
	datagraph.GeomHexahedral.String(),
}

// CreateGeometry creates an empty geometry of any type. Image geometries are
// sized by dimensions, spacing and origin and get a cell data matrix; node
// geometries get zero-filled shared vertex and element lists of the requested
// sizes.
type CreateGeometry struct{}

// Metadata identifies the filter.
func (CreateGeometry) Metadata() filterapi.Metadata {
	return structuralMeta("create_geometry", "Create Geometry", createGeometryID)
}

// Parameters declares the arguments. Image and node geometry arguments are
// linked to the geometry type.
func (CreateGeometry) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyOutputPath, Name: "Created Geometry", Type: filterapi.TypeArrayCreationPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyGeometryType, Name: "Geometry Type", Type: filterapi.TypeChoice, Choices: geometryChoices, Default: 0}).
		Add(filterapi.Parameter{Key: KeyLengthUnit, Name: "Length Unit", Type: filterapi.TypeString, Default: datagraph.UnitUnknown.String()}).
		Add(filterapi.Parameter{Key: KeyDimensions, Name: "Dimensions", Type: filterapi.TypeNumericVector, VectorLen: 3, Required: true}).
		Add(filterapi.Parameter{Key: KeySpacing, Name: "Spacing", Type: filterapi.TypeNumericVector, VectorLen: 3, Default: []float64{1, 1, 1}}).
		Add(filterapi.Parameter{Key: KeyOrigin, Name: "Origin", Type: filterapi.TypeNumericVector, VectorLen: 3, Default: []float64{0, 0, 0}}).
		Add(filterapi.Parameter{Key: KeyCellDataName, Name: "Cell Data Name", Type: filterapi.TypeString, Default: "Cell Data"}).
		Add(filterapi.Parameter{Key: KeyNumVertices, Name: "Number of Vertices", Type: filterapi.TypeInt, Required: true}).
		Add(filterapi.Parameter{Key: KeyNumElements, Name: "Number of Elements", Type: filterapi.TypeInt, Default: 0}).
		Add(filterapi.Parameter{Key: KeyVertexDataName, Name: "Vertex Data Name", Type: filterapi.TypeString, Default: "Vertex Data"}).
		Add(filterapi.Parameter{Key: KeyElementDataName, Name: "Element Data Name", Type: filterapi.TypeString, Default: ""})
	for _, key := range []string{KeyDimensions, KeySpacing, KeyOrigin, KeyCellDataName} {
		p.Link(KeyGeometryType, int(datagraph.GeomImage), key)
	}
	for t := datagraph.GeomVertex; t <= datagraph.GeomHexahedral; t++ {
		p.Link(KeyGeometryType, int(t), KeyNumVertices)
		p.Link(KeyGeometryType, int(t), KeyVertexDataName)
		p.Link(KeyGeometryType, int(t), KeyElementDataName)
		if t != datagraph.GeomVertex {
			p.Link(KeyGeometryType, int(t), KeyNumElements)
		}
	}
	return p
}

// Preflight validates the sizes and describes the geometry.
func (CreateGeometry) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	out, err := filterapi.Value[datagraph.Path](args, KeyOutputPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if err := filterapi.RequireAbsent(view, out); err != nil {
		return filterapi.PreflightError(err)
	}
	choice, err := args.Choice(KeyGeometryType)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	unitName, _ := args.Text(KeyLengthUnit)
	units, err := datagraph.ParseLengthUnit(unitName)
	if err != nil {
		return filterapi.PreflightError(fmt.Errorf("%w: %v", filterapi.ErrArgumentType, err))
	}
	gtype := datagraph.GeometryType(choice)
	if gtype == datagraph.GeomImage {
		return preflightImage(out, units, args)
	}
	return preflightNode(out, gtype, units, args)
}

func preflightImage(out datagraph.Path, units datagraph.LengthUnit, args *filterapi.Arguments) filterapi.PreflightResult {
	dims, _ := filterapi.Value[[]float64](args, KeyDimensions)
	spacing, _ := filterapi.Value[[]float64](args, KeySpacing)
	origin, _ := filterapi.Value[[]float64](args, KeyOrigin)
	cellName, _ := args.Text(KeyCellDataName)

	spec := datagraph.ImageSpec{Units: units, CellDataName: cellName}
	var res filterapi.Result
	for i := 0; i < 3; i++ {
		d := int(dims[i])
		if float64(d) != dims[i] || d < 1 {
			res.Errorf(filterapi.CodeOutOfRange, "dimension %d must be a positive integer, got %v", i, dims[i])
			continue
		}
		if spacing[i] <= 0 {
			res.Errorf(filterapi.CodeOutOfRange, "spacing %d must be positive, got %v", i, spacing[i])
		}
		spec.Dimensions[i] = d
		spec.Spacing[i] = float32(spacing[i])
		spec.Origin[i] = float32(origin[i])
	}
	if res.HasErrors() {
		return filterapi.PreflightResult{Result: res}
	}
	if cellName != "" {
		if err := datagraph.ValidateName(cellName); err != nil {
			return filterapi.PreflightError(err)
		}
	}
	cells := int64(spec.Dimensions[0]) * int64(spec.Dimensions[1]) * int64(spec.Dimensions[2])
	return filterapi.PreflightResult{
		Actions: filterapi.Actions{filterapi.CreateImageGeometryAction{Path: out, Spec: spec}},
		Values:  []filterapi.PreflightValue{{Name: "Cells", Value: humanize.Comma(cells)}},
	}
}

func preflightNode(out datagraph.Path, gtype datagraph.GeometryType, units datagraph.LengthUnit, args *filterapi.Arguments) filterapi.PreflightResult {
	verts, _ := args.Int(KeyNumVertices)
	elems, _ := args.Int(KeyNumElements)
	vertexName, _ := args.Text(KeyVertexDataName)
	elementName, _ := args.Text(KeyElementDataName)

	var res filterapi.Result
	if verts < 0 {
		res.Errorf(filterapi.CodeOutOfRange, "number of vertices must not be negative, got %d", verts)
	}
	if elems < 0 {
		res.Errorf(filterapi.CodeOutOfRange, "number of elements must not be negative, got %d", elems)
	}
	for _, name := range []string{vertexName, elementName} {
		if name == "" {
			continue
		}
		if err := datagraph.ValidateName(name); err != nil {
			res.AddError(err)
		}
	}
	if vertexName != "" && vertexName == elementName {
		res.Errorf(filterapi.CodeNameCollision, "vertex and element data share the name %q", vertexName)
	}
	if res.HasErrors() {
		return filterapi.PreflightResult{Result: res}
	}
	spec := datagraph.NodeGeometrySpec{
		Type:            gtype,
		NumVertices:     int(verts),
		NumElements:     int(elems),
		Units:           units,
		VertexDataName:  vertexName,
		ElementDataName: elementName,
	}
	values := []filterapi.PreflightValue{{Name: "Vertices", Value: humanize.Comma(verts)}}
	if gtype != datagraph.GeomVertex {
		values = append(values, filterapi.PreflightValue{Name: "Elements", Value: humanize.Comma(elems)})
	}
	return filterapi.PreflightResult{
		Actions: filterapi.Actions{filterapi.CreateNodeGeometryAction{Path: out, Spec: spec}},
		Values:  values,
	}
}

// Execute does nothing.
func (CreateGeometry) Execute(context.Context, *datagraph.Graph, *filterapi.Arguments, filterapi.MessageHandler) filterapi.Result {
	return filterapi.Result{}
}
