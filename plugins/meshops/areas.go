package meshops

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
	"latticecore/pkg/filterapi"
)

// Argument keys of ComputeTriangleAreas.
const (
	KeyGeometryPath = "geometry_path"
	KeyOutputName   = "output_name"
)

var computeTriangleAreasID = uuid.MustParse("8c3e61b0-47d2-4f9e-a1c5-2b7d90e4f301")

// ComputeTriangleAreas writes the area of every triangle of a triangle
// geometry into a float64 array. The array goes into the geometry's face
// data matrix when one is linked, otherwise directly under the geometry.
type ComputeTriangleAreas struct{}

// Metadata identifies the filter.
func (ComputeTriangleAreas) Metadata() filterapi.Metadata {
	return filterapi.Metadata{
		Name:      "compute_triangle_areas",
		HumanName: "Compute Triangle Areas",
		UUID:      computeTriangleAreasID,
		Version:   "1",
		Tags:      []string{"geometry", "surface", "measurement"},
	}
}

// Parameters declares the arguments.
func (ComputeTriangleAreas) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyGeometryPath, Name: "Triangle Geometry", Type: filterapi.TypeDataPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyOutputName, Name: "Face Areas", Type: filterapi.TypeString, Default: "Areas"})
	return p
}

// outputPath returns where the areas array goes and its tuple shape.
func outputPath(view datagraph.View, geomPath datagraph.Path, geom *datagraph.NodeGeometry, name string) (datagraph.Path, datastore.Shape) {
	if face := geom.LinkedData().First(datagraph.RoleFace); face != datagraph.NoID {
		if matrix, ok := datagraph.GetAs[*datagraph.AttributeMatrix](view, face); ok {
			if p, ok := view.PathOf(face); ok {
				return p.Child(name), matrix.Shape()
			}
		}
	}
	return geomPath.Child(name), datastore.Shape{geom.NumElements()}
}

// Preflight checks the geometry type and describes the output array.
func (ComputeTriangleAreas) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	geomPath, err := filterapi.Value[datagraph.Path](args, KeyGeometryPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	geom, err := filterapi.Require[*datagraph.NodeGeometry](view, geomPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if geom.Type() != datagraph.GeomTriangle {
		return filterapi.PreflightError(fmt.Errorf("%w: %s is a %s geometry, want triangle", datagraph.ErrUnsupported, geomPath, geom.Type()))
	}
	name, _ := args.Text(KeyOutputName)
	if err := datagraph.ValidateName(name); err != nil {
		return filterapi.PreflightError(err)
	}
	out, tuples := outputPath(view, geomPath, geom, name)
	if err := filterapi.RequireAbsent(view, out); err != nil {
		return filterapi.PreflightError(err)
	}
	return filterapi.PreflightResult{
		Actions: filterapi.Actions{filterapi.CreateArrayAction{
			Path:       out,
			DataType:   datastore.Float64,
			TupleShape: tuples,
		}},
		Values: []filterapi.PreflightValue{{Name: "Triangles", Value: humanize.Comma(int64(geom.NumElements()))}},
	}
}

// Execute computes the areas on a worker pool. Results are written only after
// every triangle was computed, so a canceled run leaves the array untouched.
func (ComputeTriangleAreas) Execute(ctx context.Context, g *datagraph.Graph, args *filterapi.Arguments, messages filterapi.MessageHandler) filterapi.Result {
	geomPath, _ := filterapi.Value[datagraph.Path](args, KeyGeometryPath)
	name, _ := args.Text(KeyOutputName)
	geom, err := filterapi.Require[*datagraph.NodeGeometry](g, geomPath)
	if err != nil {
		return filterapi.ErrorResult(err)
	}
	outPath, _ := outputPath(g, geomPath, geom, name)
	outArr, err := filterapi.Require[*datagraph.DataArray](g, outPath)
	if err != nil {
		return filterapi.ErrorResult(err)
	}
	out, err := datagraph.ArrayStore[float64](outArr)
	if err != nil {
		return filterapi.ErrorResult(err)
	}
	coords, conn, err := triangleBuffers(geom)
	if err != nil {
		return filterapi.ErrorResult(err)
	}

	n := len(conn) / 3
	areas := make([]float64, n)
	numVerts := int64(len(coords) / 3)
	progress := filterapi.NewProgressReporter(messages, "Computing triangle areas", int64(n), filterapi.ProgressInterval(ctx))
	err = filterapi.ParallelFor(ctx, n, 0, func(ctx context.Context, start, end int) error {
		for t := start; t < end; t++ {
			var p [3][3]float64
			for k := 0; k < 3; k++ {
				v := conn[3*t+k]
				if v < 0 || v >= numVerts {
					return fmt.Errorf("%w: triangle %d references vertex %d of %d", datagraph.ErrOutOfRange, t, v, numVerts)
				}
				p[k] = [3]float64{float64(coords[3*v]), float64(coords[3*v+1]), float64(coords[3*v+2])}
			}
			areas[t] = triangleArea(p[0], p[1], p[2])
		}
		progress.Add(int64(end - start))
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return filterapi.Result{}
		}
		return filterapi.ErrorResult(err)
	}
	out.SetValues(areas)
	progress.Finish()
	messages.Infof("computed %s triangle areas into %s", humanize.Comma(int64(n)), outPath)
	return filterapi.Result{}
}

func triangleBuffers(geom *datagraph.NodeGeometry) ([]float32, []int64, error) {
	verts, ok := geom.Vertices()
	if !ok {
		return nil, nil, fmt.Errorf("%w: geometry %q has no vertex list", datagraph.ErrNotFound, geom.Name())
	}
	elems, ok := geom.Elements()
	if !ok {
		return nil, nil, fmt.Errorf("%w: geometry %q has no triangle list", datagraph.ErrNotFound, geom.Name())
	}
	vstore, err := datagraph.ArrayStore[float32](verts)
	if err != nil {
		return nil, nil, err
	}
	estore, err := datagraph.ArrayStore[int64](elems)
	if err != nil {
		return nil, nil, err
	}
	coords, err := vstore.Values()
	if err != nil {
		return nil, nil, err
	}
	conn, err := estore.Values()
	if err != nil {
		return nil, nil, err
	}
	return coords, conn, nil
}

// triangleArea is half the magnitude of (b-a) x (c-a).
func triangleArea(a, b, c [3]float64) float64 {
	u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	x := u[1]*v[2] - u[2]*v[1]
	y := u[2]*v[0] - u[0]*v[2]
	z := u[0]*v[1] - u[1]*v[0]
	return 0.5 * math.Sqrt(x*x+y*y+z*z)
}
