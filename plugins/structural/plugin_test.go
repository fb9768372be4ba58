package structural

import (
	"context"
	"errors"
	"testing"

	"latticecore/internal/core"
	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
	"latticecore/pkg/filterapi"
)

func args(kv ...any) *filterapi.Arguments {
	a := filterapi.NewArguments()
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i].(string), kv[i+1])
	}
	return a
}

func TestPluginRegistration(t *testing.T) {
	reg := core.NewRegistry()
	meta, err := reg.Install(New())
	if err != nil {
		t.Fatalf("install structural plugin: %v", err)
	}
	if len(meta.Filters) != 7 {
		t.Fatalf("expected 7 filters, got %v", meta.Filters)
	}
	f, err := reg.NewByUUID(createGeometryID)
	if err != nil || f.Metadata().Name != "create_geometry" {
		t.Fatalf("lookup by uuid: %v", err)
	}
}

func TestCreateDataArrayVisibleOnlyAfterCommit(t *testing.T) {
	p := core.NewPipeline("create")
	p.Add(CreateDataGroup{}, args(KeyOutputPath, "Data"))
	p.Add(CreateDataArray{}, args(KeyOutputPath, "Data/Values", KeyTupleShape, []int{2, 3}, KeyInitValue, 1.5))

	g := datagraph.New()
	report, err := p.Preflight(context.Background(), g)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if g.Contains(datagraph.MustParsePath("Data/Values")) {
		t.Fatalf("array visible before commit")
	}
	if got := report.Steps[1].Values[0].Value; got != "24 B" {
		t.Fatalf("unexpected size value %q", got)
	}

	if _, err := p.Run(context.Background(), g); err != nil {
		t.Fatalf("run: %v", err)
	}
	arr, ok := datagraph.ResolveAs[*datagraph.DataArray](g, datagraph.MustParsePath("Data/Values"))
	if !ok {
		t.Fatalf("array missing after run")
	}
	if arr.DataType() != datastore.Float32 || !arr.TupleShape().Equal(datastore.Shape{2, 3}) {
		t.Fatalf("unexpected array %s %s", arr.DataType(), arr.TupleShape())
	}
	if arr.Store().Float64At(5) != 1.5 {
		t.Fatalf("init value not written")
	}
}

func TestCreateDataArrayTupleShapeFromMatrix(t *testing.T) {
	g := datagraph.New()
	if _, err := datagraph.CreateAttributeMatrix(g, "Cells", datagraph.NoID, datastore.Shape{4}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	p := core.NewPipeline("create").Add(CreateDataArray{}, args(KeyOutputPath, "Cells/Phase", KeyDataType, "int32"))
	if _, err := p.Run(context.Background(), g); err != nil {
		t.Fatalf("run: %v", err)
	}
	arr, ok := datagraph.ResolveAs[*datagraph.DataArray](g, datagraph.MustParsePath("Cells/Phase"))
	if !ok || arr.NumTuples() != 4 || arr.DataType() != datastore.Int32 {
		t.Fatalf("unexpected array")
	}
}

func TestCreateDataArrayRejectsBadTupleShape(t *testing.T) {
	g := datagraph.New()
	if _, err := datagraph.CreateAttributeMatrix(g, "Cells", datagraph.NoID, datastore.Shape{4}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	cases := []struct {
		name string
		args *filterapi.Arguments
		code filterapi.Code
	}{
		{"matrix mismatch", args(KeyOutputPath, "Cells/Phase", KeyTupleShape, []int{3}), filterapi.CodeTupleMismatch},
		{"missing outside matrix", args(KeyOutputPath, "Phase"), filterapi.CodeMissingArgument},
		{"missing output", args(KeyTupleShape, []int{3}), filterapi.CodeMissingArgument},
		{"existing output", args(KeyOutputPath, "Cells", KeyTupleShape, []int{3}), filterapi.CodeNameCollision},
		{"bad chunk", args(KeyOutputPath, "Phase", KeyTupleShape, []int{4}, KeyChunkShape, []int{2, 2}), filterapi.CodeOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := core.NewPipeline("create").Add(CreateDataArray{}, tc.args)
			_, err := p.Preflight(context.Background(), g)
			if got := filterapi.CodeOf(err); got != tc.code {
				t.Fatalf("expected code %d, got %d (%v)", tc.code, got, err)
			}
		})
	}
}

func TestCopyRenameDelete(t *testing.T) {
	g := datagraph.New()
	grp, err := datagraph.CreateGroup(g, "A", datagraph.NoID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, values, err := datagraph.CreateTypedArray[int32](g, "v", grp.ID(), datastore.Shape{3}, datastore.Shape{1})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	values.SetValues([]int32{7, 8, 9})

	p := core.NewPipeline("reshape")
	p.Add(CopyDataObject{}, args(KeySourcePath, "A", KeyDestinationPath, "B"))
	p.Add(RenameDataObject{}, args(KeySourcePath, "B/v", KeyNewName, "w"))
	p.Add(DeleteData{}, args(KeyRemovedPath, "A"))

	report, err := p.Run(context.Background(), g)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if g.Contains(datagraph.NewPath("A")) {
		t.Fatalf("A should be deleted")
	}
	w, ok := datagraph.ResolveAs[*datagraph.DataArray](g, datagraph.NewPath("B", "w"))
	if !ok || w.Store().Float64At(2) != 9 {
		t.Fatalf("copied array missing or wrong")
	}
	if warnings := report.Result().Warnings(); len(warnings) != 1 {
		t.Fatalf("expected one descendant warning, got %v", warnings)
	}
}

func TestCopyAndRenameRejections(t *testing.T) {
	g := datagraph.New()
	grp, err := datagraph.CreateGroup(g, "A", datagraph.NoID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := datagraph.CreateGroup(g, "x", grp.ID()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := datagraph.CreateGroup(g, "y", grp.ID()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	cases := []struct {
		name   string
		filter filterapi.Filter
		args   *filterapi.Arguments
		code   filterapi.Code
	}{
		{"copy into itself", CopyDataObject{}, args(KeySourcePath, "A", KeyDestinationPath, "A/inner"), filterapi.CodeInvalidParent},
		{"copy missing", CopyDataObject{}, args(KeySourcePath, "Z", KeyDestinationPath, "B"), filterapi.CodeNotFound},
		{"rename collision", RenameDataObject{}, args(KeySourcePath, "A/x", KeyNewName, "y"), filterapi.CodeNameCollision},
		{"rename bad name", RenameDataObject{}, args(KeySourcePath, "A/x", KeyNewName, "a/b"), filterapi.CodeInvalidName},
		{"delete missing", DeleteData{}, args(KeyRemovedPath, "Z"), filterapi.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := core.NewPipeline("reject").Add(tc.filter, tc.args)
			_, err := p.Run(context.Background(), g)
			if got := filterapi.CodeOf(err); got != tc.code {
				t.Fatalf("expected code %d, got %d (%v)", tc.code, got, err)
			}
		})
	}
	if g.Len() != 3 {
		t.Fatalf("rejected steps changed the graph")
	}
}

func TestCreateImageGeometry(t *testing.T) {
	g := datagraph.New()
	p := core.NewPipeline("image").Add(CreateGeometry{}, args(
		KeyOutputPath, "Image",
		KeyDimensions, []float64{2, 3, 4},
		KeySpacing, []float64{0.5, 0.5, 1},
		KeyLengthUnit, "micrometer",
	))
	report, err := p.Run(context.Background(), g)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Steps[0].Values[0].Value != "24" {
		t.Fatalf("unexpected cell count %+v", report.Steps[0].Values)
	}
	img, ok := datagraph.ResolveAs[*datagraph.ImageGeometry](g, datagraph.NewPath("Image"))
	if !ok {
		t.Fatalf("image missing")
	}
	if img.Units() != datagraph.UnitMicrometer || img.Spacing() != [3]float32{0.5, 0.5, 1} {
		t.Fatalf("unexpected image %v %v", img.Units(), img.Spacing())
	}
	cells, ok := img.CellData()
	if !ok || !cells.Shape().Equal(datastore.Shape{4, 3, 2}) {
		t.Fatalf("cell data missing or misshaped")
	}
}

func TestCreateTriangleGeometry(t *testing.T) {
	g := datagraph.New()
	p := core.NewPipeline("mesh").Add(CreateGeometry{}, args(
		KeyOutputPath, "Mesh",
		KeyGeometryType, "triangle",
		KeyNumVertices, 3,
		KeyNumElements, 1,
		KeyElementDataName, "Face Data",
	))
	if _, err := p.Run(context.Background(), g); err != nil {
		t.Fatalf("run: %v", err)
	}
	mesh, ok := datagraph.ResolveAs[*datagraph.NodeGeometry](g, datagraph.NewPath("Mesh"))
	if !ok || mesh.Type() != datagraph.GeomTriangle {
		t.Fatalf("mesh missing")
	}
	if mesh.NumVertices() != 3 || mesh.NumElements() != 1 {
		t.Fatalf("unexpected sizes %d/%d", mesh.NumVertices(), mesh.NumElements())
	}
	if !g.Contains(datagraph.NewPath("Mesh", "Vertex Data")) || mesh.LinkedData().First(datagraph.RoleFace) == datagraph.NoID {
		t.Fatalf("attribute matrices not created")
	}
}

func TestCreateGeometryRejections(t *testing.T) {
	cases := []struct {
		name string
		args *filterapi.Arguments
		code filterapi.Code
	}{
		{"zero dimension", args(KeyOutputPath, "I", KeyDimensions, []float64{2, 0, 1}), filterapi.CodeOutOfRange},
		{"missing dimensions", args(KeyOutputPath, "I"), filterapi.CodeMissingArgument},
		{"missing vertices", args(KeyOutputPath, "M", KeyGeometryType, "quad"), filterapi.CodeMissingArgument},
		{"negative elements", args(KeyOutputPath, "M", KeyGeometryType, "edge", KeyNumVertices, 2, KeyNumElements, -1), filterapi.CodeOutOfRange},
		{"unknown unit", args(KeyOutputPath, "I", KeyDimensions, []float64{1, 1, 1}, KeyLengthUnit, "cubit"), filterapi.CodeInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := core.NewPipeline("geom").Add(CreateGeometry{}, tc.args)
			_, err := p.Preflight(context.Background(), datagraph.New())
			if got := filterapi.CodeOf(err); got != tc.code {
				t.Fatalf("expected code %d, got %d (%v)", tc.code, got, err)
			}
		})
	}
}

func TestCreateDataArrayExecuteReportsChunkLoadFailure(t *testing.T) {
	g := datagraph.New()
	store, err := datastore.NewLazyDataStore[float32](datastore.Shape{4}, datastore.Shape{1}, nil,
		func(int) ([]byte, error) { return nil, errors.New("disk gone") })
	if err != nil {
		t.Fatalf("lazy store: %v", err)
	}
	if _, err := datagraph.CreateDataArray(g, "Values", datagraph.NoID, store); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f := CreateDataArray{}
	validated, res := f.Parameters().Validate(args(KeyOutputPath, "Values", KeyTupleShape, []int{4}, KeyInitValue, 3.0))
	if res.HasErrors() {
		t.Fatalf("validate: %v", res.Err())
	}
	out := f.Execute(context.Background(), g, validated, nil)
	if !out.HasErrors() || out.Diagnostics[0].Code != filterapi.CodeIO {
		t.Fatalf("expected an I/O error, got %v", out.Diagnostics)
	}
}
