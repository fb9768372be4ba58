package filterapi

import (
	"errors"
	"testing"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

func TestCreateArrayVisibleOnlyAfterCommit(t *testing.T) {
	g := datagraph.New()
	if _, err := datagraph.CreateGroup(g, "g", datagraph.NoID); err != nil {
		t.Fatalf("create group: %v", err)
	}
	target := datagraph.MustParsePath("/g/a")
	actions := Actions{CreateArrayAction{Path: target, DataType: datastore.Float32, TupleShape: datastore.Shape{10}}}

	sim := g.Clone()
	if err := actions.Apply(sim, ModePreflight); err != nil {
		t.Fatalf("preflight apply: %v", err)
	}
	if g.Contains(target) {
		t.Fatalf("array must not exist before commit")
	}
	simArr, ok := datagraph.ResolveAs[*datagraph.DataArray](sim, target)
	if !ok || simArr.Store().Allocated() {
		t.Fatalf("preflight array should be metadata-only")
	}

	if err := actions.Apply(g, ModeExecute); err != nil {
		t.Fatalf("commit: %v", err)
	}
	arr, ok := datagraph.ResolveAs[*datagraph.DataArray](g, target)
	if !ok {
		t.Fatalf("array missing after commit")
	}
	if arr.NumTuples() != 10 || arr.DataType() != datastore.Float32 || arr.NumComponents() != 1 {
		t.Fatalf("unexpected array metadata %d %s %d", arr.NumTuples(), arr.DataType(), arr.NumComponents())
	}
	if !arr.Store().Allocated() {
		t.Fatalf("committed array should be allocated")
	}
}

func TestActionsStopAtFirstFailure(t *testing.T) {
	g := datagraph.New()
	actions := Actions{
		CreateGroupAction{Path: datagraph.MustParsePath("/a")},
		CreateGroupAction{Path: datagraph.MustParsePath("/missing/b")},
		CreateGroupAction{Path: datagraph.MustParsePath("/c")},
	}
	err := actions.Apply(g, ModeExecute)
	var actionErr *ActionError
	if !errors.As(err, &actionErr) || actionErr.Index != 1 {
		t.Fatalf("expected failure at index 1, got %v", err)
	}
	if !errors.Is(err, datagraph.ErrInvalidParent) {
		t.Fatalf("expected invalid parent, got %v", err)
	}
	if !g.Contains(datagraph.MustParsePath("/a")) || g.Contains(datagraph.MustParsePath("/c")) {
		t.Fatalf("earlier actions stay applied and later ones never run")
	}
	if CodeOf(err) != CodeInvalidParent {
		t.Fatalf("unexpected code %d", CodeOf(err))
	}
}

func TestCreateArrayInMatrixChecksTupleCount(t *testing.T) {
	g := datagraph.New()
	actions := Actions{
		CreateAttributeMatrixAction{Path: datagraph.MustParsePath("/cells"), Shape: datastore.Shape{4}},
		CreateArrayAction{Path: datagraph.MustParsePath("/cells/ok"), DataType: datastore.Int32, TupleShape: datastore.Shape{4}},
		CreateArrayAction{Path: datagraph.MustParsePath("/cells/bad"), DataType: datastore.Int32, TupleShape: datastore.Shape{5}},
	}
	err := actions.Apply(g, ModePreflight)
	if !errors.Is(err, datagraph.ErrTupleMismatch) {
		t.Fatalf("expected tuple mismatch, got %v", err)
	}
	if !g.Contains(datagraph.MustParsePath("/cells/ok")) {
		t.Fatalf("matching array should exist")
	}
}

func TestCopyRenameDeleteActions(t *testing.T) {
	g := datagraph.New()
	actions := Actions{
		CreateGroupAction{Path: datagraph.MustParsePath("/src")},
		CreateArrayAction{Path: datagraph.MustParsePath("/src/a"), DataType: datastore.UInt8, TupleShape: datastore.Shape{2}, ComponentShape: datastore.Shape{3}},
		CopyDataAction{Source: datagraph.MustParsePath("/src"), Destination: datagraph.MustParsePath("/dst")},
		RenameDataAction{Path: datagraph.MustParsePath("/dst/a"), NewName: "b"},
		DeleteDataAction{Path: datagraph.MustParsePath("/src")},
	}
	if err := actions.Apply(g, ModeExecute); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if g.Contains(datagraph.MustParsePath("/src")) {
		t.Fatalf("source should be deleted")
	}
	arr, ok := datagraph.ResolveAs[*datagraph.DataArray](g, datagraph.MustParsePath("/dst/b"))
	if !ok || arr.NumComponents() != 3 {
		t.Fatalf("expected renamed copy with 3 components")
	}
	if err := (RenameDataAction{Path: datagraph.MustParsePath("/nope"), NewName: "x"}).Apply(g, ModeExecute); !errors.Is(err, datagraph.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := (CopyDataAction{Source: datagraph.MustParsePath("/dst")}).Apply(g, ModeExecute); !errors.Is(err, datagraph.ErrInvalidName) {
		t.Fatalf("expected invalid name for root destination, got %v", err)
	}
}

func TestCreateNodeGeometryActionModes(t *testing.T) {
	spec := datagraph.NodeGeometrySpec{Type: datagraph.GeomTriangle, NumVertices: 4, NumElements: 2}
	action := CreateNodeGeometryAction{Path: datagraph.MustParsePath("/mesh"), Spec: spec}

	pre := datagraph.New()
	if err := action.Apply(pre, ModePreflight); err != nil {
		t.Fatalf("preflight: %v", err)
	}
	geom, ok := datagraph.ResolveAs[*datagraph.NodeGeometry](pre, datagraph.MustParsePath("/mesh"))
	if !ok {
		t.Fatalf("geometry missing")
	}
	verts, ok := geom.Vertices()
	if !ok || verts.Store().Allocated() || verts.NumTuples() != 4 {
		t.Fatalf("preflight vertex list should be sized but empty")
	}

	exec := datagraph.New()
	if err := action.Apply(exec, ModeExecute); err != nil {
		t.Fatalf("execute: %v", err)
	}
	geom, _ = datagraph.ResolveAs[*datagraph.NodeGeometry](exec, datagraph.MustParsePath("/mesh"))
	if !geom.SetElementPointIDs(1, []int64{1, 3, 2}) {
		t.Fatalf("allocated element list should accept writes")
	}
}
