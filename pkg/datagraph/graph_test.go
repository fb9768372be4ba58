package datagraph

import (
	"errors"
	"testing"

	"latticecore/pkg/datastore"
)

func mustArray[T datastore.Element](t *testing.T, g *Graph, name string, parent ID, tuples int) (*DataArray, *datastore.DataStore[T]) {
	t.Helper()
	arr, store, err := CreateTypedArray[T](g, name, parent, datastore.Shape{tuples}, datastore.Shape{1})
	if err != nil {
		t.Fatalf("create array %s: %v", name, err)
	}
	return arr, store
}

func TestInsertAssignsIdentitiesAndPaths(t *testing.T) {
	g := New()
	data, err := CreateGroup(g, "Data", NoID)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	arr, _ := mustArray[int32](t, g, "Values", data.ID(), 3)
	if data.ID() == NoID || arr.ID() == NoID || data.ID() == arr.ID() {
		t.Fatalf("identities not assigned: %d %d", data.ID(), arr.ID())
	}
	p, ok := g.PathOf(arr.ID())
	if !ok || p.String() != "/Data/Values" {
		t.Fatalf("unexpected path %v", p)
	}
	id, ok := g.GetByPath(MustParsePath("/Data/Values"))
	if !ok || id != arr.ID() {
		t.Fatalf("GetByPath mismatch")
	}
	if !g.Contains(MustParsePath("Data")) || g.Contains(MustParsePath("/Data/Missing")) {
		t.Fatalf("Contains mismatch")
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 objects, got %d", g.Len())
	}
}

func TestInsertRejectsBadPlacement(t *testing.T) {
	g := New()
	data, _ := CreateGroup(g, "Data", NoID)
	arr, _ := mustArray[float32](t, g, "A", data.ID(), 2)

	if _, err := CreateGroup(g, "Data", NoID); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected name collision, got %v", err)
	}
	if _, err := CreateGroup(g, "Child", arr.ID()); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected arrays to refuse children, got %v", err)
	}
	if _, err := CreateGroup(g, "Child", ID(999)); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected missing parent to fail, got %v", err)
	}
	if _, err := CreateGroup(g, "a/b", NoID); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	if _, err := g.Insert(data, NoID); !errors.Is(err, ErrAttached) {
		t.Fatalf("expected attached object to be refused, got %v", err)
	}
}

func TestGetAsReportsTypeMismatch(t *testing.T) {
	g := New()
	grp, _ := CreateGroup(g, "Data", NoID)
	if _, ok := GetAs[*DataArray](g, grp.ID()); ok {
		t.Fatalf("group downcast to array")
	}
	if got, ok := GetAs[*Group](g, grp.ID()); !ok || got != grp {
		t.Fatalf("expected group downcast")
	}
	if _, ok := GetAs[*Group](g, ID(42)); ok {
		t.Fatalf("missing id resolved")
	}
	if _, ok := ResolveAs[*Group](g, MustParsePath("/Data")); !ok {
		t.Fatalf("ResolveAs failed")
	}
}

func TestRemoveCascadesAndSweepsReferences(t *testing.T) {
	g := New()
	geom, err := CreateNodeGeometry(g, "Mesh", NoID, NodeGeometrySpec{
		Type: GeomTriangle, NumVertices: 3, NumElements: 1, ElementDataName: "FaceData",
	})
	if err != nil {
		t.Fatalf("CreateNodeGeometry: %v", err)
	}
	other, _ := CreateGroup(g, "Other", NoID)
	faceData := geom.LinkedData().First(RoleFace)
	verts := geom.Ref(RefVertices)
	if faceData == NoID || verts == NoID {
		t.Fatalf("geometry references not set")
	}
	// a second geometry outside the subtree sharing the same vertex list
	peer, _ := NewNodeGeometry("Peer", GeomVertex)
	if _, err := g.Insert(peer, other.ID()); err != nil {
		t.Fatalf("insert peer: %v", err)
	}
	if err := peer.SetRef(RefVertices, verts); err != nil {
		t.Fatalf("SetRef: %v", err)
	}

	if err := g.Remove(verts); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if geom.Ref(RefVertices) != NoID || peer.Ref(RefVertices) != NoID {
		t.Fatalf("references to removed vertex list survived")
	}
	if err := g.Remove(faceData); err != nil {
		t.Fatalf("Remove face data: %v", err)
	}
	if geom.LinkedData().Len() != 0 {
		t.Fatalf("linked data still lists removed matrix: %v", geom.LinkedData().Roles())
	}

	before := g.Len()
	if err := g.Remove(geom.ID()); err != nil {
		t.Fatalf("Remove geometry: %v", err)
	}
	if g.Len() != before-2 {
		t.Fatalf("expected geometry and element list removed, len %d -> %d", before, g.Len())
	}
	if geom.Graph() != nil {
		t.Fatalf("removed object still attached")
	}
	if err := g.Remove(geom.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second removal, got %v", err)
	}
}

func TestDeepCopyRemapsAndDecouples(t *testing.T) {
	g := New()
	geom, err := CreateNodeGeometry(g, "Mesh", NoID, NodeGeometrySpec{Type: GeomEdge, NumVertices: 2, NumElements: 1})
	if err != nil {
		t.Fatalf("CreateNodeGeometry: %v", err)
	}
	geom.SetVertexCoords(1, [3]float32{3, 4, 0})
	geom.SetElementPointIDs(0, []int64{0, 1})
	dest, _ := CreateGroup(g, "Copies", NoID)

	id, err := g.DeepCopy(MustParsePath("/Mesh"), MustParsePath("/Copies"))
	if err != nil {
		t.Fatalf("DeepCopy: %v", err)
	}
	cp, ok := GetAs[*NodeGeometry](g, id)
	if !ok {
		t.Fatalf("copy is not a node geometry")
	}
	if parent, _ := g.Parent(id); parent != dest.ID() {
		t.Fatalf("copy placed under %d", parent)
	}
	cpVerts := cp.Ref(RefVertices)
	if cpVerts == NoID || cpVerts == geom.Ref(RefVertices) {
		t.Fatalf("vertex reference not remapped: %d", cpVerts)
	}
	if parent, _ := g.Parent(cpVerts); parent != cp.ID() {
		t.Fatalf("remapped vertex list is not inside the copy")
	}
	if xyz, _ := cp.VertexCoords(1); xyz != [3]float32{3, 4, 0} {
		t.Fatalf("copied coordinates differ: %v", xyz)
	}

	cp.SetVertexCoords(1, [3]float32{9, 9, 9})
	if xyz, _ := geom.VertexCoords(1); xyz != [3]float32{3, 4, 0} {
		t.Fatalf("mutating the copy changed the source: %v", xyz)
	}
	geom.SetElementPointIDs(0, []int64{1, 0})
	if ids, _ := cp.GetElementPointIDs(0, nil); ids[0] != 0 {
		t.Fatalf("mutating the source changed the copy")
	}
}

func TestDeepCopyRejectsCopyIntoSelfAndCollisions(t *testing.T) {
	g := New()
	data, _ := CreateGroup(g, "Data", NoID)
	if _, err := CreateGroup(g, "Inner", data.ID()); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := g.DeepCopy(MustParsePath("/Data"), MustParsePath("/Data/Inner")); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected copy into own subtree to fail, got %v", err)
	}
	if _, err := g.DeepCopy(MustParsePath("/Data"), Path{}); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected collision when copying beside the source, got %v", err)
	}
	id, err := g.DeepCopyAs(MustParsePath("/Data"), Path{}, "DataCopy")
	if err != nil {
		t.Fatalf("DeepCopyAs: %v", err)
	}
	if !g.Contains(MustParsePath("/DataCopy/Inner")) {
		t.Fatalf("children not copied under %d", id)
	}
}

func TestCloneAndRestore(t *testing.T) {
	g := New()
	data, _ := CreateGroup(g, "Data", NoID)
	_, store := mustArray[int64](t, g, "Counts", data.ID(), 2)
	store.Set(0, 7)

	snapshot := g.Clone()
	if _, err := CreateGroup(g, "Scratch", NoID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	store.Set(0, 99)

	cloned, ok := ResolveAs[*DataArray](snapshot, MustParsePath("/Data/Counts"))
	if !ok {
		t.Fatalf("clone lost array")
	}
	cs, _ := ArrayStore[int64](cloned)
	if cs.At(0) != 7 {
		t.Fatalf("clone shares buffer with the original")
	}

	g.Restore(snapshot)
	if g.Contains(MustParsePath("/Scratch")) {
		t.Fatalf("restore kept objects created after the snapshot")
	}
	restored, _ := ResolveAs[*DataArray](g, MustParsePath("/Data/Counts"))
	if restored.Graph() != g {
		t.Fatalf("restored objects not bound to the graph")
	}
	rs, _ := ArrayStore[int64](restored)
	if rs.At(0) != 7 {
		t.Fatalf("restored value %d", rs.At(0))
	}
	next, _ := CreateGroup(g, "After", NoID)
	if next.ID() <= restored.ID() {
		t.Fatalf("identity reused after restore")
	}
}

func TestCloneStructureLoadsNothing(t *testing.T) {
	g := New()
	data, _ := CreateGroup(g, "Data", NoID)
	loads := 0
	lazy, err := datastore.NewLazyDataStore[float32](datastore.Shape{1 << 20}, datastore.Shape{1}, datastore.Shape{1 << 16},
		func(int) ([]byte, error) {
			loads++
			return make([]byte, 4<<16), nil
		})
	if err != nil {
		t.Fatalf("NewLazyDataStore: %v", err)
	}
	if _, err := CreateDataArray(g, "Big", data.ID(), lazy); err != nil {
		t.Fatalf("CreateDataArray: %v", err)
	}

	sim := g.CloneStructure()
	if loads != 0 {
		t.Fatalf("structural clone loaded %d chunks", loads)
	}
	arr, ok := ResolveAs[*DataArray](sim, MustParsePath("/Data/Big"))
	if !ok {
		t.Fatalf("clone lost array")
	}
	s := arr.Store()
	if s.Allocated() || s.DataType() != datastore.Float32 || s.NumTuples() != 1<<20 || !s.Chunked() || s.NumChunks() != 16 {
		t.Fatalf("unexpected structural store %s tuples=%d chunks=%d", s.DataType(), s.NumTuples(), s.NumChunks())
	}
	if arr.Graph() != sim {
		t.Fatalf("cloned array not bound to the clone")
	}
	if _, err := CreateGroup(sim, "Scratch", NoID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if g.Contains(MustParsePath("/Scratch")) {
		t.Fatalf("clone shares structure with the original")
	}
}

func TestRenameAndWalk(t *testing.T) {
	g := New()
	a, _ := CreateGroup(g, "A", NoID)
	b, _ := CreateGroup(g, "B", NoID)
	if _, err := CreateGroup(g, "Leaf", a.ID()); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := g.Rename(b.ID(), "A"); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected rename collision, got %v", err)
	}
	if err := g.Rename(b.ID(), "C"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	var seen []string
	err := g.Walk(func(p Path, obj Object) error {
		seen = append(seen, p.String())
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"/A", "/A/Leaf", "/C"}
	if len(seen) != len(want) {
		t.Fatalf("walk order %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("walk order %v, want %v", seen, want)
		}
	}
	seen = nil
	_ = g.Walk(func(p Path, obj Object) error {
		seen = append(seen, p.String())
		return SkipChildren
	})
	if len(seen) != 2 {
		t.Fatalf("SkipChildren did not prune: %v", seen)
	}
}

func TestInsertWithIDKeepsCounterAhead(t *testing.T) {
	g := New()
	if err := g.InsertWithID(NewGroup("Restored"), NoID, 40); err != nil {
		t.Fatalf("InsertWithID: %v", err)
	}
	if err := g.InsertWithID(NewGroup("Again"), NoID, 40); !errors.Is(err, ErrIdentityInUse) {
		t.Fatalf("expected identity clash, got %v", err)
	}
	id, err := g.Insert(NewGroup("Fresh"), NoID)
	if err != nil || id <= 40 {
		t.Fatalf("fresh identity %d overlaps restored ones", id)
	}
}

func TestParsePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "/", true},
		{"/", "/", true},
		{"/Data/Out", "/Data/Out", true},
		{"Data/Out", "/Data/Out", true},
		{"/Data//Out", "", false},
		{"/Data/ ", "", false},
	}
	for _, tc := range cases {
		p, err := ParsePath(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("ParsePath(%q) error = %v", tc.in, err)
		}
		if tc.ok && p.String() != tc.want {
			t.Fatalf("ParsePath(%q) = %s, want %s", tc.in, p, tc.want)
		}
	}
	p := MustParsePath("/a/b")
	if p.Parent().String() != "/a" || p.Name() != "b" || !p.HasPrefix(Path{"a"}) || p.WithName("c").String() != "/a/c" {
		t.Fatalf("path helpers misbehave")
	}
}
