package datagraph

import (
	"errors"
	"fmt"
	"sort"

	"latticecore/pkg/datastore"
)

// View is the read-only surface of a Graph handed to code that must not
// change structure, such as filter preflight.
type View interface {
	Get(id ID) (Object, bool)
	GetByPath(p Path) (ID, bool)
	Contains(p Path) bool
	Parent(id ID) (ID, bool)
	Children(parent ID) []ID
	ChildByName(parent ID, name string) (ID, bool)
	PathOf(id ID) (Path, bool)
	Walk(fn WalkFunc) error
	Len() int
}

// WalkFunc is called for every object visited by Walk. Returning SkipChildren
// prunes the subtree; any other error stops the walk.
type WalkFunc func(p Path, obj Object) error

// SkipChildren tells Walk not to descend into the current object.
var SkipChildren = errors.New("datagraph: skip children")

type node struct {
	obj      Object
	parent   ID
	children []ID
}

// Graph owns every object through one identity table and records the
// parent/child forest. It does no locking; one writer at a time.
type Graph struct {
	nodes  map[ID]*node
	roots  []ID
	nextID ID
}

var _ View = (*Graph)(nil)

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[ID]*node), nextID: 1}
}

// Len returns the number of live objects.
func (g *Graph) Len() int { return len(g.nodes) }

// Insert adds a detached object under parent (NoID for the root) and assigns
// it a fresh identity.
func (g *Graph) Insert(obj Object, parent ID) (ID, error) {
	id := g.nextID
	if err := g.attach(obj, parent, id); err != nil {
		return NoID, err
	}
	g.nextID++
	return id, nil
}

// InsertWithID is Insert with a caller-chosen identity, used when rebuilding a
// persisted graph. Later Inserts never reuse it.
func (g *Graph) InsertWithID(obj Object, parent, id ID) error {
	if id == NoID {
		return fmt.Errorf("%w: NoID", ErrIdentityInUse)
	}
	if _, taken := g.nodes[id]; taken {
		return fmt.Errorf("%w: %d", ErrIdentityInUse, id)
	}
	if err := g.attach(obj, parent, id); err != nil {
		return err
	}
	if id >= g.nextID {
		g.nextID = id + 1
	}
	return nil
}

func (g *Graph) attach(obj Object, parent, id ID) error {
	if obj == nil {
		return fmt.Errorf("datagraph: nil object")
	}
	b := obj.base()
	if b.graph != nil {
		return fmt.Errorf("%w: %q", ErrAttached, b.name)
	}
	if err := ValidateName(b.name); err != nil {
		return err
	}
	if err := g.checkPlacement(obj, b.name, parent, NoID); err != nil {
		return err
	}
	b.id, b.graph = id, g
	g.nodes[id] = &node{obj: obj, parent: parent}
	if parent == NoID {
		g.roots = append(g.roots, id)
	} else {
		pn := g.nodes[parent]
		pn.children = append(pn.children, id)
	}
	return nil
}

// checkPlacement verifies obj may live under parent with the given name.
// self is ignored when looking for sibling collisions.
func (g *Graph) checkPlacement(obj Object, name string, parent, self ID) error {
	if parent != NoID {
		pn, ok := g.nodes[parent]
		if !ok {
			return fmt.Errorf("%w: parent %d does not exist", ErrInvalidParent, parent)
		}
		c, ok := pn.obj.(container)
		if !ok {
			return fmt.Errorf("%w: %s %q cannot hold children", ErrInvalidParent, pn.obj.Kind(), pn.obj.Name())
		}
		if err := c.admit(obj); err != nil {
			return err
		}
	}
	for _, sib := range g.childIDs(parent) {
		if sib != self && g.nodes[sib].obj.Name() == name {
			return fmt.Errorf("%w: %q under %s", ErrNameCollision, name, g.describe(parent))
		}
	}
	return nil
}

func (g *Graph) describe(id ID) string {
	if p, ok := g.PathOf(id); ok {
		return p.String()
	}
	return fmt.Sprintf("#%d", id)
}

func (g *Graph) childIDs(parent ID) []ID {
	if parent == NoID {
		return g.roots
	}
	if n, ok := g.nodes[parent]; ok {
		return n.children
	}
	return nil
}

// Get returns the object with the given identity.
func (g *Graph) Get(id ID) (Object, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.obj, true
}

// GetAs returns the object with the given identity if it has type T. A type
// mismatch is reported as false, like a missing identity.
func GetAs[T Object](v View, id ID) (T, bool) {
	var zero T
	obj, ok := v.Get(id)
	if !ok {
		return zero, false
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// ResolveAs resolves p and downcasts the result to T.
func ResolveAs[T Object](v View, p Path) (T, bool) {
	id, ok := v.GetByPath(p)
	if !ok {
		var zero T
		return zero, false
	}
	return GetAs[T](v, id)
}

// Parent returns the parent identity of id; NoID for top-level objects.
func (g *Graph) Parent(id ID) (ID, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return NoID, false
	}
	return n.parent, true
}

// Children returns a copy of the ordered child identities of parent. NoID
// lists the top-level objects.
func (g *Graph) Children(parent ID) []ID {
	return append([]ID(nil), g.childIDs(parent)...)
}

// ChildByName finds a direct child by name.
func (g *Graph) ChildByName(parent ID, name string) (ID, bool) {
	for _, id := range g.childIDs(parent) {
		if g.nodes[id].obj.Name() == name {
			return id, true
		}
	}
	return NoID, false
}

// GetByPath walks the forest by name. The root path resolves to NoID.
func (g *Graph) GetByPath(p Path) (ID, bool) {
	cur := NoID
	for _, name := range p {
		next, ok := g.ChildByName(cur, name)
		if !ok {
			return NoID, false
		}
		cur = next
	}
	return cur, true
}

// Contains reports whether p resolves to an object. The root path is always
// contained.
func (g *Graph) Contains(p Path) bool {
	_, ok := g.GetByPath(p)
	return ok
}

// PathOf returns the path of id.
func (g *Graph) PathOf(id ID) (Path, bool) {
	var rev []string
	for cur := id; cur != NoID; {
		n, ok := g.nodes[cur]
		if !ok {
			return nil, false
		}
		rev = append(rev, n.obj.Name())
		cur = n.parent
	}
	out := make(Path, len(rev))
	for i, name := range rev {
		out[len(rev)-1-i] = name
	}
	return out, true
}

// Walk visits every object depth first, parents before children, siblings
// in insertion order.
func (g *Graph) Walk(fn WalkFunc) error {
	return g.walk(NoID, Path{}, fn)
}

func (g *Graph) walk(parent ID, prefix Path, fn WalkFunc) error {
	for _, id := range g.Children(parent) {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		p := prefix.Child(n.obj.Name())
		err := fn(p, n.obj)
		if errors.Is(err, SkipChildren) {
			continue
		}
		if err != nil {
			return err
		}
		if err := g.walk(id, p, fn); err != nil {
			return err
		}
	}
	return nil
}

// IDs returns every live identity in ascending order.
func (g *Graph) IDs() []ID {
	out := make([]ID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rename changes the name of id, keeping it unique among its siblings.
func (g *Graph) Rename(id ID, name string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	for _, sib := range g.childIDs(n.parent) {
		if sib != id && g.nodes[sib].obj.Name() == name {
			return fmt.Errorf("%w: %q under %s", ErrNameCollision, name, g.describe(n.parent))
		}
	}
	n.obj.base().name = name
	return nil
}

// Remove deletes id and all of its descendants, then clears every reference
// other objects held to any removed identity.
func (g *Graph) Remove(id ID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	removed := make(map[ID]struct{})
	g.collect(id, removed)

	if n.parent == NoID {
		g.roots = without(g.roots, id)
	} else if pn, ok := g.nodes[n.parent]; ok {
		pn.children = without(pn.children, id)
	}
	for rid := range removed {
		g.nodes[rid].obj.base().graph = nil
		delete(g.nodes, rid)
	}
	g.sweep(func(ref ID) ID {
		if _, gone := removed[ref]; gone {
			return NoID
		}
		return ref
	})
	return nil
}

// RemovePath resolves p and removes it.
func (g *Graph) RemovePath(p Path) error {
	id, ok := g.GetByPath(p)
	if !ok || id == NoID {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return g.Remove(id)
}

func (g *Graph) collect(id ID, into map[ID]struct{}) {
	into[id] = struct{}{}
	for _, child := range g.nodes[id].children {
		g.collect(child, into)
	}
}

func (g *Graph) sweep(fn func(ID) ID) {
	for _, n := range g.nodes {
		if r, ok := n.obj.(referrer); ok {
			r.rewriteRefs(fn)
		}
	}
}

func without(ids []ID, id ID) []ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// preorder lists id and its descendants, parents first.
func (g *Graph) preorder(id ID) []ID {
	out := []ID{id}
	for _, child := range g.nodes[id].children {
		out = append(out, g.preorder(child)...)
	}
	return out
}

func (g *Graph) isAncestor(ancestor, id ID) bool {
	for cur := id; cur != NoID; {
		n, ok := g.nodes[cur]
		if !ok {
			return false
		}
		if n.parent == ancestor {
			return true
		}
		cur = n.parent
	}
	return false
}

// DeepCopy copies the subtree at src under destParent with fresh identities.
// References between objects inside the subtree are remapped to the copies;
// references leaving the subtree still point at the original targets.
func (g *Graph) DeepCopy(src, destParent Path) (ID, error) {
	return g.DeepCopyAs(src, destParent, "")
}

// DeepCopyAs is DeepCopy that names the copied top object name. An empty name
// keeps the source name.
func (g *Graph) DeepCopyAs(src, destParent Path, name string) (ID, error) {
	srcID, ok := g.GetByPath(src)
	if !ok || srcID == NoID {
		return NoID, fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	destID, ok := g.GetByPath(destParent)
	if !ok {
		return NoID, fmt.Errorf("%w: destination %s does not exist", ErrInvalidParent, destParent)
	}
	if destID == srcID || g.isAncestor(srcID, destID) {
		return NoID, fmt.Errorf("%w: cannot copy %s into itself", ErrInvalidParent, src)
	}

	order := g.preorder(srcID)
	mapping := make(map[ID]ID, len(order))
	for i, old := range order {
		n := g.nodes[old]
		cp := n.obj.clone()
		parent := destID
		if i == 0 {
			if name != "" {
				cp.base().name = name
			}
		} else {
			parent = mapping[n.parent]
		}
		newID, err := g.Insert(cp, parent)
		if err != nil {
			if i > 0 {
				_ = g.Remove(mapping[srcID])
			}
			return NoID, err
		}
		mapping[old] = newID
	}
	for _, newID := range mapping {
		if r, ok := g.nodes[newID].obj.(referrer); ok {
			r.rewriteRefs(func(ref ID) ID {
				if m, ok := mapping[ref]; ok {
					return m
				}
				return ref
			})
		}
	}
	return mapping[srcID], nil
}

// Clone returns an independent deep copy with identical identities.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		nodes:  make(map[ID]*node, len(g.nodes)),
		roots:  append([]ID(nil), g.roots...),
		nextID: g.nextID,
	}
	for id, n := range g.nodes {
		cp := n.obj.clone()
		b := cp.base()
		b.id, b.graph = id, out
		out.nodes[id] = &node{obj: cp, parent: n.parent, children: append([]ID(nil), n.children...)}
	}
	return out
}

// CloneStructure is Clone with every array store swapped for a metadata-only
// one of the same type and shape. No chunk is loaded.
func (g *Graph) CloneStructure() *Graph {
	out := &Graph{
		nodes:  make(map[ID]*node, len(g.nodes)),
		roots:  append([]ID(nil), g.roots...),
		nextID: g.nextID,
	}
	for id, n := range g.nodes {
		var cp Object
		if arr, ok := n.obj.(*DataArray); ok {
			cp = NewDataArray(arr.name, structureOf(arr.store))
		} else {
			cp = n.obj.clone()
		}
		b := cp.base()
		b.id, b.graph = id, out
		out.nodes[id] = &node{obj: cp, parent: n.parent, children: append([]ID(nil), n.children...)}
	}
	return out
}

func structureOf(s datastore.Store) datastore.Store {
	if !s.Allocated() {
		return s.Clone()
	}
	var chunk datastore.Shape
	if s.Chunked() {
		chunk = s.ChunkShape()
	}
	empty, err := datastore.NewEmptyStore(s.DataType(), s.TupleShape(), s.ComponentShape(), chunk)
	if err != nil {
		return s.Clone()
	}
	return empty
}

// Restore replaces the contents of g with those of snapshot, typically one
// produced by Clone. Objects previously fetched from g are detached and must
// be looked up again. snapshot is left empty.
func (g *Graph) Restore(snapshot *Graph) {
	for _, n := range g.nodes {
		n.obj.base().graph = nil
	}
	g.nodes, g.roots, g.nextID = snapshot.nodes, snapshot.roots, snapshot.nextID
	for _, n := range g.nodes {
		n.obj.base().graph = g
	}
	*snapshot = Graph{nodes: make(map[ID]*node), nextID: 1}
}
