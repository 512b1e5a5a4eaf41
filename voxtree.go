package voxelis

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// VoxTree is a thin owner of one root BlockId plus a depth: every read and
// write routes through a shared NodeStore and performs copy-on-write on
// the path from root. Depth d means the root covers a 2^d x 2^d x 2^d cube
// of voxel positions in [0, 2^d).
//
// A NodeStore may back many VoxTrees at once, and sharing one across
// several chunks is the point: identical subtrees collapse onto the same
// slot wherever they occur.
type VoxTree[T Value] struct {
	root  BlockId
	depth uint8

	center     r3.Vector
	sideLength float64
}

// TreeOption configures a VoxTree at construction time.
type TreeOption[T Value] func(*VoxTree[T])

// WithWorldPlacement sets the center and side length VoxTree.Bounds
// reports, for collaborators (mesher, renderer, chunk grid) that need to
// place a tree's cube in world space. It has no bearing on DAG identity.
func WithWorldPlacement[T Value](center r3.Vector, sideLength float64) TreeOption[T] {
	return func(t *VoxTree[T]) {
		t.center = center
		t.sideLength = sideLength
	}
}

// NewVoxTree creates an empty VoxTree of the given depth, in [1, 8]. It
// starts out holding the canonical Empty root, consuming no slot in any
// NodeStore until the first Set/Fill.
func NewVoxTree[T Value](depth uint8, opts ...TreeOption[T]) (*VoxTree[T], error) {
	if depth < 1 || depth > 8 {
		return nil, errors.Errorf("invalid depth (%d) for vox tree, must be in [1,8]", depth)
	}

	t := &VoxTree[T]{
		root:       Empty,
		depth:      depth,
		sideLength: float64(uint32(1) << depth),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Depth reports the tree's depth.
func (t *VoxTree[T]) Depth() uint8 { return t.depth }

// Root reports the tree's current root handle, for tests and for seeding
// a Batch.
func (t *VoxTree[T]) Root() BlockId { return t.root }

// Bounds reports the world-space center and half-extent of the cube this
// tree covers, using whatever placement WithWorldPlacement set (the
// default is centered at the origin with side length 2^depth).
func (t *VoxTree[T]) Bounds() (center r3.Vector, halfExtent float64) {
	return t.center, t.sideLength / 2
}

func (t *VoxTree[T]) size() int32 { return int32(uint32(1) << t.depth) }

func (t *VoxTree[T]) inRange(pos [3]int32) bool {
	n := t.size()
	for _, c := range pos {
		if c < 0 || c >= n {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the tree's root is the canonical empty handle.
func (t *VoxTree[T]) IsEmpty() bool { return t.root.IsEmpty() }

// Get walks down from root following the octant at each level, returning
// the voxel value at pos. ok is false when pos falls in an empty region of
// the tree (it was never written, or was cleared). err is non-nil only
// when pos is outside [0, 2^depth) for this tree's depth.
func (t *VoxTree[T]) Get(ns *NodeStore[T], pos [3]int32) (value T, ok bool, err error) {
	if !t.inRange(pos) {
		return airOf[T](), false, invalidCoordinate(pos, t.depth)
	}

	h := t.root
	level := int(t.depth) - 1
	for h.IsBranch() {
		children := ns.Lookup(h)
		idx := octantIndex(pos, uint8(level))
		h = children[idx]
		level--
	}

	if h.IsEmpty() {
		return airOf[T](), false, nil
	}
	return LeafValue[T](h), true, nil
}

// Set performs copy-on-write insertion of value at pos: it builds a new
// spine from the leaf level up to the root through ns, swaps it in, and
// decrefs the old root exactly once. Because every unchanged sibling
// picked up an extra reference during the build (see NodeStore.GetOrIntern),
// this correctly reclaims only the nodes the write actually displaced.
//
// Writing a value a position already holds is a no-op all the way up: see
// setAt's oldChild/newChild check. When that makes the whole spine
// identical to what's already there, newRoot equals the live root and the
// swap/decref below is skipped, since it would otherwise decref a node the
// caller still owns with no corresponding increment.
//
// On ErrBudgetExceeded the tree is left exactly as it was: nothing is
// grafted onto the live root, and any subtree the failed build did manage
// to create is unwound via setAt's own rollback before the error
// propagates here.
func (t *VoxTree[T]) Set(ns *NodeStore[T], pos [3]int32, value T) error {
	if !t.inRange(pos) {
		return invalidCoordinate(pos, t.depth)
	}

	oldRoot := t.root
	newRoot, err := t.setAt(ns, oldRoot, pos, value, int(t.depth)-1)
	if err != nil {
		return err
	}
	if newRoot == oldRoot {
		return nil
	}

	t.root = newRoot
	ns.Decref(oldRoot)
	return nil
}

// setAt materializes h's children (splitting a leaf, or starting from
// all-empty), recurses into the selected octant, grafts the result back
// in, and interns. level counts down from depth-1 to -1; level -1 is the
// leaf level's base case.
//
// When the recursive call reports the selected child is unchanged
// (newChild equals the child that was already there, meaning the write
// was to a position already holding that value), this level is unchanged
// too: h is returned as-is, with no call into GetOrIntern. Skipping that
// call matters, since GetOrIntern's hit path increfs whatever existing
// slot it returns, on the assumption that a genuinely new parent is about
// to reference it. If nothing actually changed, the "new" parent is h
// itself, which the caller already owns through the spine, so incref'ing
// it here would add a reference nothing ever balances: the top-level
// Decref(oldRoot) only cascades past a node whose count reaches zero, and
// an unchanged root never does.
func (t *VoxTree[T]) setAt(ns *NodeStore[T], h BlockId, pos [3]int32, value T, level int) (BlockId, error) {
	if level < 0 {
		if value == ns.Air() {
			return Empty, nil
		}
		return leafBlockId(value), nil
	}

	children := materialize(ns, h)
	idx := octantIndex(pos, uint8(level))
	oldChild := children[idx]

	newChild, err := t.setAt(ns, oldChild, pos, value, level-1)
	if err != nil {
		return Empty, err
	}
	if newChild == oldChild {
		return h, nil
	}
	children[idx] = newChild

	var fresh [8]bool
	fresh[idx] = true

	newH, err := ns.GetOrIntern(children, fresh)
	if err != nil {
		ns.Decref(newChild)
		return Empty, err
	}
	return newH, nil
}

// materialize expands a handle into its eight logical children: empty
// stays all-empty, a leaf splits into eight copies of itself (the uniform
// cell being broken up), and a branch's children are read straight from
// the interner.
func materialize[T Value](ns *NodeStore[T], h BlockId) [8]BlockId {
	switch {
	case h.IsEmpty():
		return [8]BlockId{} // eight Empty handles
	case h.IsLeaf():
		var children [8]BlockId
		for i := range children {
			children[i] = h
		}
		return children
	default:
		return ns.Lookup(h)
	}
}

// Fill replaces the whole tree with a single uniform value in O(1): the
// root becomes leaf(value) (or Empty, if value is this store's air value),
// and the old root is decref'd.
func (t *VoxTree[T]) Fill(ns *NodeStore[T], value T) error {
	oldRoot := t.root
	if value == ns.Air() {
		t.root = Empty
	} else {
		t.root = leafBlockId(value)
	}
	ns.Decref(oldRoot)
	return nil
}

// Clear empties the tree in O(1) observable cost: the root becomes Empty
// and the old root is decref'd, which recursively frees the subgraph
// wherever refcounts drop to zero.
func (t *VoxTree[T]) Clear(ns *NodeStore[T]) {
	oldRoot := t.root
	t.root = Empty
	ns.Decref(oldRoot)
}
