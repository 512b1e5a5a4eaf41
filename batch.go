package voxelis

// batchKind tags which variant a batchNode currently holds: Unchanged,
// Leaf, Branch, or Empty.
type batchKind uint8

const (
	batchUnchanged batchKind = iota
	batchLeaf
	batchBranch
	batchEmpty
)

// batchNode is one node of a batch's patch tree. Only the field matching
// kind is meaningful; a tagged struct rather than an interface-per-variant
// design, since the set of variants is closed and known at compile time.
type batchNode[T Value] struct {
	kind      batchKind
	unchanged BlockId             // valid when kind == batchUnchanged
	leaf      T                   // valid when kind == batchLeaf
	branch    *batchBranchNode[T] // valid when kind == batchBranch
}

// batchBranchNode is an owned, possibly-dirty subtree of a batch: eight
// batchNode children, allocated lazily the first time a write needs to
// descend through this position.
//
// origin records the live branch handle this node was exploded from, when
// it was exploded from an existing branch rather than from a Leaf or
// Empty. hasOrigin is false for a branch built from scratch, which has no
// single existing handle to fall back to. commitBatchNode uses this to
// recognize a subtree that was walked into but never actually changed, and
// hand back origin verbatim instead of re-interning content that is
// already canonical.
type batchBranchNode[T Value] struct {
	children  [8]batchNode[T]
	origin    BlockId
	hasOrigin bool
}

// Batch is a transient, mutable patch tree over a VoxTree: writes land in
// plain struct fields rather than going through the interner, so repeated
// writes into the same subtree cost array assignments instead of a
// hash-cons per level. Nothing here occupies a NodeStore slot until
// ApplyBatch commits it.
type Batch[T Value] struct {
	root   batchNode[T]
	depth  uint8
	writes int
	dirty  bool
}

// CreateBatch opens a batch over tree: the batch root starts as
// Unchanged(tree.root), referencing the tree's current state without
// copying it.
func (t *VoxTree[T]) CreateBatch() *Batch[T] {
	return &Batch[T]{
		root:  batchNode[T]{kind: batchUnchanged, unchanged: t.root},
		depth: t.depth,
	}
}

// Size reports the number of Set calls recorded since the batch was
// created or last committed.
func (b *Batch[T]) Size() int { return b.writes }

// Dirty reports whether any Set/Fill/Clear has been recorded since the
// batch was created or last committed.
func (b *Batch[T]) Dirty() bool { return b.dirty }

// Fill replaces the batch root with a uniform value in O(1); the
// underlying tree is unaffected until ApplyBatch commits it.
func (b *Batch[T]) Fill(value T) {
	b.root = batchNode[T]{kind: batchLeaf, leaf: value}
	b.dirty = true
}

// Clear replaces the batch root with Empty in O(1).
func (b *Batch[T]) Clear() {
	b.root = batchNode[T]{kind: batchEmpty}
	b.dirty = true
}

// Set walks the batch from its root, materializing Unchanged nodes into
// owned Branch nodes along the way (consulting ns only to read an
// Unchanged branch's existing children), and writes Leaf(value) at the
// target position, unless the node there already denotes value, in which
// case it is left as it was. No hash-consing happens here; that's deferred entirely
// to ApplyBatch, which is why repeated writes into the same subtree are
// cheap.
func (b *Batch[T]) Set(ns *NodeStore[T], pos [3]int32, value T) error {
	if !inRangeAt(pos, b.depth) {
		return invalidCoordinate(pos, b.depth)
	}
	setBatchNode(ns, &b.root, pos, value, int(b.depth)-1)
	b.writes++
	b.dirty = true
	return nil
}

func inRangeAt(pos [3]int32, depth uint8) bool {
	n := int32(uint32(1) << depth)
	for _, c := range pos {
		if c < 0 || c >= n {
			return false
		}
	}
	return true
}

func setBatchNode[T Value](ns *NodeStore[T], node *batchNode[T], pos [3]int32, value T, level int) {
	if level < 0 {
		if isNoOpLeafWrite(ns, node, value) {
			return
		}
		*node = batchNode[T]{kind: batchLeaf, leaf: value}
		return
	}

	materializeBatchNode(ns, node)
	idx := octantIndex(pos, uint8(level))
	setBatchNode(ns, &node.branch.children[idx], pos, value, level-1)
}

// isNoOpLeafWrite reports whether node, the voxel-granularity node about
// to be overwritten, already denotes value, so the write can be skipped
// entirely and node left exactly as it was (still Unchanged, if that's
// what it was). Leaving it Unchanged rather than rewriting it as a fresh
// Leaf is what lets commitBatchNode recognize, level by level on the way
// back up, that nothing under a given branch actually changed, and hand
// back the existing canonical handle instead of re-interning it and
// over-counting its refcount.
func isNoOpLeafWrite[T Value](ns *NodeStore[T], node *batchNode[T], value T) bool {
	switch node.kind {
	case batchUnchanged:
		h := node.unchanged
		switch {
		case h.IsEmpty():
			return value == ns.Air()
		case h.IsLeaf():
			return LeafValue[T](h) == value
		default:
			return false // a branch handle can't occur at voxel granularity
		}
	case batchLeaf:
		return node.leaf == value
	case batchEmpty:
		return value == ns.Air()
	default: // batchBranch: can't occur at voxel granularity
		return false
	}
}

// materializeBatchNode ensures node holds a Branch, expanding whatever
// variant it currently is (Unchanged/Leaf/Empty) into eight children of
// the corresponding variant. A node already holding a Branch is left
// untouched, which is what makes repeated writes into an already-dirtied
// subtree cheap.
func materializeBatchNode[T Value](ns *NodeStore[T], node *batchNode[T]) {
	if node.kind == batchBranch {
		return
	}

	branch := &batchBranchNode[T]{}
	switch node.kind {
	case batchUnchanged:
		h := node.unchanged
		switch {
		case h.IsEmpty():
			fillBatchChildren(branch, batchNode[T]{kind: batchEmpty})
		case h.IsLeaf():
			fillBatchChildren(branch, batchNode[T]{kind: batchLeaf, leaf: LeafValue[T](h)})
		default:
			branch.origin = h
			branch.hasOrigin = true
			for i, c := range ns.Lookup(h) {
				branch.children[i] = batchNode[T]{kind: batchUnchanged, unchanged: c}
			}
		}
	case batchLeaf:
		fillBatchChildren(branch, batchNode[T]{kind: batchLeaf, leaf: node.leaf})
	case batchEmpty:
		fillBatchChildren(branch, batchNode[T]{kind: batchEmpty})
	}

	node.kind = batchBranch
	node.branch = branch
}

func fillBatchChildren[T Value](branch *batchBranchNode[T], v batchNode[T]) {
	for i := range branch.children {
		branch.children[i] = v
	}
}

// ApplyBatch commits a batch bottom-up in a single canonicalizing sweep:
// each Branch node interns its already-committed children exactly once,
// regardless of how many individual Set calls touched that subtree. The
// live tree's root is swapped only after the whole commit succeeds; on
// ErrBudgetExceeded every slot the partial commit allocated is unwound via
// decref before the error reaches the caller, and the live tree is left
// exactly as it was.
//
// A batch that never recorded a write (b.dirty is false, including an
// already-committed batch applied a second time with no Set/Fill/Clear in
// between) is a no-op: committing it would walk an Unchanged root straight
// through to commitBatchNode, which hands back the live root verbatim with
// no incref, and swapping it in anyway would drive that root's refcount to
// zero out from under the tree still pointing at it. commitBatchNode's own
// fresh return closes the equivalent case for every node below the root
// too: rootFresh is true only when the commit genuinely minted or
// re-referenced something new, so root swaps happen only when there is a
// corresponding new reference to balance against the decref of the old
// root.
func (t *VoxTree[T]) ApplyBatch(ns *NodeStore[T], b *Batch[T]) error {
	if !b.dirty {
		b.root = batchNode[T]{kind: batchUnchanged, unchanged: t.root}
		b.writes = 0
		return nil
	}

	newRoot, rootFresh, err := commitBatchNode(ns, &b.root)
	if err != nil {
		return err
	}

	if rootFresh {
		oldRoot := t.root
		t.root = newRoot
		ns.Decref(oldRoot)
	}

	b.root = batchNode[T]{kind: batchUnchanged, unchanged: t.root}
	b.writes = 0
	b.dirty = false
	return nil
}

// commitBatchNode commits node and reports whether the handle it returns
// is fresh: freshly minted by this exact call (a new leaf, or a branch
// GetOrIntern just allocated or hash-cons-hit on behalf of a genuinely new
// parent) as opposed to an untouched handle reused verbatim from the live
// tree. fresh=true means the returned handle already carries the one
// reference its caller needs and must not be incref'd again; fresh=false
// means it is an existing handle that the caller must incref if it is
// about to gain a new parent.
//
// This distinction is what lets a Branch whose eight committed children
// are all non-fresh short-circuit to its own origin handle without ever
// calling GetOrIntern. A kind check alone can't tell a real change from a
// reasserted one, since Batch.Set materializes every node on the path to
// the voxel it targets into a Branch even when isNoOpLeafWrite then skips
// the write at the voxel itself. The fresh flag computed here propagates
// that answer up through every Branch in between.
func commitBatchNode[T Value](ns *NodeStore[T], node *batchNode[T]) (BlockId, bool, error) {
	switch node.kind {
	case batchUnchanged:
		return node.unchanged, false, nil
	case batchEmpty:
		return Empty, true, nil
	case batchLeaf:
		if node.leaf == ns.Air() {
			return Empty, true, nil
		}
		return leafBlockId(node.leaf), true, nil
	default: // batchBranch
		var children [8]BlockId
		var fresh [8]bool
		anyFresh := false

		for i := range node.branch.children {
			child := &node.branch.children[i]

			h, f, err := commitBatchNode(ns, child)
			if err != nil {
				rollbackCommitted(ns, children[:i], fresh[:i])
				return Empty, false, err
			}
			children[i] = h
			fresh[i] = f
			anyFresh = anyFresh || f
		}

		if !anyFresh && node.branch.hasOrigin {
			return node.branch.origin, false, nil
		}

		newH, err := ns.GetOrIntern(children, fresh)
		if err != nil {
			rollbackCommitted(ns, children[:], fresh[:])
			return Empty, false, err
		}
		return newH, true, nil
	}
}

// rollbackCommitted decrefs every fresh handle in committed, undoing the
// ownership commitBatchNode's successful children already hold once a
// sibling or the parent's own GetOrIntern fails. Non-fresh handles are
// skipped: they belong to the live tree (or an untouched subtree of it)
// already and were never granted a new reference by this commit attempt.
func rollbackCommitted[T Value](ns *NodeStore[T], committed []BlockId, fresh []bool) {
	for i, h := range committed {
		if fresh[i] {
			ns.Decref(h)
		}
	}
}
