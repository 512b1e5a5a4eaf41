package voxelis

import "github.com/pkg/errors"

// ToVec projects the tree into a dense linearized view truncated at level
// lod: traversal stops at that level and samples the subtree's dominant
// value. Output order is x-fastest, then z, then y, and the result has
// length (2^(depth-lod))^3.
//
// A branch's dominant value at the truncation level is the value of its
// first non-empty child in fixed octant order, recursed until a leaf or
// Empty is reached. That recursion always terminates because no live
// branch has all eight children empty.
func (t *VoxTree[T]) ToVec(ns *NodeStore[T], lod uint8) ([]T, error) {
	if lod > t.depth {
		return nil, errors.Errorf("lod %d exceeds tree depth %d", lod, t.depth)
	}

	side := int(uint32(1) << (t.depth - lod))
	out := make([]T, side*side*side)

	i := 0
	for y := 0; y < side; y++ {
		for z := 0; z < side; z++ {
			for x := 0; x < side; x++ {
				pos := [3]int32{
					int32(x) << lod,
					int32(y) << lod,
					int32(z) << lod,
				}
				out[i] = t.sampleAt(ns, pos, lod)
				i++
			}
		}
	}
	return out, nil
}

// sampleAt descends from root down to (but not past) level lod, following
// the octant of pos at each level, then reports the dominant value of
// whatever subtree it lands on.
func (t *VoxTree[T]) sampleAt(ns *NodeStore[T], pos [3]int32, lod uint8) T {
	h := t.root
	for level := int(t.depth) - 1; level >= int(lod); level-- {
		if !h.IsBranch() {
			break
		}
		children := ns.Lookup(h)
		h = children[octantIndex(pos, uint8(level))]
	}
	return t.dominantValue(ns, h)
}

func (t *VoxTree[T]) dominantValue(ns *NodeStore[T], h BlockId) T {
	for h.IsBranch() {
		children := ns.Lookup(h)
		h = firstNonEmptyChild(children)
	}
	if h.IsEmpty() {
		return ns.Air()
	}
	return LeafValue[T](h)
}

// firstNonEmptyChild returns the first non-empty child in fixed octant
// order 0..7. A live branch always has at least one.
func firstNonEmptyChild(children [8]BlockId) BlockId {
	for _, c := range children {
		if !c.IsEmpty() {
			return c
		}
	}
	fatalf("branch with all-empty children encountered during LOD sampling")
	return Empty
}
