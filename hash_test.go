package voxelis

import (
	"encoding/binary"
	"testing"

	"go.viam.com/test"
)

// hashLeafValueForTest mirrors the original's compute_leaf_hash_for_value
// for pinning hash stability in tests; production code never allocates a
// slot for a leaf, so this has no counterpart in hash.go itself.
func hashLeafValueForTest(h *hasher, value uint64) uint64 {
	const tagLeaf byte = 2
	var buf [9]byte
	buf[0] = tagLeaf
	binary.LittleEndian.PutUint64(buf[1:], value)
	h.digest.Reset()
	_, _ = h.digest.Write(buf[:])
	return h.digest.Sum64() ^ h.seed
}

func TestHashChildrenIsStableForIdenticalInput(t *testing.T) {
	h := newHasher(0)
	children := distinctChildren()

	a := h.hashChildren(children)
	b := h.hashChildren(children)
	test.That(t, a, test.ShouldEqual, b)
}

func TestHashChildrenDiffersOnDifferentInput(t *testing.T) {
	h := newHasher(0)
	c1 := distinctChildren()
	c2 := distinctChildren()
	c2[7] = leafBlockId(uint8(222))

	test.That(t, h.hashChildren(c1), test.ShouldNotEqual, h.hashChildren(c2))
}

func TestHashChildrenIsOrderSensitive(t *testing.T) {
	h := newHasher(0)
	c1 := distinctChildren()
	c2 := c1
	c2[0], c2[1] = c2[1], c2[0]

	test.That(t, h.hashChildren(c1), test.ShouldNotEqual, h.hashChildren(c2))
}

func TestHashChildrenIsSeedSensitive(t *testing.T) {
	children := distinctChildren()
	a := newHasher(1).hashChildren(children)
	b := newHasher(2).hashChildren(children)
	test.That(t, a, test.ShouldNotEqual, b)
}

func TestHashLeafValueIsStableAndDistinctFromBranchTag(t *testing.T) {
	h := newHasher(0)
	a := hashLeafValueForTest(h, 7)
	b := hashLeafValueForTest(h, 7)
	test.That(t, a, test.ShouldEqual, b)
	test.That(t, hashLeafValueForTest(h, 7), test.ShouldNotEqual, hashLeafValueForTest(h, 8))
}
