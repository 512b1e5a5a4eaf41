package voxelis

import (
	"testing"

	"go.viam.com/test"
)

func TestBlockIdEmptyIsZeroValue(t *testing.T) {
	var b BlockId
	test.That(t, b, test.ShouldEqual, Empty)
	test.That(t, b.IsEmpty(), test.ShouldBeTrue)
	test.That(t, b.Kind(), test.ShouldEqual, KindEmpty)
}

func TestBlockIdLeafRoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 42, 65535} {
		b := leafBlockId(v)
		test.That(t, b.IsLeaf(), test.ShouldBeTrue)
		test.That(t, b.IsEmpty(), test.ShouldBeFalse)
		test.That(t, b.IsBranch(), test.ShouldBeFalse)
		test.That(t, LeafValue[uint16](b), test.ShouldEqual, v)
	}
}

func TestBlockIdBranchRoundTrip(t *testing.T) {
	b := branchBlockId(12345, 7)
	test.That(t, b.IsBranch(), test.ShouldBeTrue)
	test.That(t, b.SlotIndex(), test.ShouldEqual, uint32(12345))
	test.That(t, b.Generation(), test.ShouldEqual, uint32(7))
}

func TestBlockIdEqualityIsRawIdentity(t *testing.T) {
	a := leafBlockId(uint8(9))
	b := leafBlockId(uint8(9))
	c := leafBlockId(uint8(10))
	test.That(t, a, test.ShouldEqual, b)
	test.That(t, a, test.ShouldNotEqual, c)
}

func TestBlockIdAccessorsPanicOnWrongKind(t *testing.T) {
	leaf := leafBlockId(uint8(1))
	branch := branchBlockId(0, 0)

	test.That(t, func() { LeafValue[uint8](branch) }, test.ShouldPanic)
	test.That(t, func() { Empty.SlotIndex() }, test.ShouldPanic)
	test.That(t, func() { leaf.Generation() }, test.ShouldPanic)
}

func TestOctantIndexCoversAllEightOctants(t *testing.T) {
	seen := make(map[int]bool)
	for x := int32(0); x < 2; x++ {
		for y := int32(0); y < 2; y++ {
			for z := int32(0); z < 2; z++ {
				seen[octantIndex([3]int32{x, y, z}, 0)] = true
			}
		}
	}
	test.That(t, len(seen), test.ShouldEqual, 8)
}
