package pool

import (
	"testing"

	"go.viam.com/test"
)

func TestAllocateGrowsUntilCapacity(t *testing.T) {
	p := New[int](3)

	i0, ok := p.Allocate(10)
	test.That(t, ok, test.ShouldBeTrue)
	i1, ok := p.Allocate(20)
	test.That(t, ok, test.ShouldBeTrue)
	i2, ok := p.Allocate(30)
	test.That(t, ok, test.ShouldBeTrue)

	test.That(t, []uint32{i0, i1, i2}, test.ShouldResemble, []uint32{0, 1, 2})
	test.That(t, p.Len(), test.ShouldEqual, 3)

	_, ok = p.Allocate(40)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDeallocateReusesMostRecentlyFreedFirst(t *testing.T) {
	p := New[int](4)

	a, _ := p.Allocate(1)
	b, _ := p.Allocate(2)
	c, _ := p.Allocate(3)

	p.Deallocate(a)
	p.Deallocate(b)

	// LIFO: b was freed last, so it's handed out first.
	next, ok := p.Allocate(99)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, next, test.ShouldEqual, b)

	next2, ok := p.Allocate(98)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, next2, test.ShouldEqual, a)

	test.That(t, *p.Get(c), test.ShouldEqual, 3)
}

func TestDeallocateZeroesTheSlot(t *testing.T) {
	p := New[int](2)
	idx, _ := p.Allocate(42)
	p.Deallocate(idx)
	test.That(t, *p.Get(idx), test.ShouldEqual, 0)
	test.That(t, p.Free(), test.ShouldEqual, 1)
	test.That(t, p.live, test.ShouldEqual, 0)
}

func TestCapacityAndLenTrackUsage(t *testing.T) {
	p := New[string](5)
	test.That(t, p.Capacity(), test.ShouldEqual, 5)
	test.That(t, p.Len(), test.ShouldEqual, 0)

	idx, ok := p.Allocate("x")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p.Len(), test.ShouldEqual, 1)

	p.Deallocate(idx)
	test.That(t, p.Len(), test.ShouldEqual, 0)
	test.That(t, p.Free(), test.ShouldEqual, 1)
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	test.That(t, func() { New[int](0) }, test.ShouldPanic)
	test.That(t, func() { New[int](-1) }, test.ShouldPanic)
}
