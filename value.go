package voxelis

import "golang.org/x/exp/constraints"

// Value is the voxel payload type a NodeStore and VoxTree are parameterized
// over. It is bounded to constraints.Integer rather than a hand-rolled
// trait: any integer type is already Copy, comparable and hashable by Go's
// own rules, and fits the "small, fits in the leaf payload" requirement
// once it's 32 bits or narrower.
type Value interface {
	constraints.Integer
}

// airOf returns the zero value of T, which is also a NodeStore's default
// air value (NodeStore.Air; WithAir designates a different one for voxel
// types where zero is a legitimate non-air value). VoxTree.Get returns it
// alongside ok=false; it does not follow WithAir.
func airOf[T Value]() T {
	var zero T
	return zero
}
