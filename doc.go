// Package voxelis implements the DAG core of a sparse voxel octree: a
// hash-consed, reference-counted node store, a copy-on-write tree built on
// top of it, a batch editor for amortized bulk edits, and a level-of-detail
// projection.
//
// A NodeStore owns a budgeted pool of branch nodes and interns them by the
// content hash of their eight children, so structurally identical subtrees
// collapse onto the same BlockId everywhere in the process. A VoxTree is a
// thin handle into that pool: one root BlockId plus a depth. Many VoxTrees
// may share one NodeStore, and commonly do: that sharing is the whole
// point, since a chunk grid full of empty or uniform regions pays for the
// pattern once.
//
// The mesher, the terrain generator, the VTM file format, chunk-grid world
// management and any renderer integration live outside this package; they
// consume it through Get, Set, Fill, Clear, ApplyBatch, ToVec and IsEmpty.
package voxelis
