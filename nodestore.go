package voxelis

import (
	"sync"
	"unsafe"

	"github.com/edaniels/golog"

	"github.com/WildPixelGames/voxelis/internal/pool"
)

// branchNode is a pool-resident branch record: eight children indexed by
// octant code, a reference count, and the cached content hash used to find
// it again.
type branchNode struct {
	children [8]BlockId
	refcount uint32
	hash     uint64
}

// InitialPatternCapacity sizes the hash-consing map's initial bucket count.
const InitialPatternCapacity = 16384

// NodeStore owns the branch-node pool: it hash-cons branches, ref-counts
// slots, and reclaims them on decref. A NodeStore is single-writer:
// GetOrIntern/Incref/Decref must not be called concurrently with each
// other. Lookup may be called concurrently with other Lookups while no
// mutation is in flight.
type NodeStore[T Value] struct {
	mu sync.RWMutex

	pool        *pool.Pool[branchNode]
	index       map[uint64][]uint32 // content hash -> candidate slots (collision chain)
	generations []uint32            // per-slot generation, tracked outside the pool so it
	// survives the zero-on-deallocate cycle a freed-then-reused slot goes through

	hasher *hasher
	logger golog.Logger
	air    T

	stats StoreStats
}

// Option configures a NodeStore at construction time.
type Option[T Value] func(*NodeStore[T])

// WithSeed sets the hash seed XOR-folded into every content-hash digest.
// Two NodeStores built with the same seed, and the same operations applied
// in the same order, hash identically. This exists for reproducible tests,
// not for DoS resistance.
func WithSeed[T Value](seed uint64) Option[T] {
	return func(ns *NodeStore[T]) { ns.hasher = newHasher(seed) }
}

// WithLogger attaches a logger for Debug-level diagnostics. Defaults to
// golog.NewDebugLogger("voxelis").
func WithLogger[T Value](logger golog.Logger) Option[T] {
	return func(ns *NodeStore[T]) { ns.logger = logger }
}

// WithAir designates which value of T denotes "air": the value that
// Set/Fill normalize to the empty handle rather than allocating a leaf
// for. Defaults to the zero value of T.
func WithAir[T Value](air T) Option[T] {
	return func(ns *NodeStore[T]) { ns.air = air }
}

// NewNodeStore builds a NodeStore with room for roughly budgetBytes worth
// of branch nodes. The byte budget is translated to a slot count by
// dividing by one branch record's in-memory size.
func NewNodeStore[T Value](budgetBytes uint64, opts ...Option[T]) *NodeStore[T] {
	nodeSize := uint64(unsafe.Sizeof(branchNode{}))
	capacity := int(budgetBytes / nodeSize)
	if capacity < 1 {
		capacity = 1
	}

	ns := &NodeStore[T]{
		pool:   pool.New[branchNode](capacity),
		index:  make(map[uint64][]uint32, InitialPatternCapacity),
		hasher: newHasher(0),
		logger: golog.NewDebugLogger("voxelis"),
	}
	for _, opt := range opts {
		opt(ns)
	}
	ns.stats.Capacity = uint64(capacity) * nodeSize
	return ns
}

// Air reports the value this store treats as "air".
func (ns *NodeStore[T]) Air() T { return ns.air }

// GetOrIntern returns the canonical branch handle for children, applying
// the collapse rules before lookup: a tuple of eight identical leaves
// collapses to that leaf, eight empties collapse to Empty. Otherwise it
// hash-cons's the tuple. On a cache hit it increfs the existing slot,
// releases the reference each fresh branch entry of children carried (the
// existing slot already holds its own), and returns its handle; on a miss
// it allocates a fresh slot with refcount 1 and increfs every entry in
// children not marked fresh.
//
// fresh identifies which entries of children were just produced by a
// nested build step in the same operation, as opposed to carried over
// unchanged from the tree's previous shape. A fresh entry already carries
// the one reference count its new parent needs, from its own creation. An
// unchanged entry is gaining a second owner and must be incref'd to
// reflect that.
//
// A BudgetExceeded failure here never mutates anything: nothing is touched
// before the pool allocation itself succeeds, so callers can roll back
// cleanly by decref'ing just the fresh child they already built.
func (ns *NodeStore[T]) GetOrIntern(children [8]BlockId, fresh [8]bool) (BlockId, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if collapsed, ok := collapse(children); ok {
		return collapsed, nil
	}

	hash := ns.hasher.hashChildren(children)

	if slot, ok := ns.findExact(hash, children); ok {
		ns.incSlot(slot)
		// The existing slot already holds its own reference to each child,
		// so the reference every fresh child carried for a new parent is
		// released here. A fresh branch child is itself held by this slot,
		// so its count stays above zero and nothing cascades.
		for i, c := range children {
			if fresh[i] && c.IsBranch() {
				ns.pool.Get(c.SlotIndex()).refcount--
			}
		}
		ns.stats.PatternHits++
		return branchBlockId(slot, ns.generationOf(slot)), nil
	}

	slot, ok := ns.pool.Allocate(branchNode{
		children: children,
		refcount: 1,
		hash:     hash,
	})
	if !ok {
		return Empty, ErrBudgetExceeded
	}
	ns.growGenerations(slot)

	ns.index[hash] = append(ns.index[hash], slot)
	ns.stats.PatternMisses++
	ns.stats.TotalAllocations++
	ns.logger.Debugw("interned new branch", "slot", slot, "hash", hash)

	for i, c := range children {
		if fresh[i] {
			continue
		}
		ns.incref(c)
	}

	return branchBlockId(slot, ns.generationOf(slot)), nil
}

// generationOf reports slot's current generation, growing the tracking
// slice lazily if this is the first time slot has been observed.
func (ns *NodeStore[T]) generationOf(slot uint32) uint32 {
	ns.growGenerations(slot)
	return ns.generations[slot]
}

func (ns *NodeStore[T]) growGenerations(slot uint32) {
	for uint32(len(ns.generations)) <= slot {
		ns.generations = append(ns.generations, 0)
	}
}

// collapse applies the canonicalization rule: eight identical leaves
// collapse to that leaf, eight empties collapse to Empty. It reports
// ok=false when children does not collapse and must be hash-consed as a
// genuine branch.
func collapse(children [8]BlockId) (BlockId, bool) {
	first := children[0]
	if !first.IsLeaf() && !first.IsEmpty() {
		return Empty, false
	}
	for _, c := range children[1:] {
		if c != first {
			return Empty, false
		}
	}
	return first, true
}

// Incref increments the refcount of a branch handle; it is a no-op for
// empty and leaf handles, which own no slot.
func (ns *NodeStore[T]) Incref(h BlockId) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.incref(h)
}

func (ns *NodeStore[T]) incref(h BlockId) {
	if !h.IsBranch() {
		return
	}
	ns.incSlot(h.SlotIndex())
}

func (ns *NodeStore[T]) incSlot(slot uint32) {
	node := ns.pool.Get(slot)
	node.refcount++
	if node.refcount > ns.stats.MaxBranchRefCount {
		ns.stats.MaxBranchRefCount = node.refcount
	}
}

// Decref decrements the refcount of a branch handle, cascading: when a
// slot's refcount reaches zero it is reclaimed (hash entry removed, slot
// returned to the free-list, generation bumped) and each of its own
// children is decref'd in turn. It is a no-op for empty and leaf handles.
// Decref of an already-zero slot is a fatal invariant violation since it
// indicates a use-after-free of a stale handle.
//
// This runs iteratively over an explicit work stack rather than by Go
// recursion, avoiding per-call overhead on deep cascades.
func (ns *NodeStore[T]) Decref(h BlockId) {
	if !h.IsBranch() {
		return
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	stack := []uint32{h.SlotIndex()}
	for len(stack) > 0 {
		slot := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := ns.pool.Get(slot)
		if node.refcount == 0 {
			fatalf("decref of already-zero slot %d", slot)
		}
		node.refcount--
		if node.refcount != 0 {
			continue
		}

		ns.removeHashEntry(node.hash, slot)
		children := node.children
		ns.generations[slot] = uint32((uint64(ns.generations[slot]) + 1) & MaxGeneration)
		ns.pool.Deallocate(slot)
		ns.stats.TotalReclamations++

		for _, c := range children {
			if c.IsBranch() {
				stack = append(stack, c.SlotIndex())
			}
		}
	}
}

func (ns *NodeStore[T]) findExact(hash uint64, children [8]BlockId) (uint32, bool) {
	for _, slot := range ns.index[hash] {
		if ns.pool.Get(slot).children == children {
			return slot, true
		}
	}
	return 0, false
}

func (ns *NodeStore[T]) removeHashEntry(hash uint64, slot uint32) {
	chain := ns.index[hash]
	for i, s := range chain {
		if s == slot {
			chain[i] = chain[len(chain)-1]
			ns.index[hash] = chain[:len(chain)-1]
			break
		}
	}
	if len(ns.index[hash]) == 0 {
		delete(ns.index, hash)
	}
}

// Lookup returns the eight children of a branch handle for read-only
// traversal, asserting the handle's generation still matches the slot's
// current one. Calling it with a stale handle whose slot has been
// reclaimed and reused is a fatal invariant violation, not a recoverable
// error.
func (ns *NodeStore[T]) Lookup(h BlockId) [8]BlockId {
	if !h.IsBranch() {
		fatalf("Lookup called on non-branch handle %s", h)
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	slot := h.SlotIndex()
	if ns.generations[slot] != h.Generation() {
		fatalf("stale handle %s: slot %d is now at generation %d", h, slot, ns.generations[slot])
	}
	return ns.pool.Get(slot).children
}

// RefCount reports the live refcount of a branch handle, for tests
// exercising P2. It returns 0 for empty/leaf handles,
// which own no slot and therefore have no refcount to report.
func (ns *NodeStore[T]) RefCount(h BlockId) uint32 {
	if !h.IsBranch() {
		return 0
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.pool.Get(h.SlotIndex()).refcount
}
