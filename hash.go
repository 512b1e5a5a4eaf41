package voxelis

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hasher computes the seeded content hash over a branch's eight children,
// the hash-consing key used to find a canonical slot. It hashes a tag byte
// followed by the packed child data with xxhash's fast non-cryptographic
// mixer, with the per-NodeStore seed XOR-folded into the digest.
type hasher struct {
	seed   uint64
	buf    [8*8 + 1]byte // tag byte + 8 children * 8 bytes
	digest *xxhash.Digest
}

func newHasher(seed uint64) *hasher {
	return &hasher{seed: seed, digest: xxhash.New()}
}

const tagBranch byte = 1

// hashChildren hashes the tag byte plus the eight children's raw uint64
// representation, in fixed octant order, so two branches with identical
// children tuples always hash identically regardless of how they were
// built. This is the precondition for hash-consing to collapse them onto
// one slot.
func (h *hasher) hashChildren(children [8]BlockId) uint64 {
	h.buf[0] = tagBranch
	off := 1
	for _, c := range children {
		binary.LittleEndian.PutUint64(h.buf[off:off+8], uint64(c))
		off += 8
	}
	h.digest.Reset()
	_, _ = h.digest.Write(h.buf[:off])
	return h.digest.Sum64() ^ h.seed
}
