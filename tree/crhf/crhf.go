// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package crhf implements tree hashing based on plain collision-resistant
// hash functions. Parents are always recomputed from the full list of their
// children, at the cost of one hash invocation per parent.
package crhf

import (
	"fmt"
	"hash"

	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/tree"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Domain separation tags distinguishing leaf data from internal nodes.
var (
	leafTag     = []byte("leaf:")
	internalTag = []byte("internal:")
)

// Hasher computes node digests by feeding the tagged node content through a
// collision-resistant hash function. The digest of a leaf is H("leaf:" ||
// data), the digest of an internal node is H("internal:" || child digests).
type Hasher struct {
	arity     int
	newHash   func() hash.Hash
	numHashes uint64
}

// NewSha3Hasher creates a hasher for trees of the given arity using SHA3-256.
func NewSha3Hasher(arity int) (*Hasher, error) {
	return newHasher(arity, sha3.New256)
}

// NewBlake2bHasher creates a hasher for trees of the given arity using
// BLAKE2b-256.
func NewBlake2bHasher(arity int) (*Hasher, error) {
	return newHasher(arity, func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	})
}

// NewBlake2sHasher creates a hasher for trees of the given arity using
// BLAKE2s-256.
func NewBlake2sHasher(arity int) (*Hasher, error) {
	return newHasher(arity, func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	})
}

func newHasher(arity int, newHash func() hash.Hash) (*Hasher, error) {
	if arity < 2 {
		return nil, fmt.Errorf("%w: arity must be at least 2, got %d", tree.ErrInvalidArgument, arity)
	}
	return &Hasher{arity: arity, newHash: newHash}, nil
}

// EmptyDigest returns the zero digest used for nodes that never received
// content.
func (h *Hasher) EmptyDigest() common.Hash {
	return common.Hash{}
}

// HashLeaf computes the digest of a leaf. The position of the leaf below its
// parent does not contribute to the digest.
func (h *Hasher) HashLeaf(_ int, data []byte) common.Hash {
	h.numHashes++
	hasher := h.newHash()
	hasher.Write(leafTag)
	hasher.Write(data)
	var res common.Hash
	hasher.Sum(res[:0])
	return res
}

// CombineChildren recomputes a parent digest from all children, with the
// updated child digests replacing their old values. The old parent digest is
// not needed for the recomputation.
func (h *Hasher) CombineChildren(_ common.Hash, oldChildren []common.Hash, updates []tree.ChildUpdate[common.Hash]) common.Hash {
	if len(oldChildren) > h.arity {
		panic(fmt.Sprintf("node with %d children exceeds arity %d", len(oldChildren), h.arity))
	}
	h.numHashes++
	for _, update := range updates {
		oldChildren[update.Offset] = update.Digest
	}
	hasher := h.newHash()
	hasher.Write(internalTag)
	for i := range oldChildren {
		hasher.Write(oldChildren[i][:])
	}
	var res common.Hash
	hasher.Sum(res[:0])
	return res
}

// Computations returns the number of hash invocations performed so far.
func (h *Hasher) Computations() uint64 {
	return h.numHashes
}

// IsIncremental returns false; parents are recomputed from scratch.
func (h *Hasher) IsIncremental() bool {
	return false
}
