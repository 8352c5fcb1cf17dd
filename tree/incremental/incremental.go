// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package incremental implements tree hashing with incrementally updatable
// parent digests. The digest of an internal node is the sum of one curve
// point per child, each derived from the child's digest and position. Adding
// and subtracting child points updates a parent without touching its
// unchanged children, making the cost of an update proportional to the
// number of changed children instead of the arity.
package incremental

import (
	"encoding/binary"
	"fmt"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/tree"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

var leafTag = []byte("leaf:")

type kind byte

const (
	kindInternal kind = iota
	kindLeaf
)

// Digest is the digest of a single tree node. Leaves carry a plain hash of
// their data, internal nodes carry the running sum of their child points.
type Digest struct {
	kind kind
	hash common.Hash       // < the data hash, for leaf digests
	sum  commit.Commitment // < the sum of the child points, for internal digests
}

// IsLeaf returns true if this is the digest of a leaf.
func (d Digest) IsLeaf() bool {
	return d.kind == kindLeaf
}

// Equal checks if two digests are identical.
func (d Digest) Equal(other Digest) bool {
	if d.kind != other.kind {
		return false
	}
	if d.kind == kindLeaf {
		return d.hash == other.hash
	}
	return d.sum.Equal(other.sum)
}

// Bytes returns a 32-byte serialization of the digest.
func (d Digest) Bytes() [32]byte {
	if d.kind == kindLeaf {
		return d.hash
	}
	return d.sum.Compress()
}

// Hasher computes incrementally updatable node digests. Leaves are hashed
// with SHA3-256, and each child contributes the point delta(i, digest) =
// H(digest || i) * G_i to its parent's sum, where H maps into the scalar
// field and G_i is the i-th generator of the commitment context.
type Hasher struct {
	ctx    *commit.Context
	arity  int
	numOps uint64
}

// NewHasher creates a hasher for trees of the given arity, using the given
// context for all curve operations. The arity is limited by the number of
// generator points of the context.
func NewHasher(ctx *commit.Context, arity int) (*Hasher, error) {
	if arity < 2 || arity > commit.VectorSize {
		return nil, fmt.Errorf("%w: arity must be in [2, %d], got %d", tree.ErrInvalidArgument, commit.VectorSize, arity)
	}
	return &Hasher{ctx: ctx, arity: arity}, nil
}

// EmptyDigest returns the digest of a node without any content, the sum of
// an empty set of child points.
func (h *Hasher) EmptyDigest() Digest {
	return Digest{kind: kindInternal, sum: commit.Identity()}
}

// HashLeaf computes the digest of a leaf. The position of the leaf is bound
// to the digest later, when the leaf contributes to its parent's sum.
func (h *Hasher) HashLeaf(_ int, data []byte) Digest {
	hasher := sha3.New256()
	hasher.Write(leafTag)
	hasher.Write(data)
	var res common.Hash
	hasher.Sum(res[:0])
	return Digest{kind: kindLeaf, hash: res}
}

// CombineChildren updates a parent digest after some of its children
// changed. If more than half of the children changed, the sum is recomputed
// from all children at the cost of one operation per child slot. Otherwise
// the old child points are subtracted from the parent's sum and the new ones
// added, at the cost of two operations per changed child.
func (h *Hasher) CombineChildren(oldParent Digest, oldChildren []Digest, updates []tree.ChildUpdate[Digest]) Digest {
	if len(updates) > h.arity/2 {
		h.numOps += uint64(h.arity)
		for _, update := range updates {
			oldChildren[update.Offset] = update.Digest
		}
		var values [commit.VectorSize]commit.Value
		for i, child := range oldChildren {
			values[i] = h.childScalar(i, child)
		}
		return Digest{kind: kindInternal, sum: h.ctx.Commit(values)}
	}

	if oldParent.kind != kindInternal {
		panic("parent of updated children is not an internal node")
	}
	sum := oldParent.sum
	ops := uint64(0)
	for _, update := range updates {
		ops += 2
		oldScalar := h.childScalar(update.Offset, oldChildren[update.Offset])
		newScalar := h.childScalar(update.Offset, update.Digest)
		sum.Add(h.ctx.CommitDelta(byte(update.Offset), newScalar.Sub(oldScalar)))
	}
	if ops > uint64(h.arity) {
		panic(fmt.Sprintf("incremental update of %d children costs more than a recomputation", len(updates)))
	}
	h.numOps += ops
	return Digest{kind: kindInternal, sum: sum}
}

// childScalar maps a child digest and its position to the scalar of the
// child's contribution to the parent sum.
func (h *Hasher) childScalar(offset int, digest Digest) commit.Value {
	var buf [40]byte
	serialized := digest.Bytes()
	copy(buf[:32], serialized[:])
	binary.LittleEndian.PutUint64(buf[32:], uint64(offset))
	wide := blake2b.Sum512(buf[:])
	return commit.NewValueFromBytes(wide[:])
}

// Computations returns the number of point operations performed so far.
func (h *Hasher) Computations() uint64 {
	return h.numOps
}

// IsIncremental returns true; parents are updated from child deltas.
func (h *Hasher) IsIncremental() bool {
	return true
}
