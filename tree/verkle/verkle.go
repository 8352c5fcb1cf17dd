// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package verkle implements tree hashing based on vector commitments. Each
// internal node commits to the vector of its child scalars, where a leaf
// child contributes its data scalar and an internal child the scalar its
// commitment maps to. Parent commitments are updated through commitment
// deltas, so the cost of a batch is proportional to the number of changed
// children, with a switch from serial single-point deltas to one batched
// commitment when a batch grows large.
package verkle

import (
	"fmt"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/tree"
	"golang.org/x/crypto/blake2b"
)

// defaultSerialCutoff is the batch size up to which per-child point deltas
// are cheaper than one batched commitment.
const defaultSerialCutoff = 5

var leafTag = []byte("leaf:")

type kind byte

const (
	kindEmpty kind = iota
	kindLeaf
	kindInternal
)

// Digest is the digest of a single tree node. Nodes that have never been
// written are empty, leaves carry the scalar of their data, and internal
// nodes carry the commitment to their child vector.
type Digest struct {
	kind   kind
	scalar commit.Value      // < the data scalar, for leaf digests
	point  commit.Commitment // < the child vector commitment, for internal digests
}

// IsEmpty returns true if this is the digest of a node that was never
// written.
func (d Digest) IsEmpty() bool {
	return d.kind == kindEmpty
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
	switch d.kind {
	case kindEmpty:
		return true
	case kindLeaf:
		return d.scalar == other.scalar
	default:
		return d.point.Equal(other.point)
	}
}

// Bytes returns a 32-byte serialization of the digest.
func (d Digest) Bytes() [32]byte {
	switch d.kind {
	case kindLeaf:
		return d.scalar.ToLittleEndianBytes()
	case kindInternal:
		return d.point.Compress()
	default:
		return [32]byte{}
	}
}

// Hasher computes vector commitment based node digests. Leaves are mapped
// to scalars by hashing their data with BLAKE2b, and each parent holds a
// commitment to the vector of its child scalars under the generator points
// of the commitment context.
type Hasher struct {
	ctx          *commit.Context
	arity        int
	serialCutoff int // < batches up to this size use per-child deltas
	numOps       uint64
}

// NewHasher creates a hasher for trees of the given arity, using the given
// context for all curve operations and the default cutoff between serial
// and batched commitment updates.
func NewHasher(ctx *commit.Context, arity int) (*Hasher, error) {
	return NewHasherWithCutoff(ctx, arity, defaultSerialCutoff)
}

// NewHasherWithCutoff creates a hasher like NewHasher, with an explicit
// cutoff up to which batches are processed through serial per-child deltas.
// A cutoff of zero routes every batch through a batched commitment.
func NewHasherWithCutoff(ctx *commit.Context, arity int, serialCutoff int) (*Hasher, error) {
	if arity < 2 || arity > commit.VectorSize {
		return nil, fmt.Errorf("%w: arity must be in [2, %d], got %d", tree.ErrInvalidArgument, commit.VectorSize, arity)
	}
	if serialCutoff < 0 {
		return nil, fmt.Errorf("%w: serial cutoff must not be negative, got %d", tree.ErrInvalidArgument, serialCutoff)
	}
	return &Hasher{ctx: ctx, arity: arity, serialCutoff: serialCutoff}, nil
}

// EmptyDigest returns the digest of a node that was never written.
func (h *Hasher) EmptyDigest() Digest {
	return Digest{kind: kindEmpty}
}

// HashLeaf computes the digest of a leaf, mapping its data to a scalar. The
// position of the leaf is bound to the digest later, when the leaf enters
// its parent's child vector.
func (h *Hasher) HashLeaf(_ int, data []byte) Digest {
	hasher, _ := blake2b.New512(nil)
	hasher.Write(leafTag)
	hasher.Write(data)
	return Digest{kind: kindLeaf, scalar: commit.NewValueFromBytes(hasher.Sum(nil))}
}

// childScalar maps a child digest to its slot in the parent's vector. Empty
// children occupy their slot with zero.
func childScalar(digest Digest) commit.Value {
	switch digest.kind {
	case kindLeaf:
		return digest.scalar
	case kindInternal:
		return digest.point.ToValue()
	default:
		return commit.Value{}
	}
}

// CombineChildren updates a parent commitment after some of its children
// changed. Each change contributes the difference between the new and the
// old child scalar at the child's position. Small batches are applied as
// one point delta per change, large batches as a single batched commitment
// to the sparse difference vector.
func (h *Hasher) CombineChildren(oldParent Digest, oldChildren []Digest, updates []tree.ChildUpdate[Digest]) Digest {
	type scalarUpdate struct {
		offset int
		value  commit.Value
	}
	changes := make([]scalarUpdate, 0, len(updates))
	for _, update := range updates {
		oldChild := oldChildren[update.Offset]
		newChild := update.Digest
		switch {
		case oldChild.kind == kindEmpty && newChild.kind == kindEmpty:
			panic("old and new child are both empty")
		case oldChild.kind == kindLeaf && newChild.kind == kindEmpty:
			panic("child update replaces a leaf with an empty node")
		case oldChild.kind == kindLeaf && newChild.kind == kindInternal:
			panic("child update replaces a leaf with an internal node")
		case oldChild.kind == kindInternal && newChild.kind == kindEmpty:
			panic("child update replaces an internal node with an empty node")
		case oldChild.kind == kindInternal && newChild.kind == kindLeaf:
			panic("child update replaces an internal node with a leaf")
		}
		changes = append(changes, scalarUpdate{
			offset: update.Offset,
			value:  childScalar(newChild).Sub(childScalar(oldChild)),
		})
	}

	h.numOps += uint64(len(changes))
	delta := commit.Identity()
	if len(changes) <= h.serialCutoff {
		for _, change := range changes {
			delta.Add(h.ctx.CommitDelta(byte(change.offset), change.value))
		}
	} else {
		var values [commit.VectorSize]commit.Value
		for _, change := range changes {
			values[change.offset] = change.value
		}
		delta = h.ctx.Commit(values)
	}

	switch oldParent.kind {
	case kindEmpty:
		return Digest{kind: kindInternal, point: delta}
	case kindInternal:
		sum := oldParent.point
		sum.Add(delta)
		return Digest{kind: kindInternal, point: sum}
	default:
		panic("parent of updated children is a leaf")
	}
}

// Computations returns the number of commitment updates performed so far,
// one per changed child.
func (h *Hasher) Computations() uint64 {
	return h.numOps
}

// IsIncremental returns true; parents are updated from child deltas.
func (h *Hasher) IsIncremental() bool {
	return true
}
