// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tree

//go:generate mockgen -source policy.go -destination policy_mocks.go -package tree

// ChildUpdate carries the new digest of a single child of some node, at the
// given position among its siblings.
type ChildUpdate[D any] struct {
	Offset int // < the child's position below its parent, in [0, arity)
	Digest D   // < the child's new digest
}

// NodeHasher defines how the digests of an authenticated tree are computed
// from leaf data and combined into parent digests. Implementations based on
// collision-resistant hashing recompute parents from all children, while
// incremental schemes update parents from child deltas only.
//
// A NodeHasher is stateful in that it counts the cryptographic operations it
// performs, allowing the cost of different schemes to be compared.
type NodeHasher[L any, D any] interface {
	// EmptyDigest returns the digest assigned to every node of a tree before
	// any leaf data has been set.
	EmptyDigest() D

	// HashLeaf computes the digest of a leaf holding the given data. The
	// offset is the leaf's position below its parent and may be bound into
	// the digest by position-aware schemes.
	HashLeaf(offset int, data L) D

	// CombineChildren computes the new digest of a parent node after some of
	// its children changed. The old digests of the children are listed in
	// position order and may be shorter than the arity if trailing children
	// do not exist. The updates carry the new child digests sorted by offset;
	// every update offset refers to an existing child. Implementations may
	// modify the oldChildren slice.
	CombineChildren(oldParent D, oldChildren []D, updates []ChildUpdate[D]) D

	// Computations returns the number of cryptographic operations performed
	// by this hasher so far, in scheme-specific units.
	Computations() uint64

	// IsIncremental returns true if parents are updated from child deltas
	// rather than recomputed from all children.
	IsIncremental() bool
}
