// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package tree provides an authenticated k-ary tree over a flat node array,
// supporting batched leaf updates under pluggable hashing schemes.
package tree

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/0xsoniclabs/authtree/common"
)

// ErrInvalidArgument is the error returned when an operation is rejected
// because of invalid parameters, wrapped with details on the cause.
var ErrInvalidArgument = errors.New("invalid argument")

// Update assigns new data to the leaf at the given position.
type Update[L any] struct {
	Position uint64 // < the leaf position, in [0, NumLeaves)
	Data     L      // < the new leaf data
}

// Tree is an authenticated k-ary tree over leaves of type L with node digests
// of type D. All nodes are held in a single array in breadth-first order, and
// leaf updates are propagated to the root level by level using the tree's
// NodeHasher.
//
// The number of leaves does not need to be a power of the arity. If it is
// not, the leaves are split across the two bottom levels of the tree: leaf
// positions [0, r) live on the second-to-last level and positions [r, n) on
// the last level, for an r determined by the tree geometry. A Tree is not
// safe for concurrent use.
type Tree[L any, D any] struct {
	arity     int
	numLeaves uint64

	// The flat array of all nodes. The root is nodes[0], the children of
	// nodes[i] are nodes[i*k+1 .. i*k+k].
	nodes []D

	numInternalNodes uint64

	// The node index of the first leaf on the last level of the tree. Leaves
	// at smaller indexes live on the second-to-last level.
	firstLastLevelLeaf NodeIndex

	hasher NodeHasher[L, D]

	// Tracks the nodes hashed while processing a batch. A node hashed twice
	// within one batch indicates a propagation error and is fatal.
	touched map[NodeIndex]struct{}
}

// PendingUpdates holds leaf updates that have been hashed and arranged for
// propagation, but not yet applied to the tree. It is produced by
// PreprocessLeaves and consumed by UpdatePreprocessedLeaves.
type PendingUpdates[D any] struct {
	queue []pendingUpdate[D]
}

// Len returns the number of pending node updates.
func (p *PendingUpdates[D]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.queue)
}

type pendingUpdate[D any] struct {
	index  NodeIndex
	digest D
}

// MaxLeaves returns the number of leaves of a perfect tree of the given arity
// and height, or an error if the count does not fit an unsigned 64-bit value.
func MaxLeaves(arity int, height int) (uint64, error) {
	if arity < 2 {
		return 0, fmt.Errorf("%w: arity must be at least 2, got %d", ErrInvalidArgument, arity)
	}
	if height < 0 {
		return 0, fmt.Errorf("%w: height must be non-negative, got %d", ErrInvalidArgument, height)
	}
	res := uint64(1)
	for i := 0; i < height; i++ {
		next := res * uint64(arity)
		if next/uint64(arity) != res {
			return 0, fmt.Errorf("%w: arity-%d height-%d tree exceeds the addressable leaf count", ErrInvalidArgument, arity, height)
		}
		res = next
	}
	return res, nil
}

// New creates a perfect tree of the given arity and height, holding exactly
// arity^height leaves. All digests are initialized to the hasher's empty
// digest.
func New[L any, D any](arity int, height int, hasher NodeHasher[L, D]) (*Tree[L, D], error) {
	numLeaves, err := MaxLeaves(arity, height)
	if err != nil {
		return nil, err
	}
	return NewWithNumLeaves(arity, numLeaves, hasher)
}

// NewWithNumLeaves creates a tree of the given arity holding exactly the
// given number of leaves, which does not need to be a power of the arity.
func NewWithNumLeaves[L any, D any](arity int, numLeaves uint64, hasher NodeHasher[L, D]) (*Tree[L, D], error) {
	if arity < 2 {
		return nil, fmt.Errorf("%w: arity must be at least 2, got %d", ErrInvalidArgument, arity)
	}
	if numLeaves == 0 {
		return nil, fmt.Errorf("%w: tree must have at least one leaf", ErrInvalidArgument)
	}

	k := uint64(arity)
	height := 0
	for n := numLeaves; n/k > 0; n /= k {
		height++
	}

	// maxLeaves = arity^height <= numLeaves, so this cannot overflow.
	maxLeaves := uint64(1)
	for i := 0; i < height; i++ {
		maxLeaves *= k
	}

	numInternal := (maxLeaves - 1) / (k - 1)
	firstLastLevelLeaf := NodeIndex(numInternal)

	if numLeaves > maxLeaves {
		// The leaves do not fit on a single level and are split across the
		// two bottom levels of the tree. The split places r leaves on the
		// second-to-last level, such that the remaining maxLeaves-r nodes of
		// that level have exactly numLeaves-r children in total, with only
		// the right-most of them allowed to be partially filled.
		lastLevelMaxSize := maxLeaves * k
		if lastLevelMaxSize/k != maxLeaves {
			return nil, fmt.Errorf("%w: a tree with %d leaves exceeds the addressable node count", ErrInvalidArgument, numLeaves)
		}
		var numSecondToLast, numLast uint64
		if lastLevelMaxSize-numLeaves >= k {
			epsilon := k
			rNum := lastLevelMaxSize - numLeaves - (k - epsilon)
			rDenom := k - 1
			for rNum%rDenom != 0 {
				epsilon--
				if epsilon == 0 {
					panic("no valid fill degree in [1, arity] for the last tree level")
				}
				rNum = lastLevelMaxSize - numLeaves - (k - epsilon)
			}
			numSecondToLast = rNum / rDenom
			numLast = (maxLeaves-numSecondToLast-1)*k + epsilon
		} else {
			numSecondToLast = 0
			numLast = numLeaves
		}
		if numSecondToLast+numLast != numLeaves {
			panic(fmt.Sprintf("leaf split %d+%d does not cover %d leaves", numSecondToLast, numLast, numLeaves))
		}
		numInternal = (maxLeaves-1)/(k-1) + maxLeaves - numSecondToLast
		firstLastLevelLeaf = NodeIndex(numInternal + numSecondToLast)
	}

	nodes := make([]D, numInternal+numLeaves)
	empty := hasher.EmptyDigest()
	for i := range nodes {
		nodes[i] = empty
	}

	return &Tree[L, D]{
		arity:              arity,
		numLeaves:          numLeaves,
		nodes:              nodes,
		numInternalNodes:   numInternal,
		firstLastLevelLeaf: firstLastLevelLeaf,
		hasher:             hasher,
		touched:            map[NodeIndex]struct{}{},
	}, nil
}

// Arity returns the maximum number of children per node.
func (t *Tree[L, D]) Arity() int {
	return t.arity
}

// NumLeaves returns the number of leaves in the tree.
func (t *Tree[L, D]) NumLeaves() uint64 {
	return t.numLeaves
}

// NumNodes returns the total number of nodes in the tree, including leaves.
func (t *Tree[L, D]) NumNodes() uint64 {
	return uint64(len(t.nodes))
}

// RootDigest returns the current digest of the root node, authenticating the
// full leaf content of the tree.
func (t *Tree[L, D]) RootDigest() D {
	return t.nodes[RootIndex]
}

// Computations returns the number of cryptographic operations performed by
// the tree's hasher so far.
func (t *Tree[L, D]) Computations() uint64 {
	return t.hasher.Computations()
}

// HasLeavesOnTwoLevels returns true if the leaves of this tree are split
// across the two bottom levels.
func (t *Tree[L, D]) HasLeavesOnTwoLevels() bool {
	first := t.nodeHeight(NodeIndex(uint64(len(t.nodes)) - t.numLeaves))
	last := t.nodeHeight(NodeIndex(len(t.nodes) - 1))
	return first != last
}

// nodeHeight returns the number of edges between the given node and the root.
func (t *Tree[L, D]) nodeHeight(node NodeIndex) int {
	h := 0
	for !node.IsRoot() {
		node = node.Parent(t.arity)
		h++
	}
	return h
}

// getLeafIndex maps a leaf position in [0, numLeaves) to its node index.
//
// Leaf positions are assigned so that converting a position-sorted batch of
// updates yields node indexes in increasing order within each level, with the
// last level resolved before the second-to-last one. Propagation relies on
// this order to have all siblings of a parent adjacent in the queue.
func (t *Tree[L, D]) getLeafIndex(pos uint64) NodeIndex {
	return NodeIndex(t.numInternalNodes + pos)
}

// isLastLevelLeaf returns true if the given leaf index is on the last level.
func (t *Tree[L, D]) isLastLevelLeaf(idx NodeIndex) bool {
	return idx >= t.firstLastLevelLeaf
}

// isLeaf returns true if the given node index addresses a leaf.
func (t *Tree[L, D]) isLeaf(idx NodeIndex) bool {
	return uint64(idx) >= t.numInternalNodes
}

// checkUpdates verifies that a batch of leaf updates is non-empty, sorted by
// strictly increasing position, and within the leaf range of the tree.
func (t *Tree[L, D]) checkUpdates(updates []Update[L]) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: empty update batch", ErrInvalidArgument)
	}
	for i, update := range updates {
		if update.Position >= t.numLeaves {
			return fmt.Errorf("%w: leaf position %d out of range, tree has %d leaves", ErrInvalidArgument, update.Position, t.numLeaves)
		}
		if i > 0 && updates[i-1].Position >= update.Position {
			return fmt.Errorf("%w: update positions must be sorted and distinct, got %d before %d", ErrInvalidArgument, updates[i-1].Position, update.Position)
		}
	}
	return nil
}

// UpdateLeaves assigns new data to the given leaves and propagates the
// resulting digest changes up to the root. The updates must be sorted by
// strictly increasing position; each parent on the way to the root is
// re-hashed exactly once, no matter how many of its children changed.
func (t *Tree[L, D]) UpdateLeaves(updates []Update[L]) error {
	pending, _, err := t.PreprocessLeaves(updates)
	if err != nil {
		return err
	}
	t.UpdatePreprocessedLeaves(pending)
	return nil
}

// PreprocessLeaves hashes the given leaf updates and arranges them into a
// propagation queue without modifying the tree digests above the leaf
// levels. If the tree has leaves on two levels, the last-level leaves are
// resolved into their parents first, so that all queued updates live on a
// single level; the returned duration covers this resolution step.
func (t *Tree[L, D]) PreprocessLeaves(updates []Update[L]) (*PendingUpdates[D], time.Duration, error) {
	if err := t.checkUpdates(updates); err != nil {
		return nil, 0, err
	}
	clear(t.touched)

	pending := &PendingUpdates[D]{}

	if !t.HasLeavesOnTwoLevels() {
		pending.queue = t.queuefy(pending.queue, updates)
		return pending, 0, nil
	}

	// Split the batch at the first update falling on the last level. All
	// updates before it target second-to-last level leaves.
	split := 0
	for i, update := range updates {
		if t.isLastLevelLeaf(t.getLeafIndex(update.Position)) {
			split = i
			break
		}
	}
	secondToLast, last := updates[:split], updates[split:]

	start := time.Now()
	tmp := t.queuefy(nil, last)
	t.processUpdateQueue(tmp, &pending.queue)
	duration := time.Since(start)

	pending.queue = t.queuefy(pending.queue, secondToLast)
	return pending, duration, nil
}

// queuefy hashes the given leaf updates and appends them to the queue.
func (t *Tree[L, D]) queuefy(queue []pendingUpdate[D], updates []Update[L]) []pendingUpdate[D] {
	for _, update := range updates {
		idx := t.getLeafIndex(update.Position)
		if !t.isLeaf(idx) {
			panic(fmt.Sprintf("node %d derived from leaf position %d is not a leaf", idx, update.Position))
		}
		t.markHashed(idx)
		queue = append(queue, pendingUpdate[D]{
			index:  idx,
			digest: t.hasher.HashLeaf(idx.ChildOffset(t.arity), update.Data),
		})
	}
	return queue
}

// UpdatePreprocessedLeaves applies a queue produced by PreprocessLeaves to
// the tree, propagating all digest changes up to the root.
func (t *Tree[L, D]) UpdatePreprocessedLeaves(pending *PendingUpdates[D]) {
	if pending == nil {
		return
	}
	t.processUpdateQueue(pending.queue, nil)
	pending.queue = nil
}

// processUpdateQueue drains the given queue of node updates. For each group
// of queued siblings the parent digest is recomputed once and either pushed
// back onto the queue or, if out is non-nil, appended there, stopping the
// propagation after a single level. Popping the root terminates the
// propagation.
//
// Queued updates must be ordered by increasing node index level by level, so
// that all queued children of a parent are adjacent. The digests of updated
// nodes are written back only after the parent was computed, keeping the old
// child values available for incremental hashing schemes.
func (t *Tree[L, D]) processUpdateQueue(queue []pendingUpdate[D], out *[]pendingUpdate[D]) {
	newSiblings := make([]ChildUpdate[D], 0, t.arity)
	oldSiblings := make([]D, 0, t.arity)

	for head := 0; head < len(queue); head++ {
		first := queue[head]
		if first.index.IsRoot() {
			t.nodes[RootIndex] = first.digest
			continue
		}

		newSiblings = newSiblings[:0]
		oldSiblings = oldSiblings[:0]
		newSiblings = append(newSiblings, ChildUpdate[D]{
			Offset: first.index.ChildOffset(t.arity),
			Digest: first.digest,
		})

		// Collect all further queued updates below the same parent.
		parent := first.index.Parent(t.arity)
		for head+1 < len(queue) && queue[head+1].index.Parent(t.arity) == parent {
			head++
			newSiblings = append(newSiblings, ChildUpdate[D]{
				Offset: queue[head].index.ChildOffset(t.arity),
				Digest: queue[head].digest,
			})
		}

		// Collect the old digests of all existing children. The right-most
		// parent of the last level may have fewer than arity children; a
		// child index past the node array ends the enumeration.
		for i := 0; i < t.arity; i++ {
			child := parent.Child(t.arity, i)
			if uint64(child) >= uint64(len(t.nodes)) {
				break
			}
			oldSiblings = append(oldSiblings, t.nodes[child])
		}

		t.markHashed(parent)
		digest := t.hasher.CombineChildren(t.nodes[parent], oldSiblings, newSiblings)
		if out != nil {
			*out = append(*out, pendingUpdate[D]{index: parent, digest: digest})
		} else {
			queue = append(queue, pendingUpdate[D]{index: parent, digest: digest})
		}

		// Only now persist the new child digests.
		for _, update := range newSiblings {
			t.nodes[parent.Child(t.arity, update.Offset)] = update.Digest
		}
	}
}

// markHashed records that a node's digest was computed for the current
// batch. Computing a node twice within one batch is fatal.
func (t *Tree[L, D]) markHashed(idx NodeIndex) {
	if _, exists := t.touched[idx]; exists {
		panic(fmt.Sprintf("digest of node %d computed twice in one batch", idx))
	}
	t.touched[idx] = struct{}{}
}

// GetMemoryFootprint provides the size of the tree in memory.
func (t *Tree[L, D]) GetMemoryFootprint() *common.MemoryFootprint {
	var digest D
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*t))
	mf.AddChild("nodes", common.NewMemoryFootprint(uintptr(len(t.nodes))*unsafe.Sizeof(digest)))
	mf.SetNote(fmt.Sprintf("(leaves: %d, nodes: %d)", t.numLeaves, len(t.nodes)))
	return mf
}
