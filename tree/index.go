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

import "fmt"

// NodeIndex addresses a node in the breadth-first array layout of a k-ary
// tree. The root is stored at index 0, its k children at indexes 1..k, and in
// general the children of node i at indexes i*k+1..i*k+k. For example, with
// k = 4:
//
//	                        0
//	    1            2            3            4
//	 5 6 7 8     9 10 11 12  13 14 15 16  17 18 19 20
type NodeIndex uint64

// RootIndex is the index of the root node of every tree.
const RootIndex NodeIndex = 0

// IsRoot returns true if this index addresses the root node.
func (i NodeIndex) IsRoot() bool {
	return i == RootIndex
}

// Parent returns the index of this node's parent in a tree of the given
// arity. It must not be called on the root.
func (i NodeIndex) Parent(arity int) NodeIndex {
	if i.IsRoot() {
		panic("the root node has no parent")
	}
	return (i - 1) / NodeIndex(arity)
}

// Child returns the index of this node's child at the given offset, where the
// offset is in [0, arity).
func (i NodeIndex) Child(arity int, offset int) NodeIndex {
	if offset < 0 || offset >= arity {
		panic(fmt.Sprintf("child offset %d out of range for arity %d", offset, arity))
	}
	return i*NodeIndex(arity) + 1 + NodeIndex(offset)
}

// ChildOffset returns the position of this node among the children of its
// parent, in [0, arity). The root has offset 0.
func (i NodeIndex) ChildOffset(arity int) int {
	if i.IsRoot() {
		return 0
	}
	return int((i - 1) % NodeIndex(arity))
}
