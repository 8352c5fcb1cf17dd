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

import "testing"

func TestNodeIndex_RootProperties(t *testing.T) {
	if !RootIndex.IsRoot() {
		t.Error("index 0 is not reported as root")
	}
	if NodeIndex(1).IsRoot() {
		t.Error("index 1 is reported as root")
	}
	if got := RootIndex.ChildOffset(4); got != 0 {
		t.Errorf("root child offset is %d, want 0", got)
	}
}

func TestNodeIndex_ParentChildRoundTrip(t *testing.T) {
	for _, arity := range []int{2, 3, 4, 16} {
		for parent := NodeIndex(0); parent < 100; parent++ {
			for offset := 0; offset < arity; offset++ {
				child := parent.Child(arity, offset)
				if got := child.Parent(arity); got != parent {
					t.Fatalf("arity %d: parent of %d is %d, want %d", arity, child, got, parent)
				}
				if got := child.ChildOffset(arity); got != offset {
					t.Fatalf("arity %d: offset of %d is %d, want %d", arity, child, got, offset)
				}
			}
		}
	}
}

func TestNodeIndex_BinaryTreeLayout(t *testing.T) {
	// The layout of a binary tree:
	//
	//	        0
	//	    1       2
	//	  3   4   5   6
	tests := []struct {
		node   NodeIndex
		parent NodeIndex
		offset int
	}{
		{1, 0, 0},
		{2, 0, 1},
		{3, 1, 0},
		{4, 1, 1},
		{5, 2, 0},
		{6, 2, 1},
	}
	for _, test := range tests {
		if got := test.node.Parent(2); got != test.parent {
			t.Errorf("parent of %d is %d, want %d", test.node, got, test.parent)
		}
		if got := test.node.ChildOffset(2); got != test.offset {
			t.Errorf("offset of %d is %d, want %d", test.node, got, test.offset)
		}
	}
}

func TestNodeIndex_ChildrenAreConsecutive(t *testing.T) {
	const arity = 16
	node := NodeIndex(7)
	first := node.Child(arity, 0)
	for offset := 1; offset < arity; offset++ {
		if got := node.Child(arity, offset); got != first+NodeIndex(offset) {
			t.Errorf("child %d of node %d is %d, want %d", offset, node, got, first+NodeIndex(offset))
		}
	}
}

func TestNodeIndex_ParentOfRootPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when taking the parent of the root")
		}
	}()
	RootIndex.Parent(2)
}

func TestNodeIndex_ChildOffsetOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range child offset")
		}
	}()
	RootIndex.Child(4, 4)
}
