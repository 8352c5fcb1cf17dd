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

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"
)

// labelHasher is a test hasher over string digests that encodes the tree
// structure into the digests, making propagation mistakes visible.
type labelHasher struct {
	numLeafHashes uint64
	numCombines   uint64
}

func (h *labelHasher) EmptyDigest() string {
	return "_"
}

func (h *labelHasher) HashLeaf(offset int, data string) string {
	h.numLeafHashes++
	return fmt.Sprintf("%d:%s", offset, data)
}

func (h *labelHasher) CombineChildren(_ string, oldChildren []string, updates []ChildUpdate[string]) string {
	h.numCombines++
	children := slices.Clone(oldChildren)
	for _, update := range updates {
		children[update.Offset] = update.Digest
	}
	return "(" + strings.Join(children, ",") + ")"
}

func (h *labelHasher) Computations() uint64 {
	return h.numLeafHashes + h.numCombines
}

func (h *labelHasher) IsIncremental() bool {
	return false
}

func TestMaxLeaves_ComputesPowers(t *testing.T) {
	tests := []struct {
		arity, height int
		want          uint64
	}{
		{2, 0, 1},
		{2, 1, 2},
		{2, 30, 1073741824},
		{4, 30, 1152921504606846976},
		{16, 4, 65536},
	}
	for _, test := range tests {
		got, err := MaxLeaves(test.arity, test.height)
		if err != nil {
			t.Fatalf("MaxLeaves(%d,%d) failed: %v", test.arity, test.height, err)
		}
		if got != test.want {
			t.Errorf("MaxLeaves(%d,%d) = %d, want %d", test.arity, test.height, got, test.want)
		}
	}
}

func TestMaxLeaves_DetectsOverflow(t *testing.T) {
	if _, err := MaxLeaves(16, 30); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected overflow to be reported, got %v", err)
	}
	if _, err := MaxLeaves(1, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected arity 1 to be rejected, got %v", err)
	}
}

func TestTree_GeometryOfKnownShapes(t *testing.T) {
	tests := []struct {
		arity              int
		numLeaves          uint64
		numInternal        uint64
		firstLastLevelLeaf NodeIndex
		totalNodes         uint64
		twoLevels          bool
	}{
		{2, 1, 0, 0, 1, false},
		{2, 2, 1, 1, 3, false},
		{2, 3, 3, 3, 6, false},
		{2, 4, 3, 3, 7, false},
		{2, 10, 9, 15, 19, true},
		{3, 10, 5, 13, 15, true},
		{4, 16, 5, 5, 21, false},
		{16, 16, 1, 1, 17, false},
		{16, 17, 2, 17, 19, true},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("arity-%d/leaves-%d", test.arity, test.numLeaves), func(t *testing.T) {
			tree, err := NewWithNumLeaves(test.arity, test.numLeaves, &labelHasher{})
			if err != nil {
				t.Fatalf("failed to create tree: %v", err)
			}
			if got := tree.numInternalNodes; got != test.numInternal {
				t.Errorf("internal nodes: got %d, want %d", got, test.numInternal)
			}
			if got := tree.firstLastLevelLeaf; got != test.firstLastLevelLeaf {
				t.Errorf("first last-level leaf: got %d, want %d", got, test.firstLastLevelLeaf)
			}
			if got := tree.NumNodes(); got != test.totalNodes {
				t.Errorf("total nodes: got %d, want %d", got, test.totalNodes)
			}
			if got := tree.HasLeavesOnTwoLevels(); got != test.twoLevels {
				t.Errorf("leaves on two levels: got %t, want %t", got, test.twoLevels)
			}
			if got := tree.NumLeaves(); got != test.numLeaves {
				t.Errorf("leaves: got %d, want %d", got, test.numLeaves)
			}
		})
	}
}

func TestTree_PerfectTreeMatchesExplicitHeight(t *testing.T) {
	byHeight, err := New[string](4, 2, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	byLeaves, err := NewWithNumLeaves[string](4, 16, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	if byHeight.NumNodes() != byLeaves.NumNodes() || byHeight.NumLeaves() != byLeaves.NumLeaves() {
		t.Errorf("tree shapes differ: %d/%d nodes, %d/%d leaves",
			byHeight.NumNodes(), byLeaves.NumNodes(), byHeight.NumLeaves(), byLeaves.NumLeaves())
	}
}

func TestTree_ConstructionRejectsInvalidParameters(t *testing.T) {
	if _, err := NewWithNumLeaves[string](1, 10, &labelHasher{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("arity 1 not rejected, got %v", err)
	}
	if _, err := NewWithNumLeaves[string](2, 0, &labelHasher{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero leaves not rejected, got %v", err)
	}
	if _, err := New[string](16, 30, &labelHasher{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("overflowing height not rejected, got %v", err)
	}
}

func TestTree_UpdateValidation(t *testing.T) {
	tree, err := NewWithNumLeaves(2, 8, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	tests := map[string][]Update[string]{
		"empty batch":       {},
		"out of range":      {{Position: 8, Data: "x"}},
		"unsorted":          {{Position: 3, Data: "x"}, {Position: 1, Data: "y"}},
		"duplicate":         {{Position: 3, Data: "x"}, {Position: 3, Data: "y"}},
		"duplicate at ends": {{Position: 0, Data: "x"}, {Position: 7, Data: "y"}, {Position: 7, Data: "z"}},
	}
	for name, updates := range tests {
		t.Run(name, func(t *testing.T) {
			if err := tree.UpdateLeaves(updates); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected invalid-argument error, got %v", err)
			}
		})
	}
}

// applyReference mirrors a batch of updates on a plain copy of the node
// array, recomputing every internal node that has a non-empty child. Children
// always have larger indexes than their parents, so a single high-to-low scan
// resolves all levels. It returns the expected node array and the number of
// internal nodes a single-pass propagation has to recompute.
func applyReference(tree *Tree[string, string], updates []Update[string]) ([]string, uint64) {
	expected := slices.Clone(tree.nodes)
	hasher := labelHasher{}
	for _, update := range updates {
		idx := tree.getLeafIndex(update.Position)
		expected[idx] = hasher.HashLeaf(idx.ChildOffset(tree.arity), update.Data)
	}
	combines := uint64(0)
	for i := int64(tree.numInternalNodes) - 1; i >= 0; i-- {
		idx := NodeIndex(i)
		children := []string{}
		touched := false
		for offset := 0; offset < tree.arity; offset++ {
			child := idx.Child(tree.arity, offset)
			if uint64(child) >= uint64(len(expected)) {
				break
			}
			children = append(children, expected[child])
			touched = touched || expected[child] != "_"
		}
		if touched {
			expected[idx] = "(" + strings.Join(children, ",") + ")"
			combines++
		}
	}
	return expected, combines
}

func TestTree_UpdatesMatchReferenceModel(t *testing.T) {
	shapes := []struct {
		arity     int
		numLeaves uint64
	}{
		{2, 1}, {2, 2}, {2, 3}, {2, 5}, {2, 10}, {2, 16}, {2, 100},
		{3, 10}, {3, 27}, {3, 200},
		{4, 16}, {4, 100}, {4, 256},
		{16, 17}, {16, 100}, {16, 256},
	}
	patterns := map[string]func(n uint64) []uint64{
		"first leaf": func(n uint64) []uint64 { return []uint64{0} },
		"last leaf":  func(n uint64) []uint64 { return []uint64{n - 1} },
		"all leaves": func(n uint64) []uint64 {
			all := make([]uint64, n)
			for i := range all {
				all[i] = uint64(i)
			}
			return all
		},
		"every third": func(n uint64) []uint64 {
			var some []uint64
			for i := uint64(0); i < n; i += 3 {
				some = append(some, i)
			}
			return some
		},
	}

	for _, shape := range shapes {
		for name, pattern := range patterns {
			t.Run(fmt.Sprintf("arity-%d/leaves-%d/%s", shape.arity, shape.numLeaves, name), func(t *testing.T) {
				hasher := &labelHasher{}
				tree, err := NewWithNumLeaves(shape.arity, shape.numLeaves, hasher)
				if err != nil {
					t.Fatalf("failed to create tree: %v", err)
				}
				updates := []Update[string]{}
				for _, pos := range pattern(shape.numLeaves) {
					updates = append(updates, Update[string]{Position: pos, Data: fmt.Sprintf("v%d", pos)})
				}

				expected, expectedCombines := applyReference(tree, updates)
				if err := tree.UpdateLeaves(updates); err != nil {
					t.Fatalf("failed to update leaves: %v", err)
				}

				if !slices.Equal(tree.nodes, expected) {
					t.Fatalf("node array diverges from reference\ngot:  %v\nwant: %v", tree.nodes, expected)
				}
				if hasher.numCombines != expectedCombines {
					t.Errorf("parents combined %d times, want %d", hasher.numCombines, expectedCombines)
				}
				if hasher.numLeafHashes != uint64(len(updates)) {
					t.Errorf("leaves hashed %d times, want %d", hasher.numLeafHashes, len(updates))
				}
			})
		}
	}
}

func TestTree_SequentialBatchesMatchMergedBatch(t *testing.T) {
	const arity = 3
	const numLeaves = 20

	sequential, err := NewWithNumLeaves(arity, numLeaves, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	merged, err := NewWithNumLeaves(arity, numLeaves, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}

	first := []Update[string]{{0, "a"}, {7, "b"}, {19, "c"}}
	second := []Update[string]{{3, "d"}, {7, "e"}, {12, "f"}}
	for _, batch := range [][]Update[string]{first, second} {
		if err := sequential.UpdateLeaves(batch); err != nil {
			t.Fatalf("failed to update leaves: %v", err)
		}
	}

	// The merged batch carries the latest value of each position.
	combined := []Update[string]{{0, "a"}, {3, "d"}, {7, "e"}, {12, "f"}, {19, "c"}}
	if err := merged.UpdateLeaves(combined); err != nil {
		t.Fatalf("failed to update leaves: %v", err)
	}

	if !slices.Equal(sequential.nodes, merged.nodes) {
		t.Errorf("sequential and merged updates diverge\ngot:  %v\nwant: %v", sequential.nodes, merged.nodes)
	}
}

func TestTree_PreprocessedUpdatesMatchDirectUpdates(t *testing.T) {
	for _, shape := range []struct {
		arity     int
		numLeaves uint64
	}{
		{2, 16},   // leaves on one level
		{3, 10},   // leaves on two levels
		{16, 100}, // leaves on two levels
	} {
		t.Run(fmt.Sprintf("arity-%d/leaves-%d", shape.arity, shape.numLeaves), func(t *testing.T) {
			direct, err := NewWithNumLeaves(shape.arity, shape.numLeaves, &labelHasher{})
			if err != nil {
				t.Fatalf("failed to create tree: %v", err)
			}
			staged, err := NewWithNumLeaves(shape.arity, shape.numLeaves, &labelHasher{})
			if err != nil {
				t.Fatalf("failed to create tree: %v", err)
			}

			updates := []Update[string]{}
			for pos := uint64(0); pos < shape.numLeaves; pos += 2 {
				updates = append(updates, Update[string]{Position: pos, Data: fmt.Sprintf("v%d", pos)})
			}

			if err := direct.UpdateLeaves(updates); err != nil {
				t.Fatalf("failed to update leaves: %v", err)
			}
			pending, _, err := staged.PreprocessLeaves(updates)
			if err != nil {
				t.Fatalf("failed to preprocess leaves: %v", err)
			}
			if pending.Len() == 0 {
				t.Fatalf("preprocessing produced no pending updates")
			}
			staged.UpdatePreprocessedLeaves(pending)

			if !slices.Equal(direct.nodes, staged.nodes) {
				t.Errorf("preprocessed updates diverge from direct updates")
			}
			if direct.RootDigest() != staged.RootDigest() {
				t.Errorf("roots diverge: %q vs %q", direct.RootDigest(), staged.RootDigest())
			}
		})
	}
}

func TestTree_PreprocessLeavesRejectsInvalidBatches(t *testing.T) {
	tree, err := NewWithNumLeaves(2, 8, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	if _, _, err := tree.PreprocessLeaves(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid-argument error, got %v", err)
	}
}

func TestTree_ApplyingNilPendingUpdatesIsANoOp(t *testing.T) {
	tree, err := NewWithNumLeaves(2, 4, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	before := slices.Clone(tree.nodes)
	tree.UpdatePreprocessedLeaves(nil)
	if !slices.Equal(before, tree.nodes) {
		t.Errorf("nil pending updates modified the tree")
	}
}

func TestTree_SingleLeafTreeStoresLeafInRoot(t *testing.T) {
	hasher := &labelHasher{}
	tree, err := NewWithNumLeaves(4, 1, hasher)
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	if err := tree.UpdateLeaves([]Update[string]{{Position: 0, Data: "only"}}); err != nil {
		t.Fatalf("failed to update leaves: %v", err)
	}
	if got, want := tree.RootDigest(), "0:only"; got != want {
		t.Errorf("root digest is %q, want %q", got, want)
	}
	if hasher.numCombines != 0 {
		t.Errorf("single-leaf tree combined %d parents, want 0", hasher.numCombines)
	}
}

func TestTree_ChildValuesAreWrittenAfterParentWasCombined(t *testing.T) {
	ctrl := gomock.NewController(t)
	hasher := NewMockNodeHasher[string, string](ctrl)

	hasher.EXPECT().EmptyDigest().Return("_")
	tree, err := NewWithNumLeaves[string](2, 2, NodeHasher[string, string](hasher))
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}

	hasher.EXPECT().HashLeaf(0, "a").Return("A")
	hasher.EXPECT().HashLeaf(1, "b").Return("B")
	// The old child digests passed to the combine step must still be the
	// empty digests, not the new leaf digests.
	hasher.EXPECT().CombineChildren("_", []string{"_", "_"}, []ChildUpdate[string]{
		{Offset: 0, Digest: "A"},
		{Offset: 1, Digest: "B"},
	}).Return("R")

	if err := tree.UpdateLeaves([]Update[string]{{0, "a"}, {1, "b"}}); err != nil {
		t.Fatalf("failed to update leaves: %v", err)
	}
	if got := tree.RootDigest(); got != "R" {
		t.Errorf("root digest is %q, want %q", got, "R")
	}
}

func TestTree_ComputationsAreReportedFromHasher(t *testing.T) {
	hasher := &labelHasher{}
	tree, err := NewWithNumLeaves(2, 4, hasher)
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	if err := tree.UpdateLeaves([]Update[string]{{0, "a"}, {3, "b"}}); err != nil {
		t.Fatalf("failed to update leaves: %v", err)
	}
	// Two leaf hashes, two level-1 parents, one root.
	if got, want := tree.Computations(), uint64(5); got != want {
		t.Errorf("computations: got %d, want %d", got, want)
	}
}

func TestTree_MemoryFootprintCoversNodeArray(t *testing.T) {
	tree, err := NewWithNumLeaves(2, 1024, &labelHasher{})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	fp := tree.GetMemoryFootprint()
	if fp.Total() <= 0 {
		t.Error("memory footprint of a non-empty tree is zero")
	}
	if !strings.Contains(fp.String(), "nodes") {
		t.Error("memory footprint breakdown does not cover the node array")
	}
}

func TestTree_EveryNodeIsHashedAtMostOncePerBatch(t *testing.T) {
	hasher := &labelHasher{}
	tree, err := NewWithNumLeaves(2, 16, hasher)
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	all := make([]Update[string], 16)
	for i := range all {
		all[i] = Update[string]{Position: uint64(i), Data: "x"}
	}
	if err := tree.UpdateLeaves(all); err != nil {
		t.Fatalf("failed to update leaves: %v", err)
	}
	// A perfect binary tree with 16 leaves has 15 internal nodes, each of
	// which must be combined exactly once.
	if got, want := hasher.numCombines, uint64(15); got != want {
		t.Errorf("parents combined %d times, want %d", got, want)
	}
}
