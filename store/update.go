// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package store

import (
	"bytes"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// updateNode is a node of the overlay trie built during a batch update.
// The overlay covers exactly the nodes touched by the batch; untouched
// subtries are referenced by the id of their persisted root.
type updateNode struct {
	path []byte // < nibble path from the root, determines the persisted id

	// Fields used by leaf nodes.
	key       common.Key  // < the key stored in this leaf
	valueHash common.Hash // < hash of the current value
	writtenAt Version     // < version whose batch wrote the current value

	// Fields used by inner nodes.
	dirty        [16]*updateNode   // < children modified by this batch
	clean        [16]NodeID        // < persisted children, where dirty is nil
	cleanScalars [16]commit.Value  // < scalars of the clean children

	leaf       bool              // < leaf or inner node
	scalar     commit.Value      // < commitment scalar, set by the commit phase
	commitment commit.Commitment // < commitment, set by the commit phase
}

// applyToTrie routes a batch of updates into the trie of the previous
// version and persists the resulting nodes under the new version. It
// returns the new root hash.
func (s *versionedStore) applyToTrie(newVersion Version, batch []KeyValue) (common.Hash, error) {
	prevRoot, err := s.getNode(nodeID(newVersion-1, nil))
	if err != nil {
		return common.Hash{}, err
	}
	root := materialize(prevRoot, nil)
	for _, kv := range batch {
		if root, err = s.insert(root, kv.Key, hashOfValue(kv.Value), newVersion, 0); err != nil {
			return common.Hash{}, err
		}
	}

	tasks := []*task{}
	if err := s.collectCommitTasks(root, &tasks); err != nil {
		return common.Hash{}, err
	}
	runTasks(tasks)

	if err := s.persist(newVersion, root); err != nil {
		return common.Hash{}, err
	}
	return root.commitment.Hash(), nil
}

// materialize turns a persisted node into an overlay node at the given
// path, ready to receive updates.
func materialize(n *node, path []byte) *updateNode {
	res := &updateNode{
		path:      path,
		leaf:      n.leaf,
		key:       n.key,
		valueHash: n.valueHash,
		writtenAt: n.writtenAt,
		clean:     n.children,
	}
	return res
}

// insert routes a single update into the overlay trie rooted in the given
// node, materializing nodes on the path as needed. It returns the node
// replacing the given one, which differs when a leaf got split.
func (s *versionedStore) insert(u *updateNode, key common.Key, valueHash common.Hash, version Version, depth int) (*updateNode, error) {
	if u.leaf {
		if u.key == key {
			u.valueHash = valueHash
			u.writtenAt = version
			return u, nil
		}
		// Split: push the existing leaf one level down and retry. The
		// recursion resolves longer shared prefixes.
		inner := &updateNode{path: u.path}
		pos := nibbleAt(u.key, depth)
		u.path = childPath(inner.path, pos)
		inner.dirty[pos] = u
		return s.insert(inner, key, valueHash, version, depth)
	}

	pos := nibbleAt(key, depth)
	child := u.dirty[pos]
	if child == nil {
		if id := u.clean[pos]; id != (NodeID{}) {
			loaded, err := s.getNode(id)
			if err != nil {
				return nil, err
			}
			child = materialize(loaded, childPath(u.path, pos))
		} else {
			child = &updateNode{path: childPath(u.path, pos), leaf: true, key: key}
		}
	}
	child, err := s.insert(child, key, valueHash, version, depth+1)
	if err != nil {
		return nil, err
	}
	u.dirty[pos] = child
	return u, nil
}

// childPath extends a nibble path by one step.
func childPath(path []byte, pos byte) []byte {
	res := make([]byte, len(path)+1)
	copy(res, path)
	res[len(path)] = pos
	return res
}

// collectCommitTasks builds the forest of commitment tasks for the
// overlay trie rooted in the given node. The tasks of a subtrie precede
// the task of its root, and the last collected task computes the
// commitment of the given node. Scalars of clean children are fetched
// here, keeping the tasks free of backend accesses.
func (s *versionedStore) collectCommitTasks(u *updateNode, tasks *[]*task) error {
	if u.leaf {
		*tasks = append(*tasks, newTask(func() {
			u.commitment = leafCommitment(s.ctx, u.key, u.valueHash, u.writtenAt)
			u.scalar = u.commitment.ToValue()
		}, 0))
		return nil
	}

	childTasks := make([]*task, 0, len(u.dirty))
	for i := range u.dirty {
		if u.dirty[i] != nil {
			if err := s.collectCommitTasks(u.dirty[i], tasks); err != nil {
				return err
			}
			childTasks = append(childTasks, (*tasks)[len(*tasks)-1])
		} else if id := u.clean[i]; id != (NodeID{}) {
			child, err := s.getNode(id)
			if err != nil {
				return err
			}
			u.cleanScalars[i] = child.scalar
		}
	}

	res := newTask(func() {
		var children [16]commit.Value
		for i := range u.dirty {
			if u.dirty[i] != nil {
				children[i] = u.dirty[i].scalar
			} else {
				children[i] = u.cleanScalars[i]
			}
		}
		u.commitment = innerCommitment(s.ctx, children)
		u.scalar = u.commitment.ToValue()
	}, len(childTasks))
	for _, child := range childTasks {
		child.parentTask = res
	}
	*tasks = append(*tasks, res)
	return nil
}

// persist encodes all overlay nodes as records of the new version and
// writes them to the backend in deterministic id order.
func (s *versionedStore) persist(version Version, root *updateNode) error {
	records := map[NodeID][]byte{}
	if err := collectRecords(version, root, records); err != nil {
		return err
	}
	ids := maps.Keys(records)
	slices.SortFunc(ids, func(a, b NodeID) int {
		return bytes.Compare(a[:], b[:])
	})
	for _, id := range ids {
		if err := s.backend.PutNode(id, records[id]); err != nil {
			return err
		}
	}
	return nil
}

func collectRecords(version Version, u *updateNode, records map[NodeID][]byte) error {
	res := &node{
		leaf:      u.leaf,
		version:   version,
		key:       u.key,
		valueHash: u.valueHash,
		writtenAt: u.writtenAt,
		scalar:    u.scalar,
	}
	if !u.leaf {
		for i := range u.dirty {
			if u.dirty[i] != nil {
				res.children[i] = nodeID(version, u.dirty[i].path)
				if err := collectRecords(version, u.dirty[i], records); err != nil {
					return err
				}
			} else {
				res.children[i] = u.clean[i]
			}
		}
	}
	data, err := encodeNode(res)
	if err != nil {
		return err
	}
	records[nodeID(version, u.path)] = data
	return nil
}
