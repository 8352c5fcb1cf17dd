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
	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
)

// Reference is a naive in-memory implementation of the store's commitment
// trie. It holds all nodes on the heap and recomputes every commitment
// from scratch, trading all efficiency for obviousness. Its purpose is to
// cross-check the root hashes produced by batch updates.
type Reference struct {
	ctx  *commit.Context
	root *refInner
}

// NewReference creates an empty reference trie.
func NewReference(ctx *commit.Context) *Reference {
	return &Reference{ctx: ctx, root: &refInner{}}
}

// Set records a key/value write performed by the batch of the given
// version.
func (r *Reference) Set(key common.Key, value []byte, version Version) {
	r.root.set(key, hashOfValue(value), version, 0)
}

// Commit computes the root commitment of the current content.
func (r *Reference) Commit() commit.Commitment {
	return r.root.commitment(r.ctx)
}

// Root computes the root hash of the current content.
func (r *Reference) Root() common.Hash {
	return r.Commit().Hash()
}

type refNode interface {
	set(key common.Key, valueHash common.Hash, version Version, depth int) refNode
	commit(ctx *commit.Context) commit.Value
}

type refLeaf struct {
	key       common.Key
	valueHash common.Hash
	writtenAt Version
}

func (l *refLeaf) set(key common.Key, valueHash common.Hash, version Version, depth int) refNode {
	if l.key == key {
		l.valueHash = valueHash
		l.writtenAt = version
		return l
	}
	res := &refInner{}
	res.children[nibbleAt(l.key, depth)] = l
	return res.set(key, valueHash, version, depth)
}

func (l *refLeaf) commit(ctx *commit.Context) commit.Value {
	return leafCommitment(ctx, l.key, l.valueHash, l.writtenAt).ToValue()
}

type refInner struct {
	children [16]refNode
}

func (n *refInner) set(key common.Key, valueHash common.Hash, version Version, depth int) refNode {
	pos := nibbleAt(key, depth)
	if n.children[pos] == nil {
		n.children[pos] = &refLeaf{key: key, valueHash: valueHash, writtenAt: version}
		return n
	}
	n.children[pos] = n.children[pos].set(key, valueHash, version, depth+1)
	return n
}

func (n *refInner) commit(ctx *commit.Context) commit.Value {
	return n.commitment(ctx).ToValue()
}

func (n *refInner) commitment(ctx *commit.Context) commit.Commitment {
	var children [16]commit.Value
	for i, child := range n.children {
		if child != nil {
			children[i] = child.commit(ctx)
		}
	}
	return innerCommitment(ctx, children)
}
