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
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
)

// NodeID addresses one persisted trie node in a backend. Nodes are written
// once and never modified, so an id remains valid for the lifetime of the
// store. The zero id marks an absent child.
type NodeID [32]byte

// initialRootID is the id of the root node of the empty version zero.
var initialRootID = func() NodeID {
	var id NodeID
	copy(id[:], "verkleRoot")
	return id
}()

// nodeID derives the id of the node at the given nibble path, rewritten by
// the given version. Each version writing a node at a path produces a
// distinct id, keeping nodes of older versions untouched.
func nodeID(version Version, path []byte) NodeID {
	if version == 0 && len(path) == 0 {
		return initialRootID
	}
	hasher := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(version))
	hasher.Write(buf[:])
	hasher.Write(path)
	var id NodeID
	hasher.Sum(id[:0])
	return id
}

// valueKey derives the value-table key of the value written to the given
// key at the given version.
func valueKey(version Version, key common.Key) common.Hash {
	hasher := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(version))
	hasher.Write(buf[:])
	hasher.Write(key[:])
	var res common.Hash
	hasher.Sum(res[:0])
	return res
}

// hashOfValue returns the hash of a value as bound into leaf commitments.
func hashOfValue(value []byte) common.Hash {
	return sha256.Sum256(value)
}

// nibbleAt returns the 4-bit digit of the key selecting the child at the
// given trie depth, high nibble of each byte first.
func nibbleAt(key common.Key, depth int) byte {
	b := key[depth/2]
	if depth%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// node is the in-memory form of a single trie node. A leaf holds one key
// with the hash of its current value and the version that value was
// written at. An inner node holds the ids of up to 16 children. Both carry
// the scalar their commitment maps to, which is what their parent commits
// to.
type node struct {
	leaf    bool
	version Version // < the version that persisted this record

	key       common.Key  // < the full key, for leaves
	valueHash common.Hash // < the hash of the current value, for leaves
	writtenAt Version     // < the version whose value record holds the value

	children [16]NodeID // < child node ids, for inner nodes

	scalar commit.Value // < the scalar projection of the node's commitment
}

const (
	leafRecordTag  byte = 1
	innerRecordTag byte = 2
)

// leafRecord is the wire form of a leaf node.
type leafRecord struct {
	Version   uint64
	WrittenAt uint64
	Key       [32]byte
	ValueHash [32]byte
	Scalar    [32]byte
}

// innerRecord is the wire form of an inner node.
type innerRecord struct {
	Version  uint64
	Children [16][32]byte
	Scalar   [32]byte
}

// encodeNode serializes a node into its compressed record form.
func encodeNode(n *node) ([]byte, error) {
	var payload []byte
	var err error
	var tag byte
	if n.leaf {
		tag = leafRecordTag
		payload, err = rlp.EncodeToBytes(&leafRecord{
			Version:   uint64(n.version),
			WrittenAt: uint64(n.writtenAt),
			Key:       n.key,
			ValueHash: n.valueHash,
			Scalar:    n.scalar.ToLittleEndianBytes(),
		})
	} else {
		tag = innerRecordTag
		record := &innerRecord{
			Version: uint64(n.version),
			Scalar:  n.scalar.ToLittleEndianBytes(),
		}
		for i, child := range n.children {
			record.Children[i] = child
		}
		payload, err = rlp.EncodeToBytes(record)
	}
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 0, len(payload)+1)
	raw = append(raw, tag)
	raw = append(raw, payload...)
	return snappy.Encode(nil, raw), nil
}

// decodeNode restores a node from its compressed record form.
func decodeNode(data []byte) (*node, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("corrupted node record: %w", err)
	}
	if len(raw) < 1 {
		return nil, fmt.Errorf("empty node record")
	}
	switch raw[0] {
	case leafRecordTag:
		var record leafRecord
		if err := rlp.DecodeBytes(raw[1:], &record); err != nil {
			return nil, fmt.Errorf("corrupted leaf record: %w", err)
		}
		return &node{
			leaf:      true,
			version:   Version(record.Version),
			writtenAt: Version(record.WrittenAt),
			key:       record.Key,
			valueHash: record.ValueHash,
			scalar:    commit.NewValueFromLittleEndianBytes(record.Scalar[:]),
		}, nil
	case innerRecordTag:
		var record innerRecord
		if err := rlp.DecodeBytes(raw[1:], &record); err != nil {
			return nil, fmt.Errorf("corrupted inner record: %w", err)
		}
		res := &node{
			version: Version(record.Version),
			scalar:  commit.NewValueFromLittleEndianBytes(record.Scalar[:]),
		}
		for i, child := range record.Children {
			res.children[i] = child
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unknown node record tag %d", raw[0])
	}
}

// leafCommitment commits to a single key, the hash of its current value,
// and the version the value was written at.
func leafCommitment(ctx *commit.Context, key common.Key, valueHash common.Hash, writtenAt Version) commit.Commitment {
	var values [commit.VectorSize]commit.Value
	values[0] = commit.NewValue(1)
	values[1] = commit.NewValueFromLittleEndianBytes(key[:16])
	values[2] = commit.NewValueFromLittleEndianBytes(key[16:])
	values[3] = commit.NewValueFromLittleEndianBytes(valueHash[:16])
	values[4] = commit.NewValueFromLittleEndianBytes(valueHash[16:])
	values[5] = commit.NewValue(uint64(writtenAt))
	return ctx.Commit(values)
}

// innerCommitment commits to the child scalars of an inner node.
func innerCommitment(ctx *commit.Context, children [16]commit.Value) commit.Commitment {
	var values [commit.VectorSize]commit.Value
	copy(values[:16], children[:])
	return ctx.Commit(values)
}
