// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package store provides a versioned key-value store with authenticated
// roots. Every applied batch of updates creates a new version, and the
// content of every version remains readable. The store maintains a 16-ary
// commitment trie over its keys whose root commitment authenticates the
// full key-value content of each version.
package store

import (
	"errors"

	"github.com/0xsoniclabs/authtree/common"
)

// Version identifies one committed state of the store. Version zero is the
// empty state, and every applied batch advances the version by one.
type Version uint64

// KeyValue is one update in a batch, assigning a value to a key.
type KeyValue struct {
	Key   common.Key
	Value []byte
}

// ErrNotFound is returned when a key, version, or stored entry does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidBatch is returned when an update batch is empty, not sorted by
// key, or contains duplicate keys.
var ErrInvalidBatch = errors.New("invalid batch")

// Store is a versioned key-value store. Updates are applied in batches,
// each producing a new version and the root hash authenticating it. All
// previously created versions remain readable.
type Store interface {
	// Apply performs the given updates, creating a new version. The batch
	// must be non-empty and sorted by key without duplicates. On success,
	// the new version and its root hash are returned.
	Apply(batch []KeyValue) (Version, common.Hash, error)

	// Get returns the value of the given key as of the given version. If
	// the key was not set at that version, ErrNotFound is returned.
	Get(version Version, key common.Key) ([]byte, error)

	// Root returns the root hash of the given version.
	Root(version Version) (common.Hash, error)

	// LastVersion returns the most recently created version.
	LastVersion() (Version, error)

	// Flush writes all buffered modifications to the backend.
	Flush() error

	// Close flushes and releases the underlying backend.
	Close() error

	// GetMemoryFootprint returns the memory usage of the store.
	GetMemoryFootprint() *common.MemoryFootprint
}

// Backend provides the raw storage a versioned store is built on: a table
// of encoded trie nodes addressed by node id, a table of value records
// addressed by hash, and a table of metadata entries. Get operations report
// missing entries with ErrNotFound.
type Backend interface {
	GetNode(id NodeID) ([]byte, error)
	PutNode(id NodeID, data []byte) error

	GetValue(key common.Hash) ([]byte, error)
	PutValue(key common.Hash, data []byte) error

	GetMetadata(key []byte) ([]byte, error)
	PutMetadata(key []byte, data []byte) error

	Flush() error
	Close() error
	GetMemoryFootprint() *common.MemoryFootprint
}
