// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ldb provides a store backend persisting all records in LevelDB.
// Trie nodes and metadata share one database instance, value records live
// in a second one, keeping the frequently compacted trie data separate
// from the append-only values.
package ldb

import (
	"errors"
	"fmt"
	"path/filepath"
	"unsafe"

	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/store"
	"github.com/syndtr/goleveldb/leveldb"
)

// Table space prefixes for the keys of the metadata database.
const (
	nodeKeySpace     = byte('n')
	metadataKeySpace = byte('m')
)

// Backend is a LevelDB backed implementation of the store.Backend
// interface.
type Backend struct {
	metadata *leveldb.DB // < trie nodes and metadata
	values   *leveldb.DB // < value records
}

// Open opens the backend stored in the given directory, creating it if
// needed.
func Open(path string) (*Backend, error) {
	metadata, err := leveldb.OpenFile(filepath.Join(path, "m"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	values, err := leveldb.OpenFile(filepath.Join(path, "v"), nil)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to open value database: %w", err),
			metadata.Close(),
		)
	}
	return &Backend{metadata: metadata, values: values}, nil
}

func (b *Backend) GetNode(id store.NodeID) ([]byte, error) {
	data, err := b.metadata.Get(toDBKey(nodeKeySpace, id[:]), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("no node with id %x: %w", id[:], store.ErrNotFound)
	}
	return data, err
}

func (b *Backend) PutNode(id store.NodeID, data []byte) error {
	return b.metadata.Put(toDBKey(nodeKeySpace, id[:]), data, nil)
}

func (b *Backend) GetValue(key common.Hash) ([]byte, error) {
	data, err := b.values.Get(key[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("no value with key %s: %w", key, store.ErrNotFound)
	}
	return data, err
}

func (b *Backend) PutValue(key common.Hash, data []byte) error {
	return b.values.Put(key[:], data, nil)
}

func (b *Backend) GetMetadata(key []byte) ([]byte, error) {
	data, err := b.metadata.Get(toDBKey(metadataKeySpace, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("no metadata entry %q: %w", key, store.ErrNotFound)
	}
	return data, err
}

func (b *Backend) PutMetadata(key []byte, data []byte) error {
	return b.metadata.Put(toDBKey(metadataKeySpace, key), data, nil)
}

func (b *Backend) Flush() error {
	return nil // every write goes through the LevelDB journal
}

func (b *Backend) Close() error {
	return errors.Join(
		b.metadata.Close(),
		b.values.Close(),
	)
}

func (b *Backend) GetMemoryFootprint() *common.MemoryFootprint {
	footprint := common.NewMemoryFootprint(unsafe.Sizeof(*b))
	footprint.SetNote("all data is kept on disk")
	return footprint
}

// toDBKey prepends the table space tag to a key.
func toDBKey(space byte, key []byte) []byte {
	res := make([]byte, 0, len(key)+1)
	res = append(res, space)
	return append(res, key...)
}
