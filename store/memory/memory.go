// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package memory provides a store backend retaining all records in memory.
// It is intended for tests and benchmarks; all data is lost when the
// backend is closed.
package memory

import (
	"bytes"
	"fmt"
	"sync"
	"unsafe"

	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/store"
)

// Backend is an in-memory implementation of the store.Backend interface.
// It is safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	nodes    map[store.NodeID][]byte
	values   map[common.Hash][]byte
	metadata map[string][]byte
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		nodes:    map[store.NodeID][]byte{},
		values:   map[common.Hash][]byte{},
		metadata: map[string][]byte{},
	}
}

func (b *Backend) GetNode(id store.NodeID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, found := b.nodes[id]
	if !found {
		return nil, fmt.Errorf("no node with id %x: %w", id[:], store.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (b *Backend) PutNode(id store.NodeID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[id] = bytes.Clone(data)
	return nil
}

func (b *Backend) GetValue(key common.Hash) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, found := b.values[key]
	if !found {
		return nil, fmt.Errorf("no value with key %s: %w", key, store.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (b *Backend) PutValue(key common.Hash, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = bytes.Clone(data)
	return nil
}

func (b *Backend) GetMetadata(key []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, found := b.metadata[string(key)]
	if !found {
		return nil, fmt.Errorf("no metadata entry %q: %w", key, store.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (b *Backend) PutMetadata(key []byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metadata[string(key)] = bytes.Clone(data)
	return nil
}

func (b *Backend) Flush() error {
	return nil
}

func (b *Backend) Close() error {
	return nil // no-op for in-memory data
}

func (b *Backend) GetMemoryFootprint() *common.MemoryFootprint {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := unsafe.Sizeof(*b)
	for id, data := range b.nodes {
		size += unsafe.Sizeof(id) + uintptr(len(data))
	}
	for key, data := range b.values {
		size += unsafe.Sizeof(key) + uintptr(len(data))
	}
	for key, data := range b.metadata {
		size += uintptr(len(key) + len(data))
	}
	return common.NewMemoryFootprint(size)
}
