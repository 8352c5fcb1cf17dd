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
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
)

var (
	// keyNextVersion holds the next version id to be handed out. It is
	// bumped before a batch is written, so a crashed batch burns its
	// version instead of leaving a half-written one readable.
	keyNextVersion = []byte("nextVersionIdToUse")

	// keyLastVersion holds the last version whose batch completed.
	keyLastVersion = []byte("lastVersionIdGenerated")
)

// rootHashKey is the metadata key holding the root hash of a version.
func rootHashKey(version Version) []byte {
	res := make([]byte, 0, 13)
	res = append(res, []byte("root:")...)
	return binary.LittleEndian.AppendUint64(res, uint64(version))
}

// versionedStore implements the Store interface on top of a Backend,
// maintaining the commitment trie across versions. Trie nodes are written
// copy-on-write, so the tries of older versions stay intact.
type versionedStore struct {
	backend Backend
	ctx     *commit.Context
	mu      sync.Mutex // < serializes update batches
}

// New creates a store on the given backend, using the given context for
// all commitment operations. A fresh backend is initialized with an empty
// version zero.
func New(backend Backend, ctx *commit.Context) (Store, error) {
	if backend == nil || ctx == nil {
		return nil, fmt.Errorf("backend and commitment context are required")
	}
	res := &versionedStore{backend: backend, ctx: ctx}
	_, err := backend.GetMetadata(keyNextVersion)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Initialize the empty version zero.
	root := &node{version: 0, scalar: commit.Identity().ToValue()}
	data, err := encodeNode(root)
	if err != nil {
		return nil, err
	}
	if err := backend.PutNode(initialRootID, data); err != nil {
		return nil, err
	}
	emptyRoot := commit.Identity().Hash()
	if err := errors.Join(
		backend.PutMetadata(rootHashKey(0), emptyRoot[:]),
		backend.PutMetadata(keyNextVersion, binary.LittleEndian.AppendUint64(nil, 1)),
		backend.PutMetadata(keyLastVersion, binary.LittleEndian.AppendUint64(nil, 0)),
	); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *versionedStore) Apply(batch []KeyValue) (Version, common.Hash, error) {
	if err := checkBatch(batch); err != nil {
		return 0, common.Hash{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	newVersion, err := s.bumpVersionCounter()
	if err != nil {
		return 0, common.Hash{}, err
	}

	// Write the value records before touching the trie, mirroring the
	// reserve-then-confirm handling of the version counters.
	for _, kv := range batch {
		if err := s.backend.PutValue(valueKey(newVersion, kv.Key), kv.Value); err != nil {
			return 0, common.Hash{}, err
		}
	}

	root, err := s.applyToTrie(newVersion, batch)
	if err != nil {
		return 0, common.Hash{}, err
	}

	if err := errors.Join(
		s.backend.PutMetadata(rootHashKey(newVersion), root[:]),
		s.backend.PutMetadata(keyLastVersion, binary.LittleEndian.AppendUint64(nil, uint64(newVersion))),
	); err != nil {
		return 0, common.Hash{}, err
	}
	return newVersion, root, nil
}

func (s *versionedStore) Get(version Version, key common.Key) ([]byte, error) {
	last, err := s.LastVersion()
	if err != nil {
		return nil, err
	}
	if version > last {
		return nil, fmt.Errorf("version %d does not exist: %w", version, ErrNotFound)
	}

	current, err := s.getNode(nodeID(version, nil))
	if err != nil {
		return nil, err
	}
	for depth := 0; ; depth++ {
		if current.leaf {
			if current.key != key {
				return nil, fmt.Errorf("key %s not set at version %d: %w", key, version, ErrNotFound)
			}
			return s.backend.GetValue(valueKey(current.writtenAt, key))
		}
		child := current.children[nibbleAt(key, depth)]
		if child == (NodeID{}) {
			return nil, fmt.Errorf("key %s not set at version %d: %w", key, version, ErrNotFound)
		}
		if current, err = s.getNode(child); err != nil {
			return nil, err
		}
	}
}

func (s *versionedStore) Root(version Version) (common.Hash, error) {
	last, err := s.LastVersion()
	if err != nil {
		return common.Hash{}, err
	}
	if version > last {
		return common.Hash{}, fmt.Errorf("version %d does not exist: %w", version, ErrNotFound)
	}
	data, err := s.backend.GetMetadata(rootHashKey(version))
	if err != nil {
		return common.Hash{}, err
	}
	if len(data) != common.HashSize {
		return common.Hash{}, fmt.Errorf("corrupted root hash record for version %d", version)
	}
	return common.Hash(data), nil
}

func (s *versionedStore) LastVersion() (Version, error) {
	data, err := s.backend.GetMetadata(keyLastVersion)
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupted version counter")
	}
	return Version(binary.LittleEndian.Uint64(data)), nil
}

func (s *versionedStore) Flush() error {
	return s.backend.Flush()
}

func (s *versionedStore) Close() error {
	return s.backend.Close()
}

func (s *versionedStore) GetMemoryFootprint() *common.MemoryFootprint {
	footprint := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	footprint.AddChild("backend", s.backend.GetMemoryFootprint())
	return footprint
}

// bumpVersionCounter reserves the next version id, advancing the counter
// and returning the reserved id.
func (s *versionedStore) bumpVersionCounter() (Version, error) {
	current := uint64(0)
	data, err := s.backend.GetMetadata(keyNextVersion)
	if err == nil {
		if len(data) != 8 {
			return 0, fmt.Errorf("corrupted version counter")
		}
		current = binary.LittleEndian.Uint64(data)
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	next := binary.LittleEndian.AppendUint64(nil, current+1)
	if err := s.backend.PutMetadata(keyNextVersion, next); err != nil {
		return 0, err
	}
	return Version(current), nil
}

// getNode loads and decodes the node with the given id.
func (s *versionedStore) getNode(id NodeID) (*node, error) {
	data, err := s.backend.GetNode(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(data)
}

// checkBatch verifies that a batch is non-empty and sorted by key without
// duplicates.
func checkBatch(batch []KeyValue) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: batch must not be empty", ErrInvalidBatch)
	}
	for i := 1; i < len(batch); i++ {
		if bytes.Compare(batch[i-1].Key[:], batch[i].Key[:]) >= 0 {
			return fmt.Errorf("%w: keys must be sorted and unique, got %s before %s",
				ErrInvalidBatch, batch[i-1].Key, batch[i].Key)
		}
	}
	return nil
}
