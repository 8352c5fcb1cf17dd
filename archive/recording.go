// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package archive

import (
	"fmt"

	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/store"
)

// RecordingStore wraps a store such that the root hash of every applied
// batch is mirrored into an archive. All other operations are forwarded
// unchanged. The archive's lifetime remains managed by the caller.
type RecordingStore struct {
	store.Store
	archive *Archive
}

// NewRecordingStore combines a store with the archive receiving its roots.
func NewRecordingStore(s store.Store, a *Archive) *RecordingStore {
	return &RecordingStore{Store: s, archive: a}
}

func (s *RecordingStore) Apply(batch []store.KeyValue) (store.Version, common.Hash, error) {
	version, root, err := s.Store.Apply(batch)
	if err != nil {
		return version, root, err
	}
	if err := s.archive.Add(version, root); err != nil {
		return version, root, fmt.Errorf("failed to archive the root of version %d: %w", version, err)
	}
	return version, root, nil
}
