// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/store"
	"github.com/stretchr/testify/require"
)

var (
	testContext     *commit.Context
	testContextOnce sync.Once
)

func getTestContext() *commit.Context {
	testContextOnce.Do(func() {
		ctx, err := commit.NewContext()
		if err != nil {
			panic(fmt.Sprintf("failed to create commitment context: %v", err))
		}
		testContext = ctx
	})
	return testContext
}

func TestOpen_CreatesTheDatabaseDirectories(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	backend, err := Open(dir)
	require.NoError(err)
	require.NoError(backend.Close())

	for _, sub := range []string{"m", "v"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(err)
		require.True(info.IsDir())
	}
}

func TestOpen_FailsOnAnObstructedDirectory(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	// A file in place of the metadata database directory.
	require.NoError(os.WriteFile(filepath.Join(dir, "m"), []byte("in the way"), 0600))
	_, err := Open(dir)
	require.Error(err)
}

func TestOpen_ClosesTheMetadataDatabaseWhenValuesFail(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	require.NoError(os.WriteFile(filepath.Join(dir, "v"), []byte("in the way"), 0600))
	_, err := Open(dir)
	require.Error(err)

	// The metadata database was released and can be opened again.
	backend, err := Open(t.TempDir())
	require.NoError(err)
	require.NoError(backend.Close())
}

func TestBackend_MissingEntriesReportNotFound(t *testing.T) {
	require := require.New(t)

	backend, err := Open(t.TempDir())
	require.NoError(err)
	defer backend.Close()

	_, err = backend.GetNode(store.NodeID{1})
	require.ErrorIs(err, store.ErrNotFound)
	_, err = backend.GetValue(common.Hash{2})
	require.ErrorIs(err, store.ErrNotFound)
	_, err = backend.GetMetadata([]byte("missing"))
	require.ErrorIs(err, store.ErrNotFound)
}

func TestBackend_KeySpacesAreIndependent(t *testing.T) {
	require := require.New(t)

	backend, err := Open(t.TempDir())
	require.NoError(err)
	defer backend.Close()

	// A node id and a metadata key with identical bytes address
	// different entries.
	id := store.NodeID{0xaa, 0xbb}
	require.NoError(backend.PutNode(id, []byte("node")))
	require.NoError(backend.PutMetadata(id[:], []byte("meta")))

	data, err := backend.GetNode(id)
	require.NoError(err)
	require.Equal([]byte("node"), data)

	data, err = backend.GetMetadata(id[:])
	require.NoError(err)
	require.Equal([]byte("meta"), data)
}

func TestBackend_StoredEntriesSurviveReopening(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	backend, err := Open(dir)
	require.NoError(err)
	require.NoError(backend.PutNode(store.NodeID{1}, []byte("node")))
	require.NoError(backend.PutValue(common.Hash{2}, []byte("value")))
	require.NoError(backend.PutMetadata([]byte("counter"), []byte("meta")))
	require.NoError(backend.Flush())
	require.NoError(backend.Close())

	backend, err = Open(dir)
	require.NoError(err)
	defer backend.Close()

	data, err := backend.GetNode(store.NodeID{1})
	require.NoError(err)
	require.Equal([]byte("node"), data)

	data, err = backend.GetValue(common.Hash{2})
	require.NoError(err)
	require.Equal([]byte("value"), data)

	data, err = backend.GetMetadata([]byte("counter"))
	require.NoError(err)
	require.Equal([]byte("meta"), data)
}

func TestBackend_AFullStoreSurvivesReopening(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	backend, err := Open(dir)
	require.NoError(err)
	s, err := store.New(backend, getTestContext())
	require.NoError(err)

	key := common.Key{1, 2, 3}
	_, root1, err := s.Apply([]store.KeyValue{{Key: key, Value: []byte("persisted")}})
	require.NoError(err)
	_, _, err = s.Apply([]store.KeyValue{{Key: key, Value: []byte("rewritten")}})
	require.NoError(err)
	require.NoError(s.Close())

	backend, err = Open(dir)
	require.NoError(err)
	s, err = store.New(backend, getTestContext())
	require.NoError(err)
	defer s.Close()

	last, err := s.LastVersion()
	require.NoError(err)
	require.EqualValues(2, last)

	value, err := s.Get(1, key)
	require.NoError(err)
	require.Equal([]byte("persisted"), value)

	value, err = s.Get(2, key)
	require.NoError(err)
	require.Equal([]byte("rewritten"), value)

	root, err := s.Root(1)
	require.NoError(err)
	require.Equal(root1, root)
}

func TestBackend_ProvidesMemoryFootprint(t *testing.T) {
	require := require.New(t)

	backend, err := Open(t.TempDir())
	require.NoError(err)
	defer backend.Close()

	footprint := backend.GetMemoryFootprint()
	require.NotNil(footprint)
	require.Positive(footprint.Total())
}
