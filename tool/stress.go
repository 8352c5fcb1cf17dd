// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/0xsoniclabs/authtree/archive"
	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/common/diagnostics"
	"github.com/0xsoniclabs/authtree/store"
	"github.com/0xsoniclabs/authtree/store/ldb"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
)

var StressTestCmd = cli.Command{
	Action: diagnostics.WithProfiling(
		runStressTest, &diagnosticsFlag, &cpuProfileFlag, &traceFlag,
	),
	Name:  "stress-test",
	Usage: "applies random update batches to a fresh store and verifies every result",
	Flags: []cli.Flag{
		&tmpDirFlag,
		&numBatchesFlag,
		&batchSizeFlag,
		&seedFlag,
	},
}

var (
	tmpDirFlag = cli.StringFlag{
		Name:  "tmp-dir",
		Usage: "the directory to create the test store in, the system default if empty",
		Value: "",
	}
	numBatchesFlag = cli.IntFlag{
		Name:  "num-batches",
		Usage: "the number of update batches to apply",
		Value: 10,
	}
	batchSizeFlag = cli.IntFlag{
		Name:  "batch-size",
		Usage: "the number of keys updated per batch",
		Value: 100,
	}
)

func runStressTest(c *cli.Context) error {
	numBatches := c.Int(numBatchesFlag.Name)
	batchSize := c.Int(batchSizeFlag.Name)
	if numBatches < 1 || batchSize < 1 {
		return fmt.Errorf("at least one batch of at least one update is needed, got %d x %d",
			numBatches, batchSize)
	}

	dir, err := os.MkdirTemp(c.String(tmpDirFlag.Name), "authtree-stress-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	fmt.Printf("Running stress test in %s\n", dir)

	ctx, err := commit.NewContext()
	if err != nil {
		return err
	}
	backend, err := ldb.Open(filepath.Join(dir, "store"))
	if err != nil {
		return err
	}
	db, err := store.New(backend, ctx)
	if err != nil {
		return errors.Join(err, backend.Close())
	}
	roots, err := archive.Open(filepath.Join(dir, "roots.db"))
	if err != nil {
		return errors.Join(err, db.Close())
	}
	recording := archive.NewRecordingStore(db, roots)

	rng := rand.New(rand.NewSource(c.Int64(seedFlag.Name)))
	err = runBatches(recording, roots, rng, numBatches, batchSize)
	fmt.Printf("Store memory usage:\n%v", recording.GetMemoryFootprint())
	return errors.Join(err, recording.Close(), roots.Close())
}

// runBatches applies the given number of random batches, checking version
// numbering, archived roots, and the stability of historic reads after
// every step.
func runBatches(db store.Store, roots *archive.Archive, rng *rand.Rand, numBatches, batchSize int) error {
	type appliedUpdate struct {
		version store.Version
		key     common.Key
		value   []byte
	}
	history := make([]appliedUpdate, 0, numBatches*batchSize)

	for i := 0; i < numBatches; i++ {
		batch := makeRandomStoreBatch(rng, batchSize)
		version, root, err := db.Apply(batch)
		if err != nil {
			return fmt.Errorf("failed to apply batch %d: %w", i+1, err)
		}
		if version != store.Version(i+1) {
			return fmt.Errorf("batch %d produced version %d", i+1, version)
		}
		for _, kv := range batch {
			history = append(history, appliedUpdate{version, kv.Key, kv.Value})
		}

		if last, err := roots.LastVersion(); err != nil {
			return err
		} else if last != version {
			return fmt.Errorf("archive is at version %d after creating version %d", last, version)
		}
		if archived, err := roots.GetRoot(version); err != nil {
			return err
		} else if archived != root {
			return fmt.Errorf("archive recorded root %s for version %d, the store produced %s",
				archived, version, root)
		}

		// Spot-check that an older write is still readable as of its version.
		probe := history[rng.Intn(len(history))]
		value, err := db.Get(probe.version, probe.key)
		if err != nil {
			return fmt.Errorf("failed to read key %s of version %d: %w", probe.key, probe.version, err)
		}
		if !slices.Equal(value, probe.value) {
			return fmt.Errorf("key %s of version %d changed its value", probe.key, probe.version)
		}

		fmt.Printf("Applied batch %d of %d, version %d has root %s\n", i+1, numBatches, version, root)
	}
	return nil
}

// makeRandomStoreBatch samples a batch of random key-value pairs, sorted by
// key and free of duplicates as the store requires.
func makeRandomStoreBatch(rng *rand.Rand, size int) []store.KeyValue {
	unique := make(map[common.Key][]byte, size)
	for len(unique) < size {
		var key common.Key
		rng.Read(key[:])
		value := make([]byte, 8+rng.Intn(24))
		rng.Read(value)
		unique[key] = value
	}

	batch := make([]store.KeyValue, 0, size)
	for key, value := range unique {
		batch = append(batch, store.KeyValue{Key: key, Value: value})
	}
	slices.SortFunc(batch, func(a, b store.KeyValue) int {
		return bytes.Compare(a.Key[:], b.Key[:])
	})
	return batch
}
