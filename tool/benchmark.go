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
	"fmt"
	"math/rand"
	"strconv"
	"time"
	"unsafe"

	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/common/diagnostics"
	"github.com/0xsoniclabs/authtree/common/future"
	"github.com/0xsoniclabs/authtree/common/result"
	"github.com/0xsoniclabs/authtree/tree"
	"github.com/0xsoniclabs/authtree/tree/crhf"
	"github.com/0xsoniclabs/authtree/tree/incremental"
	"github.com/0xsoniclabs/authtree/tree/verkle"
	"github.com/holiman/uint256"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var Benchmark = cli.Command{
	Action: diagnostics.WithProfiling(
		runBenchmark, &diagnosticsFlag, &cpuProfileFlag, &traceFlag,
	),
	Name:  "benchmark",
	Usage: "measures the bulk-update throughput of a hashing policy",
	Flags: []cli.Flag{
		&typeFlag,
		&arityFlag,
		&heightFlag,
		&numUpdatesFlag,
		&seedFlag,
	},
}

var (
	typeFlag = cli.StringFlag{
		Name:  "type",
		Usage: "the hashing policy to benchmark: crhf-sha3, crhf-blake2b, crhf-blake2s, incremental, or verkle",
		Value: "crhf-sha3",
	}
	arityFlag = cli.IntFlag{
		Name:  "arity",
		Usage: "the number of children per inner node",
		Value: 2,
	}
	heightFlag = cli.IntFlag{
		Name:  "height",
		Usage: "the height of the tree",
		Value: 30,
	}
	numUpdatesFlag = cli.IntFlag{
		Name:  "num-updates",
		Usage: "the number of leaves to update",
		Value: 200_000,
	}
)

// leafPrefixLength is the length of the random prefix shared by all leaf
// payloads of a benchmark run.
const leafPrefixLength = 96

const alphanumerics = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func runBenchmark(c *cli.Context) error {
	arity := c.Int(arityFlag.Name)
	name := c.String(typeFlag.Name)
	switch name {
	case "crhf-sha3":
		hasher, err := crhf.NewSha3Hasher(arity)
		if err != nil {
			return err
		}
		return runPolicyBenchmark[common.Hash](c, name, hasher)
	case "crhf-blake2b":
		hasher, err := crhf.NewBlake2bHasher(arity)
		if err != nil {
			return err
		}
		return runPolicyBenchmark[common.Hash](c, name, hasher)
	case "crhf-blake2s":
		hasher, err := crhf.NewBlake2sHasher(arity)
		if err != nil {
			return err
		}
		return runPolicyBenchmark[common.Hash](c, name, hasher)
	case "incremental":
		ctx, err := commit.NewContext()
		if err != nil {
			return err
		}
		hasher, err := incremental.NewHasher(ctx, arity)
		if err != nil {
			return err
		}
		return runPolicyBenchmark[incremental.Digest](c, name, hasher)
	case "verkle":
		ctx, err := commit.NewContext()
		if err != nil {
			return err
		}
		hasher, err := verkle.NewHasher(ctx, arity)
		if err != nil {
			return err
		}
		return runPolicyBenchmark[verkle.Digest](c, name, hasher)
	default:
		return fmt.Errorf("unknown tree type %q, supported are crhf-sha3, crhf-blake2b, crhf-blake2s, incremental, and verkle", name)
	}
}

func runPolicyBenchmark[D any](c *cli.Context, name string, hasher tree.NodeHasher[[]byte, D]) error {
	arity := c.Int(arityFlag.Name)
	height := c.Int(heightFlag.Name)
	numUpdates := c.Int(numUpdatesFlag.Name)

	maxLeaves, err := tree.MaxLeaves(arity, height)
	if err != nil {
		return err
	}
	if numUpdates < 1 || uint64(numUpdates) > maxLeaves {
		return fmt.Errorf("cannot update %d out of %s leaves",
			numUpdates, formatWithCommas(maxLeaves))
	}

	fmt.Printf("Allocating memory for an arity-%d height-%d %s tree, to benchmark updating %s out of %s leaves\n\n",
		arity, height, name,
		formatWithCommas(uint64(numUpdates)), formatWithCommas(maxLeaves))

	var zero D
	if err := checkAllocationFits(arity, maxLeaves, unsafe.Sizeof(zero)); err != nil {
		return err
	}

	// The tree allocation runs while the updates are being sampled.
	futureTree := future.Go(func() result.Result[*tree.Tree[[]byte, D]] {
		return result.Of(tree.New[[]byte, D](arity, height, hasher))
	})

	rng := rand.New(rand.NewSource(c.Int64(seedFlag.Name)))
	prefix := sampleAlphanumeric(rng, leafPrefixLength)
	fmt.Printf("Leaf prefix: %s\n\n", prefix)

	start := time.Now()
	updates := sampleUpdates(rng, prefix, numUpdates, maxLeaves)
	fmt.Printf("Sampled %s random updates in %v\n\n",
		formatWithCommas(uint64(numUpdates)), time.Since(start))

	merkle, err := futureTree.Await().Get()
	if err != nil {
		return err
	}

	start = time.Now()
	pending, _, err := merkle.PreprocessLeaves(updates)
	if err != nil {
		return err
	}
	merkle.UpdatePreprocessedLeaves(pending)
	duration := time.Since(start)

	fmt.Printf("Updated %s leaves in %v\n",
		formatWithCommas(uint64(numUpdates)), duration)
	fmt.Printf("Updates per second: %s\n\n",
		formatWithCommas(ratePerSecond(uint64(numUpdates), duration)))

	computations := merkle.Computations()
	fmt.Printf("Total hash computations: %s\n", formatWithCommas(computations))
	fmt.Printf("Computations per second: %s\n",
		formatWithCommas(ratePerSecond(computations, duration)))
	return nil
}

// checkAllocationFits verifies that the digest array of the benchmarked
// tree fits the machine's memory. The node count itself can exceed the
// 64-bit range before the allocation gets a chance to fail.
func checkAllocationFits(arity int, numLeaves uint64, digestSize uintptr) error {
	leaves := uint256.NewInt(numLeaves)
	internal := new(uint256.Int).Div(
		new(uint256.Int).Sub(leaves, uint256.NewInt(1)),
		uint256.NewInt(uint64(arity-1)),
	)
	nodes := new(uint256.Int).Add(internal, leaves)
	required := new(uint256.Int).Mul(nodes, uint256.NewInt(uint64(digestSize)))
	total := memory.TotalMemory()
	if required.GtUint64(total) {
		return fmt.Errorf("the tree needs %s bytes of digests, the system has %s",
			insertCommas(required.Dec()), formatWithCommas(total))
	}
	return nil
}

// sampleAlphanumeric draws a random alphanumeric byte string.
func sampleAlphanumeric(rng *rand.Rand, length int) []byte {
	res := make([]byte, length)
	for i := range res {
		res[i] = alphanumerics[rng.Intn(len(alphanumerics))]
	}
	return res
}

// sampleUpdates draws the given number of distinct leaf positions and
// pairs them with enumerated payloads, sorted by position.
func sampleUpdates(rng *rand.Rand, prefix []byte, count int, limit uint64) []tree.Update[[]byte] {
	positions := make(map[uint64]struct{}, count)
	for len(positions) < count {
		positions[rng.Uint64()%limit] = struct{}{}
	}
	sorted := maps.Keys(positions)
	slices.Sort(sorted)

	updates := make([]tree.Update[[]byte], count)
	for i, position := range sorted {
		updates[i] = tree.Update[[]byte]{
			Position: position,
			Data:     fmt.Appendf(slices.Clone(prefix), "/%d", i),
		}
	}
	return updates
}

func ratePerSecond(count uint64, duration time.Duration) uint64 {
	if duration <= 0 {
		return 0
	}
	return uint64(float64(count) / duration.Seconds())
}

func formatWithCommas(value uint64) string {
	return insertCommas(strconv.FormatUint(value, 10))
}

// insertCommas groups a decimal digit string in blocks of three.
func insertCommas(digits string) string {
	for i := len(digits) - 3; i > 0; i -= 3 {
		digits = digits[:i] + "," + digits[i:]
	}
	return digits
}
