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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xsoniclabs/authtree/archive"
	"github.com/0xsoniclabs/authtree/commit"
	"github.com/0xsoniclabs/authtree/store"
	"github.com/0xsoniclabs/authtree/store/ldb"
	"github.com/urfave/cli/v2"
)

var Info = cli.Command{
	Action:    runInfo,
	Name:      "info",
	Usage:     "summarizes the content of a store directory",
	ArgsUsage: "<store directory>",
}

func runInfo(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("missing store directory parameter")
	}
	dir := c.Args().Get(0)
	if _, err := os.Stat(filepath.Join(dir, "store")); err != nil {
		return fmt.Errorf("no store found in %s: %w", dir, err)
	}

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
	return errors.Join(printStoreInfo(db, dir), db.Close())
}

// printStoreInfo reports the version range and current root of the store,
// and cross-checks the root archive against the store if one is present.
func printStoreInfo(db store.Store, dir string) error {
	last, err := db.LastVersion()
	if err != nil {
		return err
	}
	root, err := db.Root(last)
	if err != nil {
		return err
	}
	fmt.Printf("Store directory: %s\n", dir)
	fmt.Printf("Last version: %d\n", last)
	fmt.Printf("Root of version %d: %s\n", last, root)

	archivePath := filepath.Join(dir, "roots.db")
	if _, err := os.Stat(archivePath); err != nil {
		fmt.Printf("No root archive present\n")
		return nil
	}
	roots, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	return errors.Join(checkArchivedRoots(db, roots), roots.Close())
}

// checkArchivedRoots verifies that every archived root matches the root the
// store reports for the same version.
func checkArchivedRoots(db store.Store, roots *archive.Archive) error {
	archivedLast, err := roots.LastVersion()
	if errors.Is(err, store.ErrNotFound) {
		fmt.Printf("Root archive is empty\n")
		return nil
	}
	if err != nil {
		return err
	}

	checked := 0
	for version := store.Version(1); version <= archivedLast; version++ {
		archived, err := roots.GetRoot(version)
		if errors.Is(err, store.ErrNotFound) {
			continue // the archive may have gaps if it was attached late
		}
		if err != nil {
			return err
		}
		fromStore, err := db.Root(version)
		if err != nil {
			return err
		}
		if archived != fromStore {
			return fmt.Errorf("archive records root %s for version %d, the store reports %s",
				archived, version, fromStore)
		}
		checked++
	}
	fmt.Printf("Archived roots: %d, all matching the store\n", checked)
	return nil
}
