// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package archive maintains a durable record of the root hashes produced
// by a store, one per version, in a SQLite database. It serves auditors
// needing the full root history without access to the store itself.
package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"unsafe"

	"github.com/0xsoniclabs/authtree/common"
	"github.com/0xsoniclabs/authtree/store"

	_ "github.com/mattn/go-sqlite3"
)

// Archive records the root hash of every version in a SQLite database.
// Operations are safe for concurrent use.
type Archive struct {
	db   *sql.DB
	add  *sql.Stmt // < insert or replace a root
	get  *sql.Stmt // < fetch the root of a version
	last *sql.Stmt // < fetch the highest recorded version
}

// Open opens the archive database at the given path, creating it if
// needed.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if _, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS roots (version INTEGER PRIMARY KEY, root BLOB NOT NULL)",
	); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to initialize archive schema: %w", err),
			db.Close(),
		)
	}

	res := &Archive{db: db}
	for _, stmt := range []struct {
		target **sql.Stmt
		query  string
	}{
		{&res.add, "INSERT OR REPLACE INTO roots(version, root) VALUES (?, ?)"},
		{&res.get, "SELECT root FROM roots WHERE version = ?"},
		{&res.last, "SELECT MAX(version) FROM roots"},
	} {
		if *stmt.target, err = db.Prepare(stmt.query); err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to prepare archive statement: %w", err),
				res.Close(),
			)
		}
	}
	return res, nil
}

// Add records the root hash of a version, replacing a previous record of
// the same version if present.
func (a *Archive) Add(version store.Version, root common.Hash) error {
	_, err := a.add.Exec(int64(version), root[:])
	return err
}

// GetRoot retrieves the root hash recorded for a version.
func (a *Archive) GetRoot(version store.Version) (common.Hash, error) {
	var data []byte
	err := a.get.QueryRow(int64(version)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Hash{}, fmt.Errorf("no root for version %d: %w", version, store.ErrNotFound)
	}
	if err != nil {
		return common.Hash{}, err
	}
	if len(data) != common.HashSize {
		return common.Hash{}, fmt.Errorf("corrupted root record for version %d", version)
	}
	return common.Hash(data), nil
}

// LastVersion retrieves the highest version recorded so far. An empty
// archive reports ErrNotFound.
func (a *Archive) LastVersion() (store.Version, error) {
	var version sql.NullInt64
	if err := a.last.QueryRow().Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, fmt.Errorf("archive is empty: %w", store.ErrNotFound)
	}
	return store.Version(version.Int64), nil
}

// Close releases the database resources.
func (a *Archive) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{a.add, a.get, a.last} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}

// GetMemoryFootprint provides the memory used by this archive.
func (a *Archive) GetMemoryFootprint() *common.MemoryFootprint {
	footprint := common.NewMemoryFootprint(unsafe.Sizeof(*a))
	footprint.SetNote("all data is kept on disk")
	return footprint
}
