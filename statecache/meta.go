// Copyright 2025 The evm-fork-db Authors
// This file is part of evm-fork-db.
//
// evm-fork-db is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// evm-fork-db is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with evm-fork-db. If not, see <http://www.gnu.org/licenses/>.

package statecache

// BlockEnv pins the chain id and block environment a cache was populated
// against, for informational diffing on load. It is not validated against
// on load: a mismatch is the caller's policy decision, not ours.
type BlockEnv struct {
	ChainID     uint64
	BlockNumber uint64
	BlockHash   string
}

// Meta tags a cache with enough provenance to let a caller decide whether
// to trust it: which chain, which block, and which hosts it was fetched
// from. DBSchemaVersion follows the table-versioning convention the
// teacher documents alongside its own table constants (see
// erigon-lib/kv/tables.go's DBSchemaVersion comment history) — bump it
// whenever the on-disk section layout changes shape.
type Meta struct {
	SchemaVersion int      `toml:"schema_version"`
	Chain         BlockEnv `toml:"block_env"`
	Hosts         []string `toml:"hosts"`
	FlushedAtUnix int64    `toml:"flushed_at_unix"`
}

// CurrentSchemaVersion is the on-disk cache format version this package
// writes and expects to read.
const CurrentSchemaVersion = 1

// DefaultMeta returns a Meta stamped with CurrentSchemaVersion and no
// chain/host info filled in; callers populate Chain and Hosts before
// flushing.
func DefaultMeta() Meta { return Meta{SchemaVersion: CurrentSchemaVersion} }
