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

package forkdb

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk shape of a forkbackend deployment: enough to open
// a Provider, optionally point it at a local archive, and decide where
// (and how often) the cache flushes.
type Config struct {
	// RPCURL is the remote JSON-RPC endpoint (http(s):// or ws(s)://).
	RPCURL string `toml:"rpc_url"`
	// RPCTimeout bounds a single remote call.
	RPCTimeout time.Duration `toml:"rpc_timeout"`
	// ChainID is the chain the deployment targets. Nothing in this module
	// copies it into the cache's Meta or compares it against a loaded
	// cache.
	ChainID uint64 `toml:"chain_id"`
	// PinnedBlock is the block number the backend starts pinned to.
	PinnedBlock uint64 `toml:"pinned_block"`
	// CachePath, if set, is where the cache is loaded from (if it exists)
	// and flushed back to.
	CachePath string `toml:"cache_path"`
	// MaxCacheSize is a cache-file size knob parsed from the config. No
	// code in this module reads it: flushes are not checked against it
	// and it never forces eviction, since this design has none (see
	// statecache's package doc).
	MaxCacheSize datasize.ByteSize `toml:"max_cache_size"`
	// BlockingMode selects whether synchronous calls honor ctx
	// cancellation: "default" or "context".
	BlockingModeName string `toml:"blocking_mode"`
}

// DefaultConfig returns the configuration a fresh deployment starts from.
func DefaultConfig() Config {
	return Config{
		RPCTimeout:       30 * time.Second,
		MaxCacheSize:     512 * datasize.MB,
		BlockingModeName: "default",
	}
}

// LoadConfig reads and parses a TOML config file at path, starting from
// DefaultConfig so an omitted field keeps its default rather than
// zeroing out.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("forkdb: read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("forkdb: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BlockingMode resolves the configured blocking mode name, defaulting to
// BlockingModeDefault for an empty or unrecognized value.
func (c Config) BlockingMode() BlockingMode {
	switch c.BlockingModeName {
	case "context":
		return BlockingModeContext
	default:
		return BlockingModeDefault
	}
}
