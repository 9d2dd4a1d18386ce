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
	"context"

	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
)

// Provider is the remote JSON-RPC capability the backend handler drives
// when the cache misses and no local archive satisfies the request.
type Provider interface {
	BalanceAt(ctx context.Context, addr common.Address, block BlockRef) (*uint256.Int, error)
	NonceAt(ctx context.Context, addr common.Address, block BlockRef) (uint64, error)
	CodeAt(ctx context.Context, addr common.Address, block BlockRef) ([]byte, error)
	StorageAt(ctx context.Context, addr common.Address, slot common.Hash, block BlockRef) (uint256.Int, error)
	BlockByNumber(ctx context.Context, number uint64, hashesOnly bool) (*Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error)
	FullBlockAt(ctx context.Context, id BlockRef) (*Block, error)
}

// StateProvider answers point-in-time account/storage reads for a single
// pinned block from a local archive. Each method reports absence via ok
// rather than error: the backend treats "not found" as zero/empty, not
// as a fetch failure.
type StateProvider interface {
	AccountBalance(addr common.Address) (balance *uint256.Int, ok bool, err error)
	AccountNonce(addr common.Address) (nonce uint64, ok bool, err error)
	AccountCode(addr common.Address) (code []byte, ok bool, err error)
	Storage(addr common.Address, slot common.Hash) (value uint256.Int, ok bool, err error)
}

// LocalArchive is the optional local-state capability. When configured, the
// backend handler tries it first for account/storage fetches at the pinned
// block number, falling back to Provider on error.
type LocalArchive interface {
	HistoryByBlockNumber(number uint64) (StateProvider, error)
}

// ExecutionReader is the minimal read interface an EVM interpreter needs
// from the backend. evmstate.Reader implements it over a SharedBackend.
type ExecutionReader interface {
	BasicRef(addr common.Address) (*AccountInfo, error)
	StorageRef(addr common.Address, slot common.Hash) (uint256.Int, error)
	BlockHashRef(number uint64) (common.Hash, error)
	CodeByHashRef(hash common.Hash) ([]byte, error)
}
