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

	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
)

// AccountInfo is the minimal account record the backend caches and serves:
// balance, nonce, and bytecode (inline, never addressed by hash alone).
type AccountInfo struct {
	Balance  *uint256.Int
	Nonce    uint64
	Code     []byte
	CodeHash common.Hash
}

// NewAccountInfo builds an AccountInfo, deriving CodeHash from code per the
// empty-code invariant: empty code always hashes to common.EmptyCodeHash.
func NewAccountInfo(balance *uint256.Int, nonce uint64, code []byte) AccountInfo {
	if balance == nil {
		balance = new(uint256.Int)
	}
	if len(code) == 0 {
		return AccountInfo{Balance: balance, Nonce: nonce, Code: nil, CodeHash: common.EmptyCodeHash}
	}
	return AccountInfo{Balance: balance, Nonce: nonce, Code: code, CodeHash: common.Keccak256Hash(code)}
}

// Clone returns a deep-enough copy safe to hand to a second listener: the
// balance pointer and code slice are copied so no caller can mutate the
// cached value through its reply.
func (a AccountInfo) Clone() AccountInfo {
	var balance *uint256.Int
	if a.Balance != nil {
		balance = new(uint256.Int).Set(a.Balance)
	}
	var code []byte
	if a.Code != nil {
		code = append([]byte(nil), a.Code...)
	}
	return AccountInfo{Balance: balance, Nonce: a.Nonce, Code: code, CodeHash: a.CodeHash}
}

// BlockRefKind tags which selector a BlockRef carries.
type BlockRefKind uint8

const (
	BlockRefNumber BlockRefKind = iota
	BlockRefHash
	BlockRefLatest
)

// BlockRef selects a block by number, hash, or the "latest" tag. It is the
// Go-shaped equivalent of the original BlockId sum type.
type BlockRef struct {
	Kind   BlockRefKind
	Number uint64
	Hash   common.Hash
}

func BlockRefByNumber(n uint64) BlockRef { return BlockRef{Kind: BlockRefNumber, Number: n} }
func BlockRefByHash(h common.Hash) BlockRef { return BlockRef{Kind: BlockRefHash, Hash: h} }
func LatestBlockRef() BlockRef            { return BlockRef{Kind: BlockRefLatest} }

// AsNumber returns the block number this ref pins, if it carries one
// directly. BlockRefHash and BlockRefLatest do not resolve a number without
// consulting the provider, so ok is false for those.
func (b BlockRef) AsNumber() (uint64, bool) {
	if b.Kind == BlockRefNumber {
		return b.Number, true
	}
	return 0, false
}

func (b BlockRef) String() string {
	switch b.Kind {
	case BlockRefNumber:
		return fmt.Sprintf("#%d", b.Number)
	case BlockRefHash:
		return b.Hash.Hex()
	default:
		return "latest"
	}
}

// Block is the subset of a full block the backend exposes to callers of
// GetFullBlock: enough to let an execution engine inspect the block it is
// simulating against without round-tripping every field the remote returns.
type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Timestamp    uint64
	GasLimit     uint64
	GasUsed      uint64
	BaseFee      *uint256.Int
	TxHashes     []common.Hash
	Transactions []Transaction
}

// Transaction is the subset of a transaction's fields the backend exposes.
type Transaction struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address
	Nonce     uint64
	Value     *uint256.Int
	GasLimit  uint64
	GasPrice  *uint256.Int
	Input     []byte
	BlockHash common.Hash
	BlockNum  uint64
}
