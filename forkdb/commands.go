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
	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/statecache"
)

// backendRequest is the inbox command sum type. Go has no tagged enums, so
// this is the conventional substitute: an unexported interface with a
// private marker method, implemented by one struct per command, switched
// on by concrete type in backendHandler.onRequest.
type backendRequest interface{ isBackendRequest() }

type accountReply struct {
	info *AccountInfo
	err  error
}

type storageReply struct {
	value uint256.Int
	err   error
}

type blockHashReply struct {
	hash common.Hash
	err  error
}

type fullBlockReply struct {
	block *Block
	err   error
}

type transactionReply struct {
	tx  *Transaction
	err error
}

type getAccountReq struct {
	addr  common.Address
	reply chan accountReply
}

type getStorageReq struct {
	addr  common.Address
	slot  common.Hash
	reply chan storageReply
}

type getBlockHashReq struct {
	number uint64
	reply  chan blockHashReply
}

type getFullBlockReq struct {
	id    BlockRef
	reply chan fullBlockReply
}

type getTransactionReq struct {
	hash  common.Hash
	reply chan transactionReply
}

type setPinnedBlockReq struct {
	block BlockRef
}

type bulkUpdateAccountsReq struct {
	data map[common.Address]statecache.AccountRecord
}

type bulkUpdateStorageReq struct {
	data map[common.Address]map[common.Hash]uint256.Int
}

type bulkUpdateBlockHashesReq struct {
	data map[uint64]common.Hash
}

// opaqueReq carries an already-erased unit of work: the closure does its
// own fetch and its own reply-send. This is the Go replacement for the
// boxed-future-plus-trait-object erasure the original needs: a closure is
// already type-erased, so there is no WrappedAnyRequest-equivalent trait
// to define.
type opaqueReq struct {
	run func()
}

func (getAccountReq) isBackendRequest()          {}
func (getStorageReq) isBackendRequest()          {}
func (getBlockHashReq) isBackendRequest()        {}
func (getFullBlockReq) isBackendRequest()        {}
func (getTransactionReq) isBackendRequest()      {}
func (setPinnedBlockReq) isBackendRequest()      {}
func (bulkUpdateAccountsReq) isBackendRequest()  {}
func (bulkUpdateStorageReq) isBackendRequest()   {}
func (bulkUpdateBlockHashesReq) isBackendRequest() {}
func (opaqueReq) isBackendRequest()              {}

// completion messages, sent by fetch goroutines back into the handler's
// single completions channel. The handler goroutine is the only reader,
// so no locking is needed around the listener tables it then drains.

type accountCompletion struct {
	addr common.Address
	info AccountInfo
	err  error
}

type storageCompletion struct {
	addr  common.Address
	slot  common.Hash
	value uint256.Int
	err   error
}

type blockHashCompletion struct {
	number uint64
	hash   common.Hash
	err    error
}
