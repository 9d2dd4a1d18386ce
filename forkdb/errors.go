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
	"errors"
	"fmt"

	"github.com/solidquant/evm-fork-db/common"
)

// GetAccountError reports a failed remote or local account fetch.
type GetAccountError struct {
	Address common.Address
	Cause   error
}

func (e *GetAccountError) Error() string {
	return fmt.Sprintf("forkdb: get account %s: %v", e.Address, e.Cause)
}
func (e *GetAccountError) Unwrap() error { return e.Cause }

// GetStorageError reports a failed storage slot fetch.
type GetStorageError struct {
	Address common.Address
	Slot    common.Hash
	Cause   error
}

func (e *GetStorageError) Error() string {
	return fmt.Sprintf("forkdb: get storage %s[%s]: %v", e.Address, e.Slot, e.Cause)
}
func (e *GetStorageError) Unwrap() error { return e.Cause }

// GetBlockHashError reports a failed block-by-number lookup.
type GetBlockHashError struct {
	Number uint64
	Cause  error
}

func (e *GetBlockHashError) Error() string {
	return fmt.Sprintf("forkdb: get block hash for %d: %v", e.Number, e.Cause)
}
func (e *GetBlockHashError) Unwrap() error { return e.Cause }

// GetFullBlockError reports a failed full-block fetch.
type GetFullBlockError struct {
	BlockID BlockRef
	Cause   error
}

func (e *GetFullBlockError) Error() string {
	return fmt.Sprintf("forkdb: get full block %s: %v", e.BlockID, e.Cause)
}
func (e *GetFullBlockError) Unwrap() error { return e.Cause }

// GetTransactionError reports a failed transaction fetch.
type GetTransactionError struct {
	Hash  common.Hash
	Cause error
}

func (e *GetTransactionError) Error() string {
	return fmt.Sprintf("forkdb: get transaction %s: %v", e.Hash, e.Cause)
}
func (e *GetTransactionError) Unwrap() error { return e.Cause }

// BlockNotFoundError reports that the remote had no such block. It is
// distinct from GetFullBlockError: the call succeeded, it just found
// nothing, matching the original's Ok(None) vs Err(_) distinction.
type BlockNotFoundError struct {
	BlockID BlockRef
}

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("forkdb: block not found: %s", e.BlockID)
}

// MissingCodeError is returned unconditionally from CodeByHashRef: bytecode
// lives inline on AccountInfo and is never addressable by hash alone.
type MissingCodeError struct {
	Hash common.Hash
}

func (e *MissingCodeError) Error() string {
	return fmt.Sprintf("forkdb: code by hash unsupported, requested %s", e.Hash)
}

// TransportError wraps a failure to reach the backend handler itself: the
// inbox channel was closed, or the reply channel was dropped before a
// response arrived.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("forkdb: transport: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// AnyRequestError wraps a failure from an opaque caller-supplied request.
type AnyRequestError struct {
	Cause error
}

func (e *AnyRequestError) Error() string { return fmt.Sprintf("forkdb: any-request: %v", e.Cause) }
func (e *AnyRequestError) Unwrap() error { return e.Cause }

// ErrBackendClosed is the TransportError cause used when a caller submits a
// request after the backend handler has already shut down.
var ErrBackendClosed = errors.New("forkdb: backend handler is no longer running")

// ErrReplyDropped is the TransportError cause used when the reply channel
// is closed without a value. A cancelled caller context is reported with
// the context's own error as the cause instead.
var ErrReplyDropped = errors.New("forkdb: reply channel closed without a value")
