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

// Package evmstate adapts a forkdb.SharedBackend to the minimal read
// surface an EVM interpreter needs (forkdb.ExecutionReader), fixing the
// context every call uses so the interpreter's own call sites never have
// to thread one through.
package evmstate

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/forkdb"
)

// Reader implements forkdb.ExecutionReader over a *forkdb.SharedBackend
// and a fixed context, for interpreters whose read interface has no
// context parameter of its own.
type Reader struct {
	backend *forkdb.SharedBackend
	ctx     context.Context
}

// NewReader returns a Reader bound to ctx. Every interpreter call made
// through it shares that single context for cancellation/timeout.
func NewReader(ctx context.Context, backend *forkdb.SharedBackend) *Reader {
	return &Reader{backend: backend, ctx: ctx}
}

func (r *Reader) BasicRef(addr common.Address) (*forkdb.AccountInfo, error) {
	return r.backend.Basic(r.ctx, addr)
}

func (r *Reader) StorageRef(addr common.Address, slot common.Hash) (uint256.Int, error) {
	return r.backend.Storage(r.ctx, addr, slot)
}

func (r *Reader) BlockHashRef(number uint64) (common.Hash, error) {
	return r.backend.BlockHash(r.ctx, number)
}

// CodeByHashRef is unconditionally unsupported: bytecode lives inline on
// AccountInfo, never addressed by hash alone, matching the backend's
// account-info shape.
func (r *Reader) CodeByHashRef(hash common.Hash) ([]byte, error) {
	return nil, &forkdb.MissingCodeError{Hash: hash}
}

var _ forkdb.ExecutionReader = (*Reader)(nil)
