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
	"golang.org/x/sync/errgroup"

	"github.com/solidquant/evm-fork-db/common"
)

// localStateProvider resolves a StateProvider for the pinned block, if a
// local archive is configured and the pin names a concrete number. A
// hash or "latest" pin has no meaning to a local archive keyed by block
// number, so those always fall straight through to the remote provider.
func (h *backendHandler) localStateProvider() (StateProvider, bool) {
	if h.local == nil {
		return nil, false
	}
	number, ok := h.pinned.AsNumber()
	if !ok {
		return nil, false
	}
	sp, err := h.local.HistoryByBlockNumber(number)
	if err != nil || sp == nil {
		return nil, false
	}
	return sp, true
}

// fetchAccount implements the tiered source policy: try the local archive
// at the pinned block number first, and only reach for the remote
// provider if no local archive is configured or the local lookup itself
// errors. A local lookup that merely reports the account absent (ok is
// false on every field) is still authoritative and does not fall back.
func (h *backendHandler) fetchAccount(ctx context.Context, addr common.Address) (AccountInfo, error) {
	if sp, ok := h.localStateProvider(); ok {
		info, err := fetchAccountFromLocal(sp, addr)
		if err == nil {
			return info, nil
		}
		// err is discarded here, not surfaced: it only ever causes a
		// fallback to the remote. Warn on the error that actually reaches
		// a caller instead (onCompletion, once the remote attempt too
		// has failed).
	}
	return h.fetchAccountFromRemote(ctx, addr)
}

func fetchAccountFromLocal(sp StateProvider, addr common.Address) (AccountInfo, error) {
	balance, _, err := sp.AccountBalance(addr)
	if err != nil {
		return AccountInfo{}, err
	}
	nonce, _, err := sp.AccountNonce(addr)
	if err != nil {
		return AccountInfo{}, err
	}
	code, _, err := sp.AccountCode(addr)
	if err != nil {
		return AccountInfo{}, err
	}
	return NewAccountInfo(balance, nonce, code), nil
}

// fetchAccountFromRemote joins the three independent RPC calls a full
// account fetch needs. They share nothing and can run concurrently, so
// an errgroup drives them to completion together instead of sequentially.
func (h *backendHandler) fetchAccountFromRemote(ctx context.Context, addr common.Address) (AccountInfo, error) {
	var (
		balance *uint256.Int
		nonce   uint64
		code    []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = h.provider.BalanceAt(gctx, addr, h.pinned)
		return err
	})
	g.Go(func() error {
		var err error
		nonce, err = h.provider.NonceAt(gctx, addr, h.pinned)
		return err
	})
	g.Go(func() error {
		var err error
		code, err = h.provider.CodeAt(gctx, addr, h.pinned)
		return err
	})
	if err := g.Wait(); err != nil {
		return AccountInfo{}, err
	}
	return NewAccountInfo(balance, nonce, code), nil
}

// fetchStorage mirrors fetchAccount's tiered policy for a single slot.
func (h *backendHandler) fetchStorage(ctx context.Context, addr common.Address, slot common.Hash) (uint256.Int, error) {
	if sp, ok := h.localStateProvider(); ok {
		value, _, err := sp.Storage(addr, slot)
		if err == nil {
			return value, nil
		}
		// see fetchAccount: a discarded local error just triggers fallback
		// and is not the one callers see.
	}
	return h.provider.StorageAt(ctx, addr, slot, h.pinned)
}

// fetchBlockHash has no local-archive tier: block hashes are looked up by
// number directly against the remote, and a remote "no such block" is
// cached as common.EmptyHashSentinel rather than treated as an error, so
// a later BLOCKHASH opcode for a future block resolves to that sentinel
// after one fetch per number instead of refetching forever.
func (h *backendHandler) fetchBlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	block, err := h.provider.BlockByNumber(ctx, number, true)
	if err != nil {
		h.warner.maybeWarn(err)
		return common.Hash{}, err
	}
	if block == nil {
		h.logger.Warn("no block at requested number, caching empty hash sentinel", "number", number)
		return common.EmptyHashSentinel, nil
	}
	return block.Hash, nil
}
