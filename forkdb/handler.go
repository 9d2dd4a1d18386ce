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

	"github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/singleflight"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/statecache"
)

type storageKey struct {
	addr common.Address
	slot common.Hash
}

// backendHandler owns all outbound I/O, coalesces duplicate requests, and
// serializes cache writes. It runs as a single goroutine for the lifetime
// of a fork; everything it touches directly (the listener tables) is
// goroutine-local by construction, never shared with a caller.
//
// This is the Go-shaped equivalent of a hand-polled future: where the
// original manually drives a Vec<Pin<Box<dyn Future>>> to completion one
// poll at a time, the Go scheduler already does that job for ordinary
// goroutines, so the handler's loop reduces to selecting between new
// commands and completions reported back on a shared channel.
type backendHandler struct {
	provider Provider
	local    LocalArchive
	store    *statecache.Store
	metrics  *Metrics
	logger   log.Logger
	warner   *archiveWarner

	pinned BlockRef

	inbox       chan backendRequest
	completions chan any

	accountListeners   map[common.Address][]chan accountReply
	storageListeners   map[storageKey][]chan storageReply
	blockHashListeners map[uint64][]chan blockHashReply

	// fullBlockGroup dedupes concurrent identical full-block fetches. It is
	// not a listener table because full blocks are never written to SMS:
	// there is nothing to fan results out of beyond singleflight's own
	// waiter list.
	fullBlockGroup singleflight.Group
}

func newBackendHandler(provider Provider, local LocalArchive, store *statecache.Store, pinned BlockRef, metrics *Metrics) *backendHandler {
	logger := log.New("component", "backendhandler")
	return &backendHandler{
		provider:           provider,
		local:              local,
		store:              store,
		pinned:             pinned,
		metrics:            metrics,
		logger:             logger,
		warner:             newArchiveWarner(logger),
		inbox:              make(chan backendRequest, 256),
		completions:        make(chan any, 256),
		accountListeners:   make(map[common.Address][]chan accountReply),
		storageListeners:   make(map[storageKey][]chan storageReply),
		blockHashListeners: make(map[uint64][]chan blockHashReply),
	}
}

// run is the event loop. It returns when ctx is cancelled, which is what
// happens when the last SharedBackend closes (the flush sentinel's OnZero
// hook cancels it) or the ctx given to Open is done. It also returns if
// the inbox is closed, though no code in this package closes it.
func (h *backendHandler) run(ctx context.Context) {
	h.logger.Trace("backend handler starting")
	for {
		select {
		case <-ctx.Done():
			h.logger.Trace("backend handler stopping: context cancelled")
			return
		case req, ok := <-h.inbox:
			if !ok {
				h.logger.Trace("backend handler stopping: inbox closed")
				return
			}
			h.onRequest(ctx, req)
		case msg := <-h.completions:
			h.onCompletion(msg)
		}
	}
}

// onRequest handles one inbox command: check the cache under a read lock
// on hit, otherwise register the reply as a listener and, if it is the
// first listener for that key, launch exactly one fetch.
func (h *backendHandler) onRequest(ctx context.Context, req backendRequest) {
	switch r := req.(type) {
	case getAccountReq:
		if rec, ok := h.store.Accounts().Get(r.addr); ok {
			h.hit("account")
			r.reply <- accountReply{info: recordToAccountInfo(rec)}
			return
		}
		h.requestAccount(ctx, r.addr, r.reply)

	case getStorageReq:
		if v, ok := h.store.Storage().Get(r.addr, r.slot); ok {
			h.hit("storage")
			r.reply <- storageReply{value: v}
			return
		}
		h.requestStorage(ctx, r.addr, r.slot, r.reply)

	case getBlockHashReq:
		if hash, ok2 := h.store.BlockHashes().Get(r.number); ok2 {
			h.hit("block_hash")
			r.reply <- blockHashReply{hash: hash}
			return
		}
		h.requestBlockHash(ctx, r.number, r.reply)

	case getFullBlockReq:
		h.requestFullBlock(ctx, r.id, r.reply)

	case getTransactionReq:
		h.requestTransaction(ctx, r.hash, r.reply)

	case setPinnedBlockReq:
		h.pinned = r.block

	case bulkUpdateAccountsReq:
		h.store.Accounts().SetMany(r.data)

	case bulkUpdateStorageReq:
		h.store.Storage().SetMany(r.data)

	case bulkUpdateBlockHashesReq:
		h.store.BlockHashes().SetMany(r.data)

	case opaqueReq:
		go r.run()
	}
}

// requestAccount registers listener as waiting for addr's account info,
// spawning the fetch only if it is the first listener.
func (h *backendHandler) requestAccount(ctx context.Context, addr common.Address, listener chan accountReply) {
	existing, occupied := h.accountListeners[addr]
	h.accountListeners[addr] = append(existing, listener)
	if occupied {
		return
	}
	if h.metrics != nil {
		h.metrics.ProviderCalls.WithLabelValues("account").Inc()
	}
	go func() {
		info, err := h.fetchAccount(ctx, addr)
		h.completions <- accountCompletion{addr: addr, info: info, err: err}
	}()
}

func (h *backendHandler) requestStorage(ctx context.Context, addr common.Address, slot common.Hash, listener chan storageReply) {
	key := storageKey{addr: addr, slot: slot}
	existing, occupied := h.storageListeners[key]
	h.storageListeners[key] = append(existing, listener)
	if occupied {
		return
	}
	if h.metrics != nil {
		h.metrics.ProviderCalls.WithLabelValues("storage").Inc()
	}
	go func() {
		value, err := h.fetchStorage(ctx, addr, slot)
		h.completions <- storageCompletion{addr: addr, slot: slot, value: value, err: err}
	}()
}

func (h *backendHandler) requestBlockHash(ctx context.Context, number uint64, listener chan blockHashReply) {
	existing, occupied := h.blockHashListeners[number]
	h.blockHashListeners[number] = append(existing, listener)
	if occupied {
		return
	}
	if h.metrics != nil {
		h.metrics.ProviderCalls.WithLabelValues("block_hash").Inc()
	}
	go func() {
		hash, err := h.fetchBlockHash(ctx, number)
		h.completions <- blockHashCompletion{number: number, hash: hash, err: err}
	}()
}

// requestFullBlock is never cached in SMS (full blocks are not part of the
// account/storage/block-hash maps) but concurrent callers asking for the
// same block are still coalesced into a single provider round trip via
// singleflight, bypassing the listener tables and the completions channel
// since there is no cache write to sequence.
func (h *backendHandler) requestFullBlock(ctx context.Context, id BlockRef, reply chan fullBlockReply) {
	key := id.String()
	go func() {
		v, err, _ := h.fullBlockGroup.Do(key, func() (any, error) {
			if h.metrics != nil {
				h.metrics.ProviderCalls.WithLabelValues("full_block").Inc()
			}
			return h.provider.FullBlockAt(ctx, id)
		})
		if err != nil {
			reply <- fullBlockReply{err: &GetFullBlockError{BlockID: id, Cause: err}}
			return
		}
		block, _ := v.(*Block)
		if block == nil {
			reply <- fullBlockReply{err: &BlockNotFoundError{BlockID: id}}
			return
		}
		reply <- fullBlockReply{block: block}
	}()
}

// requestTransaction is never cached or coalesced: each call issues a
// fresh fetch with its reply channel embedded directly.
func (h *backendHandler) requestTransaction(ctx context.Context, hash common.Hash, reply chan transactionReply) {
	if h.metrics != nil {
		h.metrics.ProviderCalls.WithLabelValues("transaction").Inc()
	}
	go func() {
		tx, err := h.provider.TransactionByHash(ctx, hash)
		if err != nil {
			reply <- transactionReply{err: &GetTransactionError{Hash: hash, Cause: err}}
			return
		}
		reply <- transactionReply{tx: tx}
	}()
}

// onCompletion resolves one ready fetch: on success it writes SMS under an
// exclusive lock, then drains and fans out to every registered listener;
// on failure it shares the same error to every listener and leaves SMS
// untouched, so the next lookup retries from scratch.
func (h *backendHandler) onCompletion(msg any) {
	switch m := msg.(type) {
	case accountCompletion:
		listeners := h.accountListeners[m.addr]
		delete(h.accountListeners, m.addr)
		if m.err != nil {
			h.warner.maybeWarn(m.err)
			werr := &GetAccountError{Address: m.addr, Cause: m.err}
			for _, l := range listeners {
				l <- accountReply{err: werr}
			}
			return
		}
		h.store.Accounts().Set(m.addr, accountInfoToRecord(m.info))
		for _, l := range listeners {
			info := m.info
			l <- accountReply{info: &info}
		}

	case storageCompletion:
		key := storageKey{addr: m.addr, slot: m.slot}
		listeners := h.storageListeners[key]
		delete(h.storageListeners, key)
		if m.err != nil {
			h.warner.maybeWarn(m.err)
			werr := &GetStorageError{Address: m.addr, Slot: m.slot, Cause: m.err}
			for _, l := range listeners {
				l <- storageReply{err: werr}
			}
			return
		}
		h.store.Storage().Set(m.addr, m.slot, m.value)
		for _, l := range listeners {
			l <- storageReply{value: m.value}
		}

	case blockHashCompletion:
		listeners := h.blockHashListeners[m.number]
		delete(h.blockHashListeners, m.number)
		if m.err != nil {
			werr := &GetBlockHashError{Number: m.number, Cause: m.err}
			for _, l := range listeners {
				l <- blockHashReply{err: werr}
			}
			return
		}
		h.store.BlockHashes().Set(m.number, m.hash)
		for _, l := range listeners {
			l <- blockHashReply{hash: m.hash}
		}
	}
}

func (h *backendHandler) hit(kind string) {
	if h.metrics != nil {
		h.metrics.CacheHits.WithLabelValues(kind).Inc()
	}
}

func recordToAccountInfo(rec statecache.AccountRecord) *AccountInfo {
	info := AccountInfo{Balance: rec.Balance, Nonce: rec.Nonce, Code: rec.Code, CodeHash: rec.CodeHash}
	cloned := info.Clone()
	return &cloned
}

func accountInfoToRecord(info AccountInfo) statecache.AccountRecord {
	return statecache.AccountRecord{Balance: info.Balance, Nonce: info.Nonce, Code: info.Code, CodeHash: info.CodeHash}
}
