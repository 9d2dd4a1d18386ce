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
	"github.com/solidquant/evm-fork-db/statecache"
)

// SharedBackend is the cheaply-cloneable, thread-safe handle every caller
// actually holds. It exposes a synchronous-looking API backed by the
// single backendHandler goroutine it shares with every clone: Clone()
// copies only the handle, never the handler, the store, or the listener
// tables.
type SharedBackend struct {
	inbox        chan<- backendRequest
	cache        *statecache.Cache
	sentinel     *statecache.FlushSentinel
	blockingMode BlockingMode
}

// Options configures a newly opened SharedBackend.
type Options struct {
	// Local is the optional local-state archive tried before Provider.
	Local LocalArchive
	// CachePath, if non-empty, is where FlushCache()/the final Release()
	// write the cache's contents as TOML.
	CachePath string
	// Meta is stamped into the cache document on every flush.
	Meta statecache.Meta
	// BlockingMode controls whether synchronous calls honor ctx
	// cancellation while waiting for a reply. Defaults to
	// BlockingModeDefault.
	BlockingMode BlockingMode
	// Metrics, if non-nil, receives provider-call and cache-hit counts.
	Metrics *Metrics
}

// Open starts a new backend event loop pinned at pinned, fetching misses
// from provider (and opts.Local first, if set), and returns the first
// SharedBackend handle onto it. ctx bounds the handler goroutine's
// lifetime in addition to the refcounted Close()/Release() path: whichever
// comes first stops the loop.
func Open(ctx context.Context, provider Provider, pinned BlockRef, opts Options) *SharedBackend {
	store := statecache.New()
	cache := statecache.NewCache(store, opts.CachePath, opts.Meta)
	sentinel := statecache.NewFlushSentinel(cache)

	handlerCtx, cancel := context.WithCancel(ctx)
	h := newBackendHandler(provider, opts.Local, store, pinned, opts.Metrics)
	sentinel.OnZero(cancel)
	go h.run(handlerCtx)

	return &SharedBackend{
		inbox:        h.inbox,
		cache:        cache,
		sentinel:     sentinel,
		blockingMode: opts.BlockingMode,
	}
}

// OpenFromCache behaves like Open but seeds the store from a previously
// flushed cache file at path, preserving whatever accounts/storage/block
// hashes it held (pin changes never invalidate them, by design: see
// SPEC_FULL.md's Design Notes on pin-change consistency).
func OpenFromCache(ctx context.Context, provider Provider, pinned BlockRef, path string, opts Options) (*SharedBackend, error) {
	store, _, err := statecache.Load(path)
	if err != nil {
		return nil, err
	}
	cachePath := opts.CachePath
	if cachePath == "" {
		cachePath = path
	}
	cache := statecache.NewCache(store, cachePath, opts.Meta)
	sentinel := statecache.NewFlushSentinel(cache)

	handlerCtx, cancel := context.WithCancel(ctx)
	h := newBackendHandler(provider, opts.Local, store, pinned, opts.Metrics)
	sentinel.OnZero(cancel)
	go h.run(handlerCtx)

	return &SharedBackend{
		inbox:        h.inbox,
		cache:        cache,
		sentinel:     sentinel,
		blockingMode: opts.BlockingMode,
	}, nil
}

// Clone returns a new handle onto the same backend event loop and cache.
// Both handles must eventually Close(); the underlying loop stops and the
// cache flushes once only, when the last clone closes.
func (b *SharedBackend) Clone() *SharedBackend {
	b.sentinel.Acquire()
	clone := *b
	return &clone
}

// Close releases this handle's reference. When it is the last live
// handle, the cache flushes (if configured) and the backend event loop
// stops.
func (b *SharedBackend) Close() {
	b.sentinel.Release()
}

func (b *SharedBackend) send(req backendRequest) {
	b.inbox <- req
}

// Basic resolves addr's account info, fetching it through the tiered
// source policy and caching the result if it was a miss.
func (b *SharedBackend) Basic(ctx context.Context, addr common.Address) (*AccountInfo, error) {
	reply := make(chan accountReply, 1)
	b.send(getAccountReq{addr: addr, reply: reply})
	r, err := waitReply(ctx, b.blockingMode, reply)
	if err != nil {
		return nil, err
	}
	return r.info, r.err
}

// Storage resolves the value at (addr, slot).
func (b *SharedBackend) Storage(ctx context.Context, addr common.Address, slot common.Hash) (uint256.Int, error) {
	reply := make(chan storageReply, 1)
	b.send(getStorageReq{addr: addr, slot: slot, reply: reply})
	r, err := waitReply(ctx, b.blockingMode, reply)
	if err != nil {
		return uint256.Int{}, err
	}
	return r.value, r.err
}

// BlockHash resolves the hash of the block at number.
func (b *SharedBackend) BlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	reply := make(chan blockHashReply, 1)
	b.send(getBlockHashReq{number: number, reply: reply})
	r, err := waitReply(ctx, b.blockingMode, reply)
	if err != nil {
		return common.Hash{}, err
	}
	return r.hash, r.err
}

// GetFullBlock fetches the block identified by id, uncached, every call.
func (b *SharedBackend) GetFullBlock(ctx context.Context, id BlockRef) (*Block, error) {
	reply := make(chan fullBlockReply, 1)
	b.send(getFullBlockReq{id: id, reply: reply})
	r, err := waitReply(ctx, b.blockingMode, reply)
	if err != nil {
		return nil, err
	}
	return r.block, r.err
}

// GetTransaction fetches the transaction identified by hash, uncached,
// every call.
func (b *SharedBackend) GetTransaction(ctx context.Context, hash common.Hash) (*Transaction, error) {
	reply := make(chan transactionReply, 1)
	b.send(getTransactionReq{hash: hash, reply: reply})
	r, err := waitReply(ctx, b.blockingMode, reply)
	if err != nil {
		return nil, err
	}
	return r.tx, r.err
}

// SetPinnedBlock changes the block the tiered source policy pins future
// fetches to. It is fire-and-forget and never invalidates what is already
// cached: entries fetched under the old pin remain exactly as they were,
// by design (see SPEC_FULL.md's Design Notes).
func (b *SharedBackend) SetPinnedBlock(block BlockRef) {
	b.send(setPinnedBlockReq{block: block})
}

// BulkUpdateAccounts installs pre-fetched account records directly into
// the cache, fire-and-forget, for callers seeding state out of band (e.g.
// replaying a prior trace).
func (b *SharedBackend) BulkUpdateAccounts(data map[common.Address]statecache.AccountRecord) {
	b.send(bulkUpdateAccountsReq{data: data})
}

// BulkUpdateStorage installs pre-fetched storage slots directly into the
// cache, fire-and-forget.
func (b *SharedBackend) BulkUpdateStorage(data map[common.Address]map[common.Hash]uint256.Int) {
	b.send(bulkUpdateStorageReq{data: data})
}

// BulkUpdateBlockHashes installs pre-fetched block hashes directly into
// the cache, fire-and-forget.
func (b *SharedBackend) BulkUpdateBlockHashes(data map[uint64]common.Hash) {
	b.send(bulkUpdateBlockHashesReq{data: data})
}

// AccountsLen, StorageLen, and BlockHashesLen report the number of
// entries currently cached, for introspection and tests. They read the
// store directly rather than round-tripping through the handler: the
// store's own locks make that safe from any goroutine.
func (b *SharedBackend) AccountsLen() int    { return b.cache.Store().Accounts().Len() }
func (b *SharedBackend) StorageLen() int     { return b.cache.Store().Storage().Len() }
func (b *SharedBackend) BlockHashesLen() int { return b.cache.Store().BlockHashes().Len() }

// FlushCache writes the cache to its configured path, if any, unless
// nothing has changed since the previous successful flush.
func (b *SharedBackend) FlushCache() error { return b.cache.Flush() }

// FlushCacheTo writes the cache to an explicit path unconditionally.
func (b *SharedBackend) FlushCacheTo(path string) error { return b.cache.FlushTo(path) }

// DoAnyRequest submits an opaque unit of work to run on the backend event
// loop's goroutine pool, returning whatever value fn produces. It is the
// escape hatch for request kinds SharedBackend does not expose a typed
// method for, mirroring the original's AnyRequest/WrappedAnyRequest path
// without needing an equivalent boxed-trait-object type: fn is already a
// type-erased closure.
func DoAnyRequest[T any](ctx context.Context, b *SharedBackend, mode BlockingMode, fn func(ctx context.Context) (T, error)) (T, error) {
	reply := make(chan anyRequestResult[T], 1)
	b.send(opaqueReq{run: func() {
		v, err := fn(ctx)
		if err != nil {
			err = &AnyRequestError{Cause: err}
		}
		reply <- anyRequestResult[T]{value: v, err: err}
	}})
	r, err := waitReply(ctx, mode, reply)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.value, r.err
}

type anyRequestResult[T any] struct {
	value T
	err   error
}
