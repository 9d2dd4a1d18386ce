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

// Package localarchive implements forkdb.LocalArchive over snapshots held
// entirely in memory, for embedding a node's own historical state
// directly into a fork backend instead of always round-tripping to a
// remote provider. Each snapshot is the full account/storage state as of
// a given block number; a lookup at a number with no exact snapshot
// resolves to the most recent snapshot at or before it, the same
// "as-of" semantics a temporal key-value store gives for free.
package localarchive

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/forkdb"
)

// ErrPruned reports that the requested block number predates every
// snapshot retained by this archive. It is the local equivalent of a
// non-archive remote node rejecting a historical query. forkdb falls back
// to the remote provider on any HistoryByBlockNumber error, this one
// included, without surfacing it to the caller.
var ErrPruned = errors.New("old data not available due to pruning")

// AccountData is one account's state as of a snapshot.
type AccountData struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
}

type snapshot struct {
	number   uint64
	accounts map[common.Address]AccountData
	storage  map[common.Address]map[common.Hash]uint256.Int
}

// Archive holds every snapshot ever put into it; nothing is pruned unless
// Prune is called explicitly, so by default it behaves like a true
// archive node.
type Archive struct {
	mu          sync.RWMutex
	snapshots   map[uint64]*snapshot
	sortedNums  []uint64
	earliest    uint64
	hasEarliest bool
	codeCache   *lru.Cache[common.Hash, []byte]
	trace       bool
	logger      log.Logger
}

// New returns an empty Archive. codeCacheSize bounds the number of
// distinct code blobs kept decoded in memory, keyed by code hash, since
// many accounts across many snapshots often share identical bytecode.
func New(codeCacheSize int) *Archive {
	cache, _ := lru.New[common.Hash, []byte](codeCacheSize)
	return &Archive{
		snapshots: make(map[uint64]*snapshot),
		codeCache: cache,
		logger:    log.New("component", "localarchive"),
	}
}

// SetTrace toggles per-lookup trace logging, matching the verbose
// opt-in tracing conventions of the state readers it was adapted from.
func (a *Archive) SetTrace(trace bool) { a.trace = trace }

// EarliestRetainedBlock reports the lowest block number among the
// snapshots currently retained (Prune moves it up), or ok=false if the
// archive holds no snapshots.
func (a *Archive) EarliestRetainedBlock() (uint64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.earliest, a.hasEarliest
}

// PutBlock installs (or overwrites) the snapshot at number.
func (a *Archive) PutBlock(number uint64, accounts map[common.Address]AccountData, storage map[common.Address]map[common.Hash]uint256.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.snapshots[number]; !exists {
		a.sortedNums = append(a.sortedNums, number)
		sort.Slice(a.sortedNums, func(i, j int) bool { return a.sortedNums[i] < a.sortedNums[j] })
	}
	if !a.hasEarliest || number < a.earliest {
		a.earliest = number
		a.hasEarliest = true
	}
	a.snapshots[number] = &snapshot{number: number, accounts: accounts, storage: storage}
}

// Prune discards every snapshot strictly below number, simulating a node
// that only retains recent history. After Prune, HistoryByBlockNumber for
// an older number returns ErrPruned instead of silently serving stale data.
func (a *Archive) Prune(number uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.sortedNums[:0]
	for _, n := range a.sortedNums {
		if n < number {
			delete(a.snapshots, n)
			continue
		}
		kept = append(kept, n)
	}
	a.sortedNums = kept
	a.hasEarliest = len(kept) > 0
	if a.hasEarliest {
		a.earliest = kept[0]
	}
}

// HistoryByBlockNumber resolves the most recent snapshot at or before
// number. It returns ErrPruned if number predates every retained
// snapshot, and a StateProvider backed by the empty archive (every
// lookup reports ok=false) if the archive has no snapshots at all.
func (a *Archive) HistoryByBlockNumber(number uint64) (forkdb.StateProvider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.hasEarliest {
		return &stateProviderView{archive: a, snap: nil}, nil
	}
	if number < a.earliest {
		return nil, fmt.Errorf("localarchive: block %d: %w", number, ErrPruned)
	}
	idx := sort.Search(len(a.sortedNums), func(i int) bool { return a.sortedNums[i] > number })
	if idx == 0 {
		return nil, fmt.Errorf("localarchive: block %d: %w", number, ErrPruned)
	}
	snap := a.snapshots[a.sortedNums[idx-1]]
	return &stateProviderView{archive: a, snap: snap}, nil
}

// stateProviderView answers point-in-time reads against one resolved
// snapshot (or no snapshot at all, for an archive with nothing loaded).
type stateProviderView struct {
	archive *Archive
	snap    *snapshot
}

func (v *stateProviderView) AccountBalance(addr common.Address) (*uint256.Int, bool, error) {
	acc, ok := v.lookup(addr)
	if !ok {
		return nil, false, nil
	}
	return acc.Balance, true, nil
}

func (v *stateProviderView) AccountNonce(addr common.Address) (uint64, bool, error) {
	acc, ok := v.lookup(addr)
	if !ok {
		return 0, false, nil
	}
	return acc.Nonce, true, nil
}

func (v *stateProviderView) AccountCode(addr common.Address) ([]byte, bool, error) {
	acc, ok := v.lookup(addr)
	if !ok {
		return nil, false, nil
	}
	if len(acc.Code) == 0 {
		return nil, true, nil
	}
	hash := common.Keccak256Hash(acc.Code)
	if cached, hit := v.archive.codeCache.Get(hash); hit {
		return cached, true, nil
	}
	v.archive.codeCache.Add(hash, acc.Code)
	return acc.Code, true, nil
}

func (v *stateProviderView) Storage(addr common.Address, slot common.Hash) (uint256.Int, bool, error) {
	if v.snap == nil {
		if v.archive.trace {
			v.archive.logger.Trace("ReadAccountStorage: no snapshot", "addr", addr, "slot", slot)
		}
		return uint256.Int{}, false, nil
	}
	slots, ok := v.snap.storage[addr]
	if !ok {
		return uint256.Int{}, false, nil
	}
	value, ok := slots[slot]
	return value, ok, nil
}

func (v *stateProviderView) lookup(addr common.Address) (AccountData, bool) {
	if v.snap == nil {
		if v.archive.trace {
			v.archive.logger.Trace("ReadAccountData: no snapshot", "addr", addr)
		}
		return AccountData{}, false
	}
	acc, ok := v.snap.accounts[addr]
	if v.archive.trace {
		v.archive.logger.Trace("ReadAccountData", "addr", addr, "block", v.snap.number, "found", ok)
	}
	return acc, ok
}

var _ forkdb.LocalArchive = (*Archive)(nil)
