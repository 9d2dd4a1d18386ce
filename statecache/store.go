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

// Package statecache implements the shared, process-local, concurrently
// readable store backing a forked chain's account/storage/block-hash
// state. It is read by many goroutines and written by the backend's
// single event-loop goroutine (plus occasional bulk-update commands),
// so each of its three maps is protected by its own sync.RWMutex rather
// than one coarse lock, matching the teacher's convention of one lock
// per logical table (erigon-lib/kv/tables.go documents tables the same
// way: independent, narrowly-scoped records).
package statecache

import (
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
)

// AccountRecord is the on-disk/in-memory shape of a cached account: enough
// to reconstruct forkdb.AccountInfo without importing the forkdb package
// (statecache has no business depending on its own consumer).
type AccountRecord struct {
	Nonce    uint64
	Balance  *uint256.Int
	Code     []byte
	CodeHash common.Hash
}

// Clone returns a value no caller can mutate through a shared cache entry.
func (a AccountRecord) Clone() AccountRecord {
	var balance *uint256.Int
	if a.Balance != nil {
		balance = new(uint256.Int).Set(a.Balance)
	}
	var code []byte
	if a.Code != nil {
		code = append([]byte(nil), a.Code...)
	}
	return AccountRecord{Nonce: a.Nonce, Balance: balance, Code: code, CodeHash: a.CodeHash}
}

// AccountMap is a read-write-locked address to account table.
type AccountMap struct {
	mu      sync.RWMutex
	m       map[common.Address]AccountRecord
	version *atomic.Int64
}

func newAccountMap(version *atomic.Int64) *AccountMap {
	return &AccountMap{m: make(map[common.Address]AccountRecord), version: version}
}

// Get returns the cached record for addr, if any.
func (a *AccountMap) Get(addr common.Address) (AccountRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.m[addr]
	return v, ok
}

// Set inserts or overwrites the record for addr.
func (a *AccountMap) Set(addr common.Address, rec AccountRecord) {
	a.mu.Lock()
	a.m[addr] = rec
	a.mu.Unlock()
	a.version.Add(1)
}

// SetMany inserts or overwrites many records under a single exclusive lock,
// for the BulkUpdateAccounts command.
func (a *AccountMap) SetMany(recs map[common.Address]AccountRecord) {
	a.mu.Lock()
	for addr, rec := range recs {
		a.m[addr] = rec
	}
	a.mu.Unlock()
	a.version.Add(1)
}

// Len returns the number of cached accounts.
func (a *AccountMap) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.m)
}

// Snapshot returns a shallow copy of the table under a single read lock,
// consumed by flush so a concurrent write cannot be observed half-applied.
func (a *AccountMap) Snapshot() map[common.Address]AccountRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[common.Address]AccountRecord, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}

// StorageMap is a read-write-locked address to (slot to value) table. Per
// address slot maps are allocated lazily on first write.
type StorageMap struct {
	mu      sync.RWMutex
	m       map[common.Address]map[common.Hash]uint256.Int
	version *atomic.Int64
}

func newStorageMap(version *atomic.Int64) *StorageMap {
	return &StorageMap{m: make(map[common.Address]map[common.Hash]uint256.Int), version: version}
}

// Get returns the value at (addr, slot); missing entries are semantically
// zero, reported via ok=false so the caller can distinguish "cache miss,
// fetch it" from "cached zero".
func (s *StorageMap) Get(addr common.Address, slot common.Hash) (uint256.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots, ok := s.m[addr]
	if !ok {
		return uint256.Int{}, false
	}
	v, ok := slots[slot]
	return v, ok
}

// Set inserts or overwrites the value at (addr, slot), allocating the
// per-address map on first write.
func (s *StorageMap) Set(addr common.Address, slot common.Hash, value uint256.Int) {
	s.mu.Lock()
	slots, ok := s.m[addr]
	if !ok {
		slots = make(map[common.Hash]uint256.Int)
		s.m[addr] = slots
	}
	slots[slot] = value
	s.mu.Unlock()
	s.version.Add(1)
}

// SetMany inserts or overwrites many (addr, slot) -> value entries under a
// single exclusive lock, for the BulkUpdateStorage command. data is keyed
// by address then slot, matching the wire/command shape.
func (s *StorageMap) SetMany(data map[common.Address]map[common.Hash]uint256.Int) {
	s.mu.Lock()
	for addr, slots := range data {
		existing, ok := s.m[addr]
		if !ok {
			existing = make(map[common.Hash]uint256.Int, len(slots))
			s.m[addr] = existing
		}
		for slot, v := range slots {
			existing[slot] = v
		}
	}
	s.mu.Unlock()
	s.version.Add(1)
}

// Len returns the number of addresses with at least one cached slot.
func (s *StorageMap) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Snapshot returns a deep-enough copy (per-address maps copied too) under a
// single read lock.
func (s *StorageMap) Snapshot() map[common.Address]map[common.Hash]uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[common.Address]map[common.Hash]uint256.Int, len(s.m))
	for addr, slots := range s.m {
		cp := make(map[common.Hash]uint256.Int, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		out[addr] = cp
	}
	return out
}

// BlockHashMap is a read-write-locked block number to hash table. A query
// that the remote answered "no such block" is stored here as
// common.EmptyHashSentinel, not omitted, so it is indistinguishable from a
// cache hit on replay.
type BlockHashMap struct {
	mu      sync.RWMutex
	m       map[uint64]common.Hash
	version *atomic.Int64
}

func newBlockHashMap(version *atomic.Int64) *BlockHashMap {
	return &BlockHashMap{m: make(map[uint64]common.Hash), version: version}
}

func (b *BlockHashMap) Get(number uint64) (common.Hash, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[number]
	return v, ok
}

func (b *BlockHashMap) Set(number uint64, hash common.Hash) {
	b.mu.Lock()
	b.m[number] = hash
	b.mu.Unlock()
	b.version.Add(1)
}

func (b *BlockHashMap) SetMany(data map[uint64]common.Hash) {
	b.mu.Lock()
	for number, hash := range data {
		b.m[number] = hash
	}
	b.mu.Unlock()
	b.version.Add(1)
}

func (b *BlockHashMap) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

func (b *BlockHashMap) Snapshot() map[uint64]common.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[uint64]common.Hash, len(b.m))
	for k, v := range b.m {
		out[k] = v
	}
	return out
}

// Store is the Shared Memory Store: the three independently-lockable maps
// backing a forked chain's view of account, storage, and block-hash state.
// It grows monotonically for the lifetime of a fork; nothing ever evicts
// from it (see doc.go).
type Store struct {
	version     atomic.Int64
	accounts    *AccountMap
	storage     *StorageMap
	blockHashes *BlockHashMap
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.accounts = newAccountMap(&s.version)
	s.storage = newStorageMap(&s.version)
	s.blockHashes = newBlockHashMap(&s.version)
	return s
}

func (s *Store) Accounts() *AccountMap      { return s.accounts }
func (s *Store) Storage() *StorageMap       { return s.storage }
func (s *Store) BlockHashes() *BlockHashMap { return s.blockHashes }

// Version returns a monotonically increasing counter bumped by every write
// across all three maps. Flush uses it to make explicit Flush() calls a
// no-op when nothing changed since the last successful flush.
func (s *Store) Version() int64 { return s.version.Load() }
