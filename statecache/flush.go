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

package statecache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/internal/fuzzclock"
)

// zstCompress and zstDecompress wrap a cache document whenever its path
// ends in ".zst", the convention the rest of the ecosystem uses for
// snapshot files that are expected to grow large once a fork has touched
// many thousands of accounts.
func zstCompress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("statecache: create zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("statecache: create zstd reader: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

func hexDecode(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

// diskDocument is the on-disk shape of the cache: one record per top-level
// field, matching the three-section document format the backend commits
// to (accounts / storage / block_hashes), plus its meta tag.
type diskDocument struct {
	Meta        Meta                     `toml:"meta"`
	Accounts    map[string]diskAccount   `toml:"accounts"`
	Storage     map[string]diskSlots     `toml:"storage"`
	BlockHashes map[string]string        `toml:"block_hashes"`
}

type diskAccount struct {
	Nonce    uint64 `toml:"nonce"`
	Balance  string `toml:"balance"` // decimal
	Code     string `toml:"code"`    // 0x-prefixed hex
	CodeHash string `toml:"code_hash"`
}

type diskSlots map[string]string // slot hex -> value hex

// Cache pairs a Store with the path it should flush to (if any) and the
// metadata stamped on each flush. It is the thing a flush sentinel closes
// over, and what callers ask for an explicit Flush()/FlushTo().
type Cache struct {
	store *Store
	meta  Meta

	mu              sync.Mutex
	path            string
	lastFlushedVer  int64
	hasFlushedOnce  bool
	logger          log.Logger
	clock           fuzzclock.Clock
}

// NewCache wraps store with an (optional) flush path. path == "" disables
// FlushCache()/Flush() (they become no-ops); FlushTo still works with an
// explicit path.
func NewCache(store *Store, path string, meta Meta) *Cache {
	return &Cache{store: store, path: path, meta: meta, lastFlushedVer: -1, logger: log.New("component", "statecache"), clock: fuzzclock.System{}}
}

// WithClock overrides the clock used to stamp Meta.FlushedAtUnix on every
// write, for tests that need deterministic, orderable timestamps instead
// of the wall clock.
func (c *Cache) WithClock(clock fuzzclock.Clock) *Cache {
	c.clock = clock
	return c
}

func (c *Cache) Store() *Store { return c.store }

// Flush serializes the store to the configured path, if any. It is a
// no-op if no writes have landed in the store since the previous
// successful Flush call (FlushTo does not count), observable by the file's mtime staying
// unchanged (property 7 of the testable properties).
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return nil
	}
	return c.flushToLocked(c.path)
}

// FlushTo serializes the store to an explicit path, always writing
// regardless of the dirty-since-last-flush tracking Flush() honors.
func (c *Cache) FlushTo(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeSnapshot(path)
}

func (c *Cache) flushToLocked(path string) error {
	ver := c.store.Version()
	if c.hasFlushedOnce && ver == c.lastFlushedVer {
		return nil
	}
	if err := c.writeSnapshot(path); err != nil {
		return err
	}
	c.lastFlushedVer = ver
	c.hasFlushedOnce = true
	return nil
}

func (c *Cache) writeSnapshot(path string) error {
	c.meta.FlushedAtUnix = c.clock.Now().Unix()
	doc := diskDocument{
		Meta:        c.meta,
		Accounts:    make(map[string]diskAccount),
		Storage:     make(map[string]diskSlots),
		BlockHashes: make(map[string]string),
	}
	for addr, rec := range c.store.Accounts().Snapshot() {
		bal := "0"
		if rec.Balance != nil {
			bal = rec.Balance.Dec()
		}
		doc.Accounts[addr.Hex()] = diskAccount{
			Nonce:    rec.Nonce,
			Balance:  bal,
			Code:     "0x" + hexEncode(rec.Code),
			CodeHash: rec.CodeHash.Hex(),
		}
	}
	for addr, slots := range c.store.Storage().Snapshot() {
		s := make(diskSlots, len(slots))
		for slot, v := range slots {
			s[slot.Hex()] = v.Hex()
		}
		doc.Storage[addr.Hex()] = s
	}
	for number, hash := range c.store.BlockHashes().Snapshot() {
		doc.BlockHashes[fmt.Sprintf("%d", number)] = hash.Hex()
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("statecache: marshal cache: %w", err)
	}
	if strings.HasSuffix(path, ".zst") {
		data, err = zstCompress(data)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("statecache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("statecache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statecache: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statecache: rename temp file into place: %w", err)
	}
	c.logger.Debug("flushed state cache", "path", path, "accounts", len(doc.Accounts), "storage", len(doc.Storage), "block_hashes", len(doc.BlockHashes))
	return nil
}

// Load reads a cache document from path into a fresh Store. A meta
// mismatch (schema version, chain id) is not rejected — it's surfaced to
// the caller via the returned Meta for them to decide, per the backend's
// policy of treating cache meta as opaque.
func Load(path string) (*Store, Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("statecache: read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".zst") {
		data, err = zstDecompress(data)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("statecache: decompress %s: %w", path, err)
		}
	}
	var doc diskDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, Meta{}, fmt.Errorf("statecache: unmarshal %s: %w", path, err)
	}

	store := New()
	for hexAddr, rec := range doc.Accounts {
		addr := common.HexToAddress(hexAddr)
		balance, ok := new(uint256.Int).SetString(rec.Balance, 10)
		if !ok {
			return nil, Meta{}, fmt.Errorf("statecache: bad balance %q for %s", rec.Balance, hexAddr)
		}
		store.Accounts().Set(addr, AccountRecord{
			Nonce:    rec.Nonce,
			Balance:  balance,
			Code:     hexDecode(rec.Code),
			CodeHash: common.HexToHash(rec.CodeHash),
		})
	}
	for hexAddr, slots := range doc.Storage {
		addr := common.HexToAddress(hexAddr)
		for hexSlot, hexVal := range slots {
			slot := common.HexToHash(hexSlot)
			var v uint256.Int
			v.SetBytes(hexDecode(hexVal))
			store.Storage().Set(addr, slot, v)
		}
	}
	for numStr, hexHash := range doc.BlockHashes {
		var number uint64
		if _, err := fmt.Sscanf(numStr, "%d", &number); err != nil {
			return nil, Meta{}, fmt.Errorf("statecache: bad block number key %q: %w", numStr, err)
		}
		store.BlockHashes().Set(number, common.HexToHash(hexHash))
	}
	return store, doc.Meta, nil
}
