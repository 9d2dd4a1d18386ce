package statecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/internal/fuzzclock"
)

func TestFlushIsNoOpWithoutIntervalWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.toml")

	store := New()
	store.Accounts().Set(addrA, AccountRecord{Nonce: 1, Balance: uint256.NewInt(1)})

	clock := fuzzclock.NewSimulated(time.Unix(1000, 0))
	cache := NewCache(store, path, DefaultMeta())
	cache.WithClock(clock)

	require.NoError(t, cache.Flush())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	require.NoError(t, cache.Flush())
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second, "flush with no intervening writes must not rewrite the file")
}

func TestFlushRewritesAfterAWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.toml")

	store := New()
	clock := fuzzclock.NewSimulated(time.Unix(1000, 0))
	cache := NewCache(store, path, DefaultMeta())
	cache.WithClock(clock)

	require.NoError(t, cache.Flush())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	store.Accounts().Set(addrA, AccountRecord{Nonce: 9, Balance: uint256.NewInt(9)})
	require.NoError(t, cache.Flush())
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestFlushToAlwaysWritesRegardlessOfVersion(t *testing.T) {
	dir := t.TempDir()
	store := New()
	cache := NewCache(store, "", DefaultMeta())

	pathA := filepath.Join(dir, "a.toml")
	pathB := filepath.Join(dir, "b.toml")
	require.NoError(t, cache.FlushTo(pathA))
	require.NoError(t, cache.FlushTo(pathB))

	_, err := os.Stat(pathA)
	assert.NoError(t, err)
	_, err = os.Stat(pathB)
	assert.NoError(t, err)
}

func TestLoadRoundTripsAccountsStorageAndBlockHashes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.toml")

	store := New()
	store.Accounts().Set(addrA, AccountRecord{
		Nonce:    7,
		Balance:  uint256.NewInt(12345),
		Code:     []byte{0x60, 0x01},
		CodeHash: common.Keccak256Hash([]byte{0x60, 0x01}),
	})
	store.Storage().Set(addrA, slotA, *uint256.NewInt(42))
	store.BlockHashes().Set(10, common.HexToHash("0xdead"))

	meta := DefaultMeta()
	meta.Chain = BlockEnv{ChainID: 1, BlockNumber: 10}
	cache := NewCache(store, path, meta)
	require.NoError(t, cache.Flush())

	loaded, loadedMeta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loadedMeta.Chain.ChainID)

	rec, ok := loaded.Accounts().Get(addrA)
	require.True(t, ok)
	assert.EqualValues(t, 7, rec.Nonce)
	assert.EqualValues(t, 12345, rec.Balance.Uint64())
	assert.Equal(t, []byte{0x60, 0x01}, rec.Code)

	v, ok := loaded.Storage().Get(addrA, slotA)
	require.True(t, ok)
	assert.EqualValues(t, 42, v.Uint64())

	hash, ok := loaded.BlockHashes().Get(10)
	require.True(t, ok)
	assert.Equal(t, common.HexToHash("0xdead"), hash)
}

func TestFlushWithZstSuffixRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.toml.zst")

	store := New()
	store.Accounts().Set(addrA, AccountRecord{Nonce: 1, Balance: uint256.NewInt(1)})
	cache := NewCache(store, path, DefaultMeta())
	require.NoError(t, cache.Flush())

	loaded, _, err := Load(path)
	require.NoError(t, err)
	rec, ok := loaded.Accounts().Get(addrA)
	require.True(t, ok)
	assert.EqualValues(t, 1, rec.Nonce)
}
