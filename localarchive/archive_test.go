package localarchive

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidquant/evm-fork-db/common"
)

var addrA = common.HexToAddress("0x00000000000000000000000000000000000001")
var slotA = common.HexToHash("0x01")

func TestHistoryByBlockNumberResolvesMostRecentSnapshotAtOrBefore(t *testing.T) {
	archive := New(128)
	archive.PutBlock(10, map[common.Address]AccountData{addrA: {Balance: uint256.NewInt(1), Nonce: 1}}, nil)
	archive.PutBlock(20, map[common.Address]AccountData{addrA: {Balance: uint256.NewInt(2), Nonce: 2}}, nil)

	sp, err := archive.HistoryByBlockNumber(15)
	require.NoError(t, err)
	nonce, ok, err := sp.AccountNonce(addrA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, nonce, "block 15 must resolve to the snapshot at 10, not 20")

	sp, err = archive.HistoryByBlockNumber(25)
	require.NoError(t, err)
	nonce, _, _ = sp.AccountNonce(addrA)
	assert.EqualValues(t, 2, nonce)
}

func TestHistoryByBlockNumberBeforeEarliestIsPruned(t *testing.T) {
	archive := New(128)
	archive.PutBlock(100, map[common.Address]AccountData{}, nil)

	_, err := archive.HistoryByBlockNumber(50)
	assert.ErrorIs(t, err, ErrPruned)
}

func TestPruneDropsOldSnapshots(t *testing.T) {
	archive := New(128)
	archive.PutBlock(10, map[common.Address]AccountData{}, nil)
	archive.PutBlock(20, map[common.Address]AccountData{}, nil)

	archive.Prune(15)
	earliest, ok := archive.EarliestRetainedBlock()
	require.True(t, ok)
	assert.EqualValues(t, 20, earliest)

	_, err := archive.HistoryByBlockNumber(10)
	assert.ErrorIs(t, err, ErrPruned)
}

func TestAccountCodeIsServedFromCodeCache(t *testing.T) {
	archive := New(128)
	code := []byte{0x60, 0x01, 0x60, 0x02}
	archive.PutBlock(1, map[common.Address]AccountData{addrA: {Code: code}}, nil)

	sp, err := archive.HistoryByBlockNumber(1)
	require.NoError(t, err)

	got, ok, err := sp.AccountCode(addrA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, code, got)

	hash := common.Keccak256Hash(code)
	cached, hit := archive.codeCache.Get(hash)
	require.True(t, hit)
	assert.Equal(t, code, cached)
}

func TestStorageLookupMissingSlotReportsNotFound(t *testing.T) {
	archive := New(128)
	archive.PutBlock(1, nil, map[common.Address]map[common.Hash]uint256.Int{
		addrA: {slotA: *uint256.NewInt(9)},
	})

	sp, err := archive.HistoryByBlockNumber(1)
	require.NoError(t, err)

	v, ok, err := sp.Storage(addrA, slotA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 9, v.Uint64())

	_, ok, err = sp.Storage(addrA, common.HexToHash("0x99"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryByBlockNumberOnEmptyArchiveReportsNotFoundNotPruned(t *testing.T) {
	archive := New(128)
	sp, err := archive.HistoryByBlockNumber(1)
	require.NoError(t, err)
	_, ok, err := sp.AccountNonce(addrA)
	require.NoError(t, err)
	assert.False(t, ok)
}
