package forkdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidquant/evm-fork-db/common"
)

var testAddr = common.HexToAddress("0x00000000000000000000000000000000000001")

func TestBasicFetchesAndCaches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	info, err := backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Nonce)

	assert.EqualValues(t, 1, provider.balanceCalls.Load())
	assert.EqualValues(t, 1, backend.AccountsLen())

	_, err = backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 1, provider.balanceCalls.Load(), "second call must be served from cache")
}

func TestStorageFetchesAndCaches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.storage = *uint256.NewInt(123)
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	slot := common.HexToHash("0x01")
	value, err := backend.Storage(context.Background(), testAddr, slot)
	require.NoError(t, err)
	assert.EqualValues(t, 123, value.Uint64())

	assert.EqualValues(t, 1, provider.storageCalls.Load())
	assert.EqualValues(t, 1, backend.StorageLen())

	value, err = backend.Storage(context.Background(), testAddr, slot)
	require.NoError(t, err)
	assert.EqualValues(t, 123, value.Uint64())
	assert.EqualValues(t, 1, provider.storageCalls.Load(), "second call must be served from cache")
}

func TestFailedBasicFetchIsNotCachedAndRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.err = errors.New("remote unavailable")
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	_, err := backend.Basic(context.Background(), testAddr)
	require.Error(t, err)
	var accountErr *GetAccountError
	assert.ErrorAs(t, err, &accountErr)
	assert.EqualValues(t, 0, backend.AccountsLen(), "a failed fetch must not be written to the cache")

	provider.err = nil
	info, err := backend.Basic(context.Background(), testAddr)
	require.NoError(t, err, "the next request must retry from scratch instead of replaying the old failure")
	assert.EqualValues(t, 7, info.Nonce)
	assert.EqualValues(t, 1, backend.AccountsLen())
}

func TestFailedStorageFetchIsNotCachedAndRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.storage = *uint256.NewInt(123)
	provider.err = errors.New("remote unavailable")
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	slot := common.HexToHash("0x01")
	_, err := backend.Storage(context.Background(), testAddr, slot)
	require.Error(t, err)
	var storageErr *GetStorageError
	assert.ErrorAs(t, err, &storageErr)
	assert.EqualValues(t, 0, backend.StorageLen(), "a failed fetch must not be written to the cache")

	provider.err = nil
	value, err := backend.Storage(context.Background(), testAddr, slot)
	require.NoError(t, err, "the next request must retry from scratch instead of replaying the old failure")
	assert.EqualValues(t, 123, value.Uint64())
	assert.EqualValues(t, 1, backend.StorageLen())
}

func TestConcurrentFailedBasicCallsAllShareTheSameError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.delay = 50 * time.Millisecond
	provider.err = errors.New("remote unavailable")
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := backend.Basic(context.Background(), testAddr)
			var accountErr *GetAccountError
			assert.ErrorAs(t, err, &accountErr)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, provider.balanceCalls.Load(), "coalesced listeners must share one failed fetch, not retry individually")
}

func TestConcurrentBasicCallsCoalesceIntoOneFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.delay = 50 * time.Millisecond
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := backend.Basic(context.Background(), testAddr)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, provider.balanceCalls.Load(), "concurrent identical requests must coalesce into one fetch")
}

func TestLocalArchiveTriedBeforeRemote(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	local := &fakeLocalArchive{sp: &fakeStateProvider{balance: mustUint256(55), nonce: 3, found: true}}
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{Local: local})
	defer backend.Close()

	info, err := backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.Nonce)
	assert.EqualValues(t, 0, provider.balanceCalls.Load(), "local archive hit must not fall through to the remote")
}

func TestRemoteFallbackWhenLocalArchiveErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	local := &fakeLocalArchive{sp: &fakeStateProvider{err: errFakeLocalArchiveDown}}
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{Local: local})
	defer backend.Close()

	info, err := backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Nonce, "must have come from the remote provider's fixture value")
	assert.EqualValues(t, 1, provider.balanceCalls.Load())
}

func TestSetPinnedBlockDoesNotInvalidateCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	_, err := backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 1, provider.balanceCalls.Load())

	backend.SetPinnedBlock(BlockRefByNumber(20))
	time.Sleep(20 * time.Millisecond) // let the fire-and-forget pin change land

	_, err = backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 1, provider.balanceCalls.Load(), "changing the pin must not invalidate what is already cached")
}

func TestBlockHashNotFoundCachesEmptySentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider() // no block 999 configured
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	hash, err := backend.BlockHash(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, common.EmptyHashSentinel, hash)
	assert.EqualValues(t, 1, provider.blockCalls.Load())

	hash, err = backend.BlockHash(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, common.EmptyHashSentinel, hash)
	assert.EqualValues(t, 1, provider.blockCalls.Load(), "second lookup must be served from cache, not refetched")
}

func TestCloneSharesStateAndRefcountsClose(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{CachePath: dir + "/cache.toml"})
	clone := backend.Clone()

	_, err := backend.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 1, clone.AccountsLen(), "clone must observe writes made through the original handle")

	backend.Close()
	// the clone is still live, so the cache must not have flushed yet.
	_, statErr := os.Stat(dir + "/cache.toml")
	assert.Error(t, statErr)

	clone.Close()
	_, statErr = os.Stat(dir + "/cache.toml")
	assert.NoError(t, statErr, "last Close() must flush the cache")
}

func TestConcurrentGetFullBlockCallsCoalesceIntoOneFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.delay = 50 * time.Millisecond
	provider.blocks[10] = &Block{Number: 10}
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			block, err := backend.GetFullBlock(context.Background(), BlockRefByNumber(10))
			assert.NoError(t, err)
			assert.EqualValues(t, 10, block.Number)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, provider.fullBlockCalls.Load(), "concurrent identical full-block requests must coalesce into one fetch")
}

func TestDoAnyRequestRunsOnEventLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	backend := Open(ctx, provider, BlockRefByNumber(10), Options{})
	defer backend.Close()

	result, err := DoAnyRequest(context.Background(), backend, BlockingModeDefault, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
