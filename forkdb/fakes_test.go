package forkdb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
)

// fakeProvider is a configurable test double for Provider: every method
// counts its calls (for coalescing assertions), optionally sleeps (to
// widen the window concurrent callers race into), and returns a
// pluggable error.
type fakeProvider struct {
	mu sync.Mutex

	delay time.Duration
	err   error

	balance *uint256.Int
	nonce   uint64
	code    []byte
	storage uint256.Int

	balanceCalls   atomic.Int64
	nonceCalls     atomic.Int64
	codeCalls      atomic.Int64
	storageCalls   atomic.Int64
	blockCalls     atomic.Int64
	fullBlockCalls atomic.Int64

	blocks map[uint64]*Block
	txs    map[common.Hash]*Transaction
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		balance: uint256.NewInt(100),
		nonce:   7,
		code:    []byte{0x60, 0x00},
		blocks:  make(map[uint64]*Block),
		txs:     make(map[common.Hash]*Transaction),
	}
}

func (f *fakeProvider) sleep() {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeProvider) BalanceAt(ctx context.Context, addr common.Address, block BlockRef) (*uint256.Int, error) {
	f.balanceCalls.Add(1)
	f.sleep()
	if f.err != nil {
		return nil, f.err
	}
	return f.balance, nil
}

func (f *fakeProvider) NonceAt(ctx context.Context, addr common.Address, block BlockRef) (uint64, error) {
	f.nonceCalls.Add(1)
	f.sleep()
	if f.err != nil {
		return 0, f.err
	}
	return f.nonce, nil
}

func (f *fakeProvider) CodeAt(ctx context.Context, addr common.Address, block BlockRef) ([]byte, error) {
	f.codeCalls.Add(1)
	f.sleep()
	if f.err != nil {
		return nil, f.err
	}
	return f.code, nil
}

func (f *fakeProvider) StorageAt(ctx context.Context, addr common.Address, slot common.Hash, block BlockRef) (uint256.Int, error) {
	f.storageCalls.Add(1)
	f.sleep()
	if f.err != nil {
		return uint256.Int{}, f.err
	}
	return f.storage, nil
}

func (f *fakeProvider) BlockByNumber(ctx context.Context, number uint64, hashesOnly bool) (*Block, error) {
	f.blockCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks[number], nil
}

func (f *fakeProvider) TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.txs[hash], nil
}

func (f *fakeProvider) FullBlockAt(ctx context.Context, id BlockRef) (*Block, error) {
	f.fullBlockCalls.Add(1)
	f.sleep()
	if f.err != nil {
		return nil, f.err
	}
	if n, ok := id.AsNumber(); ok {
		return f.blocks[n], nil
	}
	for _, b := range f.blocks {
		if b.Hash == id.Hash {
			return b, nil
		}
	}
	return nil, nil
}

// fakeStateProvider is a canned StateProvider for one pinned block.
type fakeStateProvider struct {
	balance *uint256.Int
	nonce   uint64
	code    []byte
	err     error
	found   bool
}

func (s *fakeStateProvider) AccountBalance(addr common.Address) (*uint256.Int, bool, error) {
	return s.balance, s.found, s.err
}

func (s *fakeStateProvider) AccountNonce(addr common.Address) (uint64, bool, error) {
	return s.nonce, s.found, s.err
}

func (s *fakeStateProvider) AccountCode(addr common.Address) ([]byte, bool, error) {
	return s.code, s.found, s.err
}

func (s *fakeStateProvider) Storage(addr common.Address, slot common.Hash) (uint256.Int, bool, error) {
	return uint256.Int{}, s.found, s.err
}

// fakeLocalArchive always hands back the same StateProvider, or an error.
type fakeLocalArchive struct {
	sp  StateProvider
	err error
}

func (a *fakeLocalArchive) HistoryByBlockNumber(number uint64) (StateProvider, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.sp, nil
}

var errFakeLocalArchiveDown = errors.New("fake local archive unavailable")

func mustUint256(v uint64) *uint256.Int { return uint256.NewInt(v) }
