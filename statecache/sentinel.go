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
	"sync/atomic"

	"github.com/erigontech/erigon-lib/log/v3"
)

// FlushSentinel guarantees a Cache is flushed exactly once, at the moment
// the last reference to it is released, without any one caller having to
// remember to flush explicitly. Go has no destructors, so "last SharedBackend
// dropped" becomes an explicit, ref-counted Release(): every clone of a
// SharedBackend holds a pointer to the same sentinel and calls Release()
// from its Close().
type FlushSentinel struct {
	cache    *Cache
	refs     atomic.Int64
	released atomic.Bool
	logger   log.Logger
	onZero   func()
}

// OnZero registers fn to run once, immediately after the flush triggered
// by the last Release(). It lets a caller tie other last-reference
// cleanup (stopping the backend event loop) to the same moment without
// this package needing to know anything about what a backend is.
func (s *FlushSentinel) OnZero(fn func()) { s.onZero = fn }

// NewFlushSentinel returns a sentinel with one outstanding reference,
// representing the SharedBackend that created it.
func NewFlushSentinel(cache *Cache) *FlushSentinel {
	s := &FlushSentinel{cache: cache, logger: log.New("component", "flushsentinel")}
	s.refs.Store(1)
	return s
}

// Acquire adds a reference, for a cloned SharedBackend.
func (s *FlushSentinel) Acquire() { s.refs.Add(1) }

// Release drops a reference. When the last reference is released, the
// underlying cache is flushed exactly once.
func (s *FlushSentinel) Release() {
	if s.refs.Add(-1) > 0 {
		return
	}
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if err := s.cache.Flush(); err != nil {
		s.logger.Warn("flush on last close failed", "err", err)
	}
	if s.onZero != nil {
		s.onZero()
	}
}

// Cache returns the wrapped cache, for introspection (accounts_len, etc.)
// and explicit FlushCache()/FlushCacheTo() calls.
func (s *FlushSentinel) Cache() *Cache { return s.cache }
