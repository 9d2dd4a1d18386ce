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

// Package forkdb implements a forking state backend for EVM simulation: a
// synchronous-looking, cheaply-cloneable SharedBackend handle backed by a
// single event-loop goroutine that coalesces concurrent duplicate fetches
// and serves everything it has already resolved out of statecache.Store.
//
// Callers that miss the cache are coalesced behind a single outbound
// fetch per key; the fetch tries a configured LocalArchive at the pinned
// block number first and falls back to a remote Provider on error. The
// pinned block can change at any time without invalidating entries
// already in the cache — that is an intentional property of this design,
// not an oversight, and callers that need a fresh view after repinning
// must open a new backend.
package forkdb
