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
	"strings"
	"sync"

	"github.com/erigontech/erigon-lib/log/v3"
)

// NonArchiveNodeWarning is logged at most once per distinct remote error
// message when a failure looks like it came from a non-archive RPC
// endpoint rejecting a historical-state request, rather than a genuine
// transport or protocol error.
const NonArchiveNodeWarning = "remote endpoint may not be an archive node: historical state requests beyond its retention window return errors that look like this"

// archiveNodeErrorSubstrings lists the phrasing real providers use when a
// full/archive node is required but a pruned node answered instead. These
// are observed strings, not a protocol guarantee, hence the "possibly" in
// the predicate name.
var archiveNodeErrorSubstrings = []string{
	"missing trie node",
	"state not available",
	"not found after pruning",
	"historical state not available",
	"pruned",
}

// IsPossiblyNonArchiveNodeError reports whether err's message matches a
// known pattern for "this RPC endpoint does not retain the history we
// asked for". It is a heuristic, not a typed error, because providers do
// not agree on an error code for this condition.
func IsPossiblyNonArchiveNodeError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range archiveNodeErrorSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// archiveWarner logs NonArchiveNodeWarning at most once per distinct
// underlying cause, so a sustained run against a pruned node does not
// flood the log with the same diagnosis on every miss.
type archiveWarner struct {
	mu     sync.Mutex
	warned map[string]struct{}
	logger log.Logger
}

func newArchiveWarner(logger log.Logger) *archiveWarner {
	return &archiveWarner{warned: make(map[string]struct{}), logger: logger}
}

func (w *archiveWarner) maybeWarn(err error) {
	if !IsPossiblyNonArchiveNodeError(err) {
		return
	}
	key := err.Error()
	w.mu.Lock()
	_, already := w.warned[key]
	if !already {
		w.warned[key] = struct{}{}
	}
	w.mu.Unlock()
	if !already {
		w.logger.Warn(NonArchiveNodeWarning, "err", err)
	}
}
