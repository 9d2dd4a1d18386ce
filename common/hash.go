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

package common

import "golang.org/x/crypto/sha3"

// Keccak256Hash returns the keccak256 digest of data as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// EmptyCodeHash is keccak256(""), the code hash of an account with no code.
var EmptyCodeHash = Keccak256Hash(nil)

// EmptyHashSentinel is the well-known empty-byte-string hash, reused as the
// "no such block" marker cached in place of a missing block hash.
var EmptyHashSentinel = EmptyCodeHash
