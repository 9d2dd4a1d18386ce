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

// Package common holds the small fixed-size value types shared across the
// fork backend: addresses, hashes, and their hex encodings.
package common

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the expected length of an Ethereum account address.
const AddressLength = 20

// HashLength is the expected length of a keccak256 digest.
const HashLength = 32

// Address represents the 20-byte address of an Ethereum account.
type Address [AddressLength]byte

// Hash represents a 32-byte keccak256 digest.
type Hash [HashLength]byte

// BytesToAddress right-aligns b into an Address, truncating from the left
// if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// BytesToHash right-aligns b into a Hash, truncating from the left if b is
// longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (a Address) Bytes() []byte { return a[:] }
func (h Hash) Bytes() []byte    { return h[:] }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }
func (h Hash) Hex() string    { return "0x" + hex.EncodeToString(h[:]) }

func (a Address) String() string { return a.Hex() }
func (h Hash) String() string    { return h.Hex() }

// MarshalText implements encoding.TextMarshaler so Address round-trips
// through the TOML/JSON cache format as a 0x-prefixed hex string.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	b, err := decodeHexPrefixed(text, AddressLength)
	if err != nil {
		return fmt.Errorf("common: invalid address %q: %w", text, err)
	}
	copy(a[:], b)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := decodeHexPrefixed(text, HashLength)
	if err != nil {
		return fmt.Errorf("common: invalid hash %q: %w", text, err)
	}
	copy(h[:], b)
	return nil
}

func decodeHexPrefixed(text []byte, wantLen int) ([]byte, error) {
	s := string(text)
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}

// HexToAddress parses a 0x-prefixed (or bare) hex string into an Address.
func HexToAddress(s string) Address { return BytesToAddress(fromHex(s)) }

// HexToHash parses a 0x-prefixed (or bare) hex string into a Hash.
func HexToHash(s string) Hash { return BytesToHash(fromHex(s)) }

func fromHex(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}
