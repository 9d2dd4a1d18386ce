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

// Package rpcprovider implements forkdb.Provider against a real Ethereum
// JSON-RPC endpoint, over plain HTTP(S) or a persistent WebSocket
// connection depending on the URL scheme passed to Dial.
package rpcprovider

import (
	"encoding/json"
	"fmt"

	"github.com/solidquant/evm-fork-db/forkdb"
)

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  []any           `json:"params"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonrpcError) Error() string {
	return fmt.Sprintf("rpcprovider: rpc error %d: %s", e.Code, e.Message)
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonrpcError   `json:"error"`
}

// blockTag renders a forkdb.BlockRef the way eth_* methods expect their
// "block" parameter: a quantity/tag for a number or "latest", or an
// EIP-1898 object when pinned by hash.
func blockTag(ref forkdb.BlockRef) any {
	switch ref.Kind {
	case forkdb.BlockRefNumber:
		return fmt.Sprintf("0x%x", ref.Number)
	case forkdb.BlockRefHash:
		return map[string]any{"blockHash": ref.Hash.Hex()}
	default:
		return "latest"
	}
}

func hexQuantity(n uint64) string { return fmt.Sprintf("0x%x", n) }
