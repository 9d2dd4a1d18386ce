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

package rpcprovider

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/forkdb"
)

type transport interface {
	call(ctx context.Context, method string, params []any) (json.RawMessage, error)
	close() error
}

// Client implements forkdb.Provider against a real endpoint. It is safe
// for concurrent use: forkdb's fetchAccountFromRemote joins three calls
// on the same Client through an errgroup.
type Client struct {
	t transport
}

// Dial opens a Client against url. An "http"/"https" scheme sends one
// POST request per call; "ws"/"wss" gets a single multiplexed connection.
func Dial(url string, timeout time.Duration) (*Client, error) {
	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		t, err := dialWS(url, timeout)
		if err != nil {
			return nil, err
		}
		return &Client{t: t}, nil
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return &Client{t: newHTTPTransport(url, timeout)}, nil
	default:
		return nil, fmt.Errorf("rpcprovider: unsupported url scheme: %s", url)
	}
}

func (c *Client) Close() error { return c.t.close() }

func (c *Client) BalanceAt(ctx context.Context, addr common.Address, block forkdb.BlockRef) (*uint256.Int, error) {
	raw, err := c.t.call(ctx, "eth_getBalance", []any{addr.Hex(), blockTag(block)})
	if err != nil {
		return nil, err
	}
	var hexVal string
	if err := json.Unmarshal(raw, &hexVal); err != nil {
		return nil, fmt.Errorf("rpcprovider: decode eth_getBalance result: %w", err)
	}
	v, err := uint256.FromHex(hexVal)
	if err != nil {
		return nil, fmt.Errorf("rpcprovider: parse balance %q: %w", hexVal, err)
	}
	return v, nil
}

func (c *Client) NonceAt(ctx context.Context, addr common.Address, block forkdb.BlockRef) (uint64, error) {
	raw, err := c.t.call(ctx, "eth_getTransactionCount", []any{addr.Hex(), blockTag(block)})
	if err != nil {
		return 0, err
	}
	return decodeHexUint(raw, "eth_getTransactionCount")
}

func (c *Client) CodeAt(ctx context.Context, addr common.Address, block forkdb.BlockRef) ([]byte, error) {
	raw, err := c.t.call(ctx, "eth_getCode", []any{addr.Hex(), blockTag(block)})
	if err != nil {
		return nil, err
	}
	var hexVal string
	if err := json.Unmarshal(raw, &hexVal); err != nil {
		return nil, fmt.Errorf("rpcprovider: decode eth_getCode result: %w", err)
	}
	return decodeHexBytes(hexVal), nil
}

func (c *Client) StorageAt(ctx context.Context, addr common.Address, slot common.Hash, block forkdb.BlockRef) (uint256.Int, error) {
	raw, err := c.t.call(ctx, "eth_getStorageAt", []any{addr.Hex(), slot.Hex(), blockTag(block)})
	if err != nil {
		return uint256.Int{}, err
	}
	var hexVal string
	if err := json.Unmarshal(raw, &hexVal); err != nil {
		return uint256.Int{}, fmt.Errorf("rpcprovider: decode eth_getStorageAt result: %w", err)
	}
	var v uint256.Int
	v.SetBytes(decodeHexBytes(hexVal))
	return v, nil
}

func (c *Client) BlockByNumber(ctx context.Context, number uint64, hashesOnly bool) (*forkdb.Block, error) {
	raw, err := c.t.call(ctx, "eth_getBlockByNumber", []any{hexQuantity(number), !hashesOnly})
	if err != nil {
		return nil, err
	}
	return decodeBlock(raw)
}

func (c *Client) FullBlockAt(ctx context.Context, id forkdb.BlockRef) (*forkdb.Block, error) {
	if id.Kind == forkdb.BlockRefHash {
		raw, err := c.t.call(ctx, "eth_getBlockByHash", []any{id.Hash.Hex(), true})
		if err != nil {
			return nil, err
		}
		return decodeBlock(raw)
	}
	raw, err := c.t.call(ctx, "eth_getBlockByNumber", []any{blockTag(id), true})
	if err != nil {
		return nil, err
	}
	return decodeBlock(raw)
}

func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*forkdb.Transaction, error) {
	raw, err := c.t.call(ctx, "eth_getTransactionByHash", []any{hash.Hex()})
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var rtx rawTransaction
	if err := json.Unmarshal(raw, &rtx); err != nil {
		return nil, fmt.Errorf("rpcprovider: decode eth_getTransactionByHash result: %w", err)
	}
	tx := rtx.toTransaction()
	return &tx, nil
}

// rawBlock mirrors the JSON-RPC block object's hex-encoded fields.
type rawBlock struct {
	Number       string            `json:"number"`
	Hash         string            `json:"hash"`
	ParentHash   string            `json:"parentHash"`
	Timestamp    string            `json:"timestamp"`
	GasLimit     string            `json:"gasLimit"`
	GasUsed      string            `json:"gasUsed"`
	BaseFeePerGas string           `json:"baseFeePerGas"`
	Transactions []json.RawMessage `json:"transactions"`
}

func decodeBlock(raw json.RawMessage) (*forkdb.Block, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var rb rawBlock
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, fmt.Errorf("rpcprovider: decode block: %w", err)
	}
	number, err := strconv.ParseUint(strip0x(rb.Number), 16, 64)
	if err != nil {
		return nil, fmt.Errorf("rpcprovider: parse block number %q: %w", rb.Number, err)
	}
	timestamp, _ := strconv.ParseUint(strip0x(rb.Timestamp), 16, 64)
	gasLimit, _ := strconv.ParseUint(strip0x(rb.GasLimit), 16, 64)
	gasUsed, _ := strconv.ParseUint(strip0x(rb.GasUsed), 16, 64)

	var baseFee *uint256.Int
	if rb.BaseFeePerGas != "" {
		baseFee, _ = uint256.FromHex(rb.BaseFeePerGas)
	}

	block := &forkdb.Block{
		Number:     number,
		Hash:       common.HexToHash(rb.Hash),
		ParentHash: common.HexToHash(rb.ParentHash),
		Timestamp:  timestamp,
		GasLimit:   gasLimit,
		GasUsed:    gasUsed,
		BaseFee:    baseFee,
	}
	for _, raw := range rb.Transactions {
		var hashOnly string
		if err := json.Unmarshal(raw, &hashOnly); err == nil {
			block.TxHashes = append(block.TxHashes, common.HexToHash(hashOnly))
			continue
		}
		var rtx rawTransaction
		if err := json.Unmarshal(raw, &rtx); err != nil {
			continue
		}
		tx := rtx.toTransaction()
		block.TxHashes = append(block.TxHashes, tx.Hash)
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

type rawTransaction struct {
	Hash        string  `json:"hash"`
	From        string  `json:"from"`
	To          *string `json:"to"`
	Nonce       string  `json:"nonce"`
	Value       string  `json:"value"`
	Gas         string  `json:"gas"`
	GasPrice    string  `json:"gasPrice"`
	Input       string  `json:"input"`
	BlockHash   string  `json:"blockHash"`
	BlockNumber string  `json:"blockNumber"`
}

func (r rawTransaction) toTransaction() forkdb.Transaction {
	nonce, _ := strconv.ParseUint(strip0x(r.Nonce), 16, 64)
	gasLimit, _ := strconv.ParseUint(strip0x(r.Gas), 16, 64)
	blockNum, _ := strconv.ParseUint(strip0x(r.BlockNumber), 16, 64)

	value, _ := uint256.FromHex(orZeroHex(r.Value))
	gasPrice, _ := uint256.FromHex(orZeroHex(r.GasPrice))

	var to *common.Address
	if r.To != nil {
		addr := common.HexToAddress(*r.To)
		to = &addr
	}
	return forkdb.Transaction{
		Hash:      common.HexToHash(r.Hash),
		From:      common.HexToAddress(r.From),
		To:        to,
		Nonce:     nonce,
		Value:     value,
		GasLimit:  gasLimit,
		GasPrice:  gasPrice,
		Input:     decodeHexBytes(r.Input),
		BlockHash: common.HexToHash(r.BlockHash),
		BlockNum:  blockNum,
	}
}

func orZeroHex(s string) string {
	if s == "" {
		return "0x0"
	}
	return s
}

func strip0x(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}

func decodeHexBytes(s string) []byte {
	s = strip0x(s)
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func decodeHexUint(raw json.RawMessage, method string) (uint64, error) {
	var hexVal string
	if err := json.Unmarshal(raw, &hexVal); err != nil {
		return 0, fmt.Errorf("rpcprovider: decode %s result: %w", method, err)
	}
	v, err := strconv.ParseUint(strip0x(hexVal), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("rpcprovider: parse %s result %q: %w", method, hexVal, err)
	}
	return v, nil
}
