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
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport multiplexes many concurrent calls over one persistent
// connection, correlating replies to callers by request ID the way every
// JSON-RPC-over-WebSocket client has to: a single reader goroutine owns
// the connection and fans responses out to per-call channels, since
// gorilla/websocket connections support at most one concurrent reader and
// one concurrent writer.
type wsTransport struct {
	conn   *websocket.Conn
	nextID atomic.Uint64

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan jsonrpcResponse

	closeOnce sync.Once
	closed    chan struct{}
}

func dialWS(url string, handshakeTimeout time.Duration) (*wsTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcprovider: dial %s: %w", url, err)
	}
	t := &wsTransport{
		conn:    conn,
		pending: make(map[uint64]chan jsonrpcResponse),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *wsTransport) readLoop() {
	defer close(t.closed)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.failAllPending(fmt.Errorf("rpcprovider: websocket read: %w", err))
			return
		}
		var resp jsonrpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		t.pendingMu.Lock()
		ch, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (t *wsTransport) failAllPending(err error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	errResp := jsonrpcResponse{Error: &jsonrpcError{Code: -1, Message: err.Error()}}
	for id, ch := range t.pending {
		ch <- errResp
		delete(t.pending, id)
	}
}

func (t *wsTransport) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	id := t.nextID.Add(1)
	body, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("rpcprovider: marshal request: %w", err)
	}

	reply := make(chan jsonrpcResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = reply
	t.pendingMu.Unlock()

	t.writeMu.Lock()
	writeErr := t.conn.WriteMessage(websocket.TextMessage, body)
	t.writeMu.Unlock()
	if writeErr != nil {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, fmt.Errorf("rpcprovider: %s: websocket write: %w", method, writeErr)
	}

	select {
	case resp := <-reply:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, fmt.Errorf("rpcprovider: %s: %w", method, ctx.Err())
	case <-t.closed:
		return nil, fmt.Errorf("rpcprovider: %s: connection closed", method)
	}
}

func (t *wsTransport) close() error {
	var err error
	t.closeOnce.Do(func() { err = t.conn.Close() })
	return err
}
