package rpcprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidquant/evm-fork-db/common"
	"github.com/solidquant/evm-fork-db/forkdb"
)

func newTestServer(t *testing.T, handler func(method string, params []any) (any, error)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, err := handler(req.Method, req.Params)
		resp := jsonrpcResponse{JSONRPC: "2.0", ID: req.ID}
		if err != nil {
			resp.Error = &jsonrpcError{Code: -1, Message: err.Error()}
		} else {
			raw, marshalErr := json.Marshal(result)
			require.NoError(t, marshalErr)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClientBalanceAt(t *testing.T) {
	srv := newTestServer(t, func(method string, params []any) (any, error) {
		assert.Equal(t, "eth_getBalance", method)
		return "0x64", nil
	})
	defer srv.Close()

	client, err := Dial(srv.URL, 5*time.Second)
	require.NoError(t, err)

	balance, err := client.BalanceAt(context.Background(), common.Address{}, forkdb.BlockRefByNumber(1))
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance.Uint64())
}

func TestClientCodeAtDecodesHex(t *testing.T) {
	srv := newTestServer(t, func(method string, params []any) (any, error) {
		return "0x6001", nil
	})
	defer srv.Close()

	client, err := Dial(srv.URL, 5*time.Second)
	require.NoError(t, err)

	code, err := client.CodeAt(context.Background(), common.Address{}, forkdb.LatestBlockRef())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, code)
}

func TestClientBlockByNumberMissingReturnsNilBlock(t *testing.T) {
	srv := newTestServer(t, func(method string, params []any) (any, error) {
		return nil, nil
	})
	defer srv.Close()

	client, err := Dial(srv.URL, 5*time.Second)
	require.NoError(t, err)

	block, err := client.BlockByNumber(context.Background(), 999, true)
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestClientSurfacesJSONRPCError(t *testing.T) {
	srv := newTestServer(t, func(method string, params []any) (any, error) {
		return nil, assert.AnError
	})
	defer srv.Close()

	client, err := Dial(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = client.NonceAt(context.Background(), common.Address{}, forkdb.LatestBlockRef())
	assert.Error(t, err)
}

func TestDialRejectsUnknownScheme(t *testing.T) {
	_, err := Dial("ftp://example.com", time.Second)
	assert.Error(t, err)
}
