package quicknode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledClient(t *testing.T) {
	c := New("")
	require.False(t, c.Enabled())

	_, err := c.GetUTXOs(context.Background(), "addr")
	require.Error(t, err)
}

func TestGetUTXOs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "bb_getutxos", req.Method)

		resp := rpcResponse{Result: json.RawMessage(`[{"txid":"abc","vout":0,"value":"1000","confirmations":3}]`)}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := New(srv.URL)
	require.True(t, c.Enabled())

	utxos, err := c.GetUTXOs(context.Background(), "someaddr")
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, "abc", utxos[0].Txid)
	require.Equal(t, "1000", utxos[0].Value)
}

func TestGetBlockCount_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rpcResponse{Error: &struct {
			Message string `json:"message"`
		}{Message: "boom"}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetBlockCount(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}
