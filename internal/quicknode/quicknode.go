// Package quicknode implements the QuickNodeClient external provider
// spec.md §6 names: "JSON-RPC POST with method=bb_getutxos ... and
// method=getblockcount|getbestblockhash". AddressMonitor (C12) calls it
// to seed a newly-requested address's UTXO snapshot.
package quicknode

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Utxo is one entry of a bb_getutxos response, spec.md §6:
// "[{txid, vout, value: u64-string, confirmations}]".
type Utxo struct {
	Txid          string `json:"txid"`
	Vout          int    `json:"vout"`
	Value         string `json:"value"`
	Confirmations int64  `json:"confirmations"`
}

// Client talks to a QuickNode (or compatible) blockbook-style JSON-RPC
// endpoint. An empty endpoint disables the client entirely, per spec.md
// §6 "BITCOIN_MAINNET_QUICKNODE_ENDPOINT ... optional; empty = disabled".
type Client struct {
	endpoint string
	http     *http.Client
}

// New constructs a Client. Enabled returns false when endpoint is empty.
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Enabled() bool { return c.endpoint != "" }

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if !c.Enabled() {
		return errors.New("quicknode: client disabled")
	}

	body, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: 1})
	if err != nil {
		return errors.Wrap(err, "quicknode: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "quicknode: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "quicknode: request")
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errors.Wrap(err, "quicknode: decode response")
	}
	if rpcResp.Error != nil {
		return errors.Errorf("quicknode: %s: %s", method, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(rpcResp.Result, out), "quicknode: decode result")
}

// GetUTXOs implements bb_getutxos for an address.
func (c *Client) GetUTXOs(ctx context.Context, address string) ([]Utxo, error) {
	var out []Utxo
	err := c.call(ctx, "bb_getutxos", []string{address}, &out)
	return out, err
}

// GetBlockCount implements getblockcount.
func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	var out int64
	err := c.call(ctx, "getblockcount", nil, &out)
	return out, err
}

// GetBestBlockHash implements getbestblockhash.
func (c *Client) GetBestBlockHash(ctx context.Context) (string, error) {
	var out string
	err := c.call(ctx, "getbestblockhash", nil, &out)
	return out, err
}
