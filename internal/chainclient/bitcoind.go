package chainclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// TipTimeout and ScanTimeout are declared per-call timeout values for tip
// calls and heavy scans. BitcoindClient does not apply either of them.
const (
	TipTimeout  = 5 * time.Second
	ScanTimeout = 30 * time.Second
)

// RawTxFetchRate is the default cap on GetRawTransactionHex calls, spec.md
// §4.7 step 3: "fetch its raw hex (rate-limited)". MempoolProcessor is the
// only caller that fetches hex in a tight per-txid loop; the block loop
// gets hex for free as part of GetBlock and never touches this limiter.
const RawTxFetchRate = 20 // per second

// BitcoindClient is the ChainClient implementation backing a single
// network's *rpcclient.Client.
type BitcoindClient struct {
	rpc     *rpcclient.Client
	rawTxRL *rate.Limiter
}

// NewBitcoindClient dials a bitcoind-compatible JSON-RPC endpoint.
func NewBitcoindClient(host, user, pass string) (*BitcoindClient, error) {
	cfg := &rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	client, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: dial")
	}
	return &BitcoindClient{
		rpc:     client,
		rawTxRL: rate.NewLimiter(rate.Limit(RawTxFetchRate), RawTxFetchRate),
	}, nil
}

func (c *BitcoindClient) Close() { c.rpc.Shutdown() }

// withTimeout runs fn on a goroutine and races it against ctx, since the
// underlying btcsuite client predates context-aware RPC calls. It adds no
// deadline of its own: a call is bounded only by the deadline or
// cancellation already carried by ctx.
func withTimeout[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)

	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}

func (c *BitcoindClient) GetBlockCount(ctx context.Context) (int64, error) {
	return withTimeout(ctx, func() (int64, error) {
		return c.rpc.GetBlockCount()
	})
}

func (c *BitcoindClient) GetBestBlockHash(ctx context.Context) (string, error) {
	return withTimeout(ctx, func() (string, error) {
		h, err := c.rpc.GetBestBlockHash()
		if err != nil {
			return "", err
		}
		return h.String(), nil
	})
}

func (c *BitcoindClient) GetBlockHash(ctx context.Context, height int64) (string, error) {
	return withTimeout(ctx, func() (string, error) {
		h, err := c.rpc.GetBlockHash(height)
		if err != nil {
			return "", err
		}
		return h.String(), nil
	})
}

func (c *BitcoindClient) GetBlock(ctx context.Context, hashHex string) (*Block, error) {
	return withTimeout(ctx, func() (*Block, error) {
		hash, err := chainhash.NewHashFromStr(hashHex)
		if err != nil {
			return nil, errors.Wrap(err, "chainclient: parse block hash")
		}

		msgBlock, err := c.rpc.GetBlock(hash)
		if err != nil {
			return nil, err
		}

		b := &Block{
			Hash:   hashHex,
			Height: 0, // caller already knows the height it asked for
			Time:   msgBlock.Header.Timestamp.Unix(),
			Tx:     make([]BlockTx, 0, len(msgBlock.Transactions)),
		}

		for _, tx := range msgBlock.Transactions {
			var buf bytes.Buffer
			if err := tx.Serialize(&buf); err != nil {
				return nil, errors.Wrap(err, "chainclient: serialize tx")
			}
			b.Tx = append(b.Tx, BlockTx{
				Txid: tx.TxHash().String(),
				Hex:  hex.EncodeToString(buf.Bytes()),
			})
		}

		return b, nil
	})
}

func (c *BitcoindClient) GetRawTransactionHex(ctx context.Context, txid string, blockHash string) (string, error) {
	if err := c.rawTxRL.Wait(ctx); err != nil {
		return "", err
	}
	return withTimeout(ctx, func() (string, error) {
		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil {
			return "", errors.Wrap(err, "chainclient: parse txid")
		}

		tx, err := c.rpc.GetRawTransaction(hash)
		if err != nil {
			return "", err
		}

		var buf bytes.Buffer
		if err := tx.MsgTx().Serialize(&buf); err != nil {
			return "", errors.Wrap(err, "chainclient: serialize tx")
		}
		return hex.EncodeToString(buf.Bytes()), nil
	})
}

func (c *BitcoindClient) GetRawMempool(ctx context.Context) ([]string, error) {
	return withTimeout(ctx, func() ([]string, error) {
		hashes, err := c.rpc.GetRawMempool()
		if err != nil {
			return nil, err
		}
		out := make([]string, len(hashes))
		for i, h := range hashes {
			out[i] = h.String()
		}
		return out, nil
	})
}
