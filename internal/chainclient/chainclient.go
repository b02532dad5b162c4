// Package chainclient is the ChainClient capability spec.md §1 and §6
// assume: "The node RPC client (a ChainClient capability is assumed)".
// The concrete implementation talks to a bitcoind-compatible node via
// github.com/btcsuite/btcd/rpcclient, the library the rest of the
// retrieval pack's lightning-network examples (breez-lightninglib,
// valentinewallace-lnd) use for the same purpose.
package chainclient

import "context"

// BlockTx is one transaction as returned embedded in a Block.
type BlockTx struct {
	Txid string
	Hex  string
}

// Block is the subset of a fetched block the pipeline needs: enough to
// iterate every transaction's raw hex without a second RPC round trip
// per tx (spec.md §4.2 step 1, §6).
type Block struct {
	Hash   string
	Height int64
	Time   int64
	Tx     []BlockTx
}

// ChainClient is the external node interface, spec.md §6:
//
//	get_block_count() → height
//	get_best_block_hash() → hash
//	get_block_hash(height) → hash
//	get_block(hash) → Block
//	get_raw_transaction_hex(txid, block_hash?) → hex
//	get_raw_mempool() → [txid]
type ChainClient interface {
	GetBlockCount(ctx context.Context) (int64, error)
	GetBestBlockHash(ctx context.Context) (string, error)
	GetBlockHash(ctx context.Context, height int64) (string, error)
	GetBlock(ctx context.Context, hash string) (*Block, error)
	GetRawTransactionHex(ctx context.Context, txid string, blockHash string) (string, error)
	GetRawMempool(ctx context.Context) ([]string, error)
	Close()
}
