package blockprocessor

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/analyzer"
	"github.com/CharmsDev/charms-explorer-sub000/internal/chainclient"
	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/mempoolconsolidator"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spellparser"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spent"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
	"github.com/CharmsDev/charms-explorer-sub000/internal/summary"
	"github.com/CharmsDev/charms-explorer-sub000/internal/utxoindex"
)

type fakeChain struct {
	chainclient.ChainClient
	tip       int64
	hash      string
	hashErr   error
	block     *chainclient.Block
	blockErr  error
}

func (f *fakeChain) GetBlockCount(ctx context.Context) (int64, error) { return f.tip, nil }

func (f *fakeChain) GetBlockHash(ctx context.Context, height int64) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return f.hash, nil
}

func (f *fakeChain) GetBlock(ctx context.Context, hash string) (*chainclient.Block, error) {
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	return f.block, nil
}

type fakeStore struct {
	store.Store

	txs        []domain.Transaction
	charms     []domain.Charm
	assets     []domain.Asset
	monitored  []string
	holders    []string
	downloaded []int64
	processed  []int64
	confirmed  []int64
	latest     int64
	appliedAt  int64
}

func (f *fakeStore) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(f)
}

func (f *fakeStore) UpsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	f.txs = append(f.txs, txs...)
	return nil
}

func (f *fakeStore) UpsertCharms(ctx context.Context, charms []domain.Charm) error {
	f.charms = append(f.charms, charms...)
	return nil
}

func (f *fakeStore) UpsertAssets(ctx context.Context, assets []domain.Asset) error {
	f.assets = append(f.assets, assets...)
	return nil
}

func (f *fakeStore) UpsertDexOrders(ctx context.Context, orders []domain.DexOrder) error { return nil }

func (f *fakeStore) ConsolidateBlock(ctx context.Context, n domain.Network, height int64, txids []string) error {
	return nil
}

func (f *fakeStore) FindUnspentCharms(ctx context.Context, n domain.Network, outpoints []store.Outpoint) ([]domain.Charm, error) {
	return nil, nil
}

func (f *fakeStore) MarkSpentAndAdjust(ctx context.Context, n domain.Network, spent []domain.Charm) error {
	return nil
}

func (f *fakeStore) RegisterMonitoredAddress(ctx context.Context, n domain.Network, address string, source domain.MonitoredAddressSource, seedHeight *int64) error {
	f.monitored = append(f.monitored, address)
	return nil
}

func (f *fakeStore) UpsertStatsHolder(ctx context.Context, n domain.Network, appID, address string, delta int64, height int64) error {
	f.holders = append(f.holders, appID+"/"+address)
	return nil
}

func (f *fakeStore) DeleteAddressUTXOs(ctx context.Context, n domain.Network, outpoints []store.Outpoint) error {
	return nil
}

func (f *fakeStore) InsertAddressUTXOs(ctx context.Context, utxos []domain.AddressUtxo) error {
	return nil
}

func (f *fakeStore) ResolveAddressUtxos(ctx context.Context, n domain.Network, outpoints []store.Outpoint) ([]domain.AddressUtxo, error) {
	return nil, nil
}

func (f *fakeStore) InsertAddressTransactions(ctx context.Context, ats []domain.AddressTransaction) error {
	return nil
}

func (f *fakeStore) ApplySummaryDelta(ctx context.Context, n domain.Network, height int64, delta store.SummaryDelta) error {
	f.appliedAt = height
	return nil
}

func (f *fakeStore) RefreshChainTip(ctx context.Context, n domain.Network, status string, blockCount int64, bestHash string) error {
	return nil
}

func (f *fakeStore) MarkDownloaded(ctx context.Context, n domain.Network, height int64, hash string, txCount int) error {
	f.downloaded = append(f.downloaded, height)
	return nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, n domain.Network, height int64, charmCount int) error {
	f.processed = append(f.processed, height)
	return nil
}

func (f *fakeStore) MarkConfirmed(ctx context.Context, n domain.Network, height int64) error {
	f.confirmed = append(f.confirmed, height)
	return nil
}

func (f *fakeStore) UnconfirmedHeights(ctx context.Context, n domain.Network, tip int64, depth int64) ([]int64, error) {
	return nil, nil
}

func (f *fakeStore) MarkLatestConfirmed(ctx context.Context, n domain.Network, height int64) error {
	f.latest = height
	return nil
}

type fakeParser struct {
	infos []spellparser.AssetInfo
}

func (p *fakeParser) ExtractSpellNoVerify(rawHex string) (*spellparser.NormalizedSpell, error) {
	if len(p.infos) == 0 {
		return nil, errNoSpell{}
	}
	return &spellparser.NormalizedSpell{Raw: json.RawMessage(`{"detected":true}`)}, nil
}

func (p *fakeParser) ExtractAssetInfo(spell *spellparser.NormalizedSpell) []spellparser.AssetInfo {
	return p.infos
}

type errNoSpell struct{}

func (errNoSpell) Error() string { return "no envelope" }

func simpleTx(t *testing.T) (string, string) {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: [32]byte{3}, Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(2000, []byte{}))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return tx.TxHash().String(), hex.EncodeToString(buf.Bytes())
}

func newProcessor(st *fakeStore, chain *fakeChain, infos []spellparser.AssetInfo) *Processor {
	log := logrus.NewEntry(logrus.New())
	a := analyzer.New(&fakeParser{infos: infos})
	utxo := utxoindex.New(st)
	consol := mempoolconsolidator.New(st)
	tracker := spent.New(st, log)
	sum := summary.New(st, log)
	return New(chain, st, a, utxo, consol, tracker, sum, ConfirmationDepth, log)
}

func TestProcessBlock_PersistsTransactionsAndCharms(t *testing.T) {
	txid, rawHex := simpleTx(t)
	st := &fakeStore{}
	chain := &fakeChain{
		tip:  110,
		hash: "h100",
		block: &chainclient.Block{
			Hash: "h100",
			Tx:   []chainclient.BlockTx{{Txid: txid, Hex: rawHex}},
		},
	}
	p := newProcessor(st, chain, []spellparser.AssetInfo{{AppID: "app1", Amount: 7, VoutIndex: 0}})

	require.NoError(t, p.ProcessBlock(context.Background(), domain.Testnet4, 100))

	require.Len(t, st.txs, 1)
	require.Equal(t, domain.TxConfirmed, st.txs[0].Status)
	require.Len(t, st.charms, 1)
	require.Equal(t, "app1", st.charms[0].AppID)
	require.Len(t, st.assets, 1)
	require.Contains(t, st.downloaded, int64(100))
	require.Contains(t, st.processed, int64(100))
	require.Contains(t, st.confirmed, int64(100))
	require.Equal(t, int64(100), st.latest)
}

func TestProcessBlock_NoSpellIsSilentButTxPersists(t *testing.T) {
	txid, rawHex := simpleTx(t)
	st := &fakeStore{}
	chain := &fakeChain{
		tip:  52,
		hash: "h50",
		block: &chainclient.Block{
			Hash: "h50",
			Tx:   []chainclient.BlockTx{{Txid: txid, Hex: rawHex}},
		},
	}
	p := newProcessor(st, chain, nil)

	require.NoError(t, p.ProcessBlock(context.Background(), domain.Testnet4, 50))

	require.Len(t, st.txs, 1)
	require.Empty(t, st.charms)
	require.NotContains(t, st.confirmed, int64(50))
}

func TestProcessBlock_SkipsUnavailableBlock(t *testing.T) {
	st := &fakeStore{}
	chain := &fakeChain{tip: 10, hashErr: errPrunedBlock{}}
	p := newProcessor(st, chain, nil)

	require.NoError(t, p.ProcessBlock(context.Background(), domain.Testnet4, 3))

	require.Contains(t, st.downloaded, int64(3))
	require.Contains(t, st.processed, int64(3))
	require.Empty(t, st.txs)
}

type errPrunedBlock struct{}

func (errPrunedBlock) Error() string { return "Block not available (pruned data)" }
