package reindex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/analyzer"
	"github.com/CharmsDev/charms-explorer-sub000/internal/chainclient"
	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spellparser"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spent"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type fakeChain struct {
	chainclient.ChainClient
	hashErr error
	hash    string
	block   *chainclient.Block
}

func (f *fakeChain) GetBlockHash(ctx context.Context, height int64) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return f.hash, nil
}

func (f *fakeChain) GetBlock(ctx context.Context, hash string) (*chainclient.Block, error) {
	return f.block, nil
}

type fakeStore struct {
	store.Store
	pendingHeights []int64
	cached         map[int64][]domain.Transaction
	upserted       []domain.Charm
	processed      []int64
	unspent        []domain.Charm
}

func (f *fakeStore) PendingReindexHeights(ctx context.Context, n domain.Network, limit int) ([]int64, error) {
	h := f.pendingHeights
	f.pendingHeights = nil
	return h, nil
}

func (f *fakeStore) CachedTransactionsAtHeight(ctx context.Context, n domain.Network, height int64) ([]domain.Transaction, error) {
	return f.cached[height], nil
}

func (f *fakeStore) UpsertCharms(ctx context.Context, charms []domain.Charm) error {
	f.upserted = append(f.upserted, charms...)
	return nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, n domain.Network, height int64, charmCount int) error {
	f.processed = append(f.processed, height)
	return nil
}

func (f *fakeStore) FindUnspentCharms(ctx context.Context, n domain.Network, outpoints []store.Outpoint) ([]domain.Charm, error) {
	return f.unspent, nil
}

func (f *fakeStore) MarkSpentAndAdjust(ctx context.Context, n domain.Network, spent []domain.Charm) error {
	return nil
}

type fakeParser struct {
	infos []spellparser.AssetInfo
}

func (p *fakeParser) ExtractSpellNoVerify(rawHex string) (*spellparser.NormalizedSpell, error) {
	return &spellparser.NormalizedSpell{Raw: json.RawMessage(`{"ok":true}`)}, nil
}
func (p *fakeParser) ExtractAssetInfo(spell *spellparser.NormalizedSpell) []spellparser.AssetInfo {
	return p.infos
}

func testLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestProcessBlockFromCache_RebuildsCharmsAndMarksProcessed(t *testing.T) {
	st := &fakeStore{
		cached: map[int64][]domain.Transaction{
			10: {{Txid: "tx1", Raw: json.RawMessage("deadbeef")}},
		},
	}
	chain := &fakeChain{hash: "h1", block: &chainclient.Block{Hash: "h1", Tx: nil}}
	a := analyzer.New(&fakeParser{infos: []spellparser.AssetInfo{{AppID: "app1", Amount: 3, VoutIndex: 0}}})
	tracker := spent.New(st, testLog())

	p := New(chain, st, a, tracker, testLog())
	require.NoError(t, p.ProcessBlockFromCache(context.Background(), domain.Testnet4, 10))

	require.Len(t, st.upserted, 1)
	require.Equal(t, "app1", st.upserted[0].AppID)
	require.Contains(t, st.processed, int64(10))
}

func TestProcessBlockFromCache_SkipsSpendMarkingWhenNodeMissingBlock(t *testing.T) {
	st := &fakeStore{
		cached: map[int64][]domain.Transaction{
			5: {{Txid: "tx1", Raw: json.RawMessage("deadbeef")}},
		},
	}
	chain := &fakeChain{hashErr: errPruned{}}
	a := analyzer.New(&fakeParser{})
	tracker := spent.New(st, testLog())

	p := New(chain, st, a, tracker, testLog())
	require.NoError(t, p.ProcessBlockFromCache(context.Background(), domain.Testnet4, 5))
	require.Contains(t, st.processed, int64(5))
}

func TestDrain_ProcessesAllPendingHeightsUntilEmpty(t *testing.T) {
	st := &fakeStore{
		pendingHeights: []int64{1, 2},
		cached:         map[int64][]domain.Transaction{},
	}
	chain := &fakeChain{hash: "h1", block: &chainclient.Block{Hash: "h1"}}
	a := analyzer.New(&fakeParser{})
	tracker := spent.New(st, testLog())

	p := New(chain, st, a, tracker, testLog())
	require.NoError(t, p.Drain(context.Background(), domain.Testnet4))
	require.ElementsMatch(t, []int64{1, 2}, st.processed)
}

type errPruned struct{}

func (errPruned) Error() string { return "block pruned" }
