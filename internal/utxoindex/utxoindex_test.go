package utxoindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
	"github.com/CharmsDev/charms-explorer-sub000/internal/txdecode"
)

// fakeStore embeds the Store interface (nil) so only the methods this
// test exercises need overriding; any unexercised method panics on a
// nil-interface call, which is the correct failure mode for an
// accidental new dependency this test doesn't know about.
type fakeStore struct {
	store.Store
	monitored map[string]struct{}
	deleted   []store.Outpoint
	inserted  []domain.AddressUtxo
}

func (f *fakeStore) MonitoredAddresses(ctx context.Context, n domain.Network) (map[string]struct{}, error) {
	return f.monitored, nil
}

func (f *fakeStore) DeleteAddressUTXOs(ctx context.Context, n domain.Network, outpoints []store.Outpoint) error {
	f.deleted = append(f.deleted, outpoints...)
	return nil
}

func (f *fakeStore) InsertAddressUTXOs(ctx context.Context, utxos []domain.AddressUtxo) error {
	f.inserted = append(f.inserted, utxos...)
	return nil
}

func TestReloadAndIsMonitored(t *testing.T) {
	fs := &fakeStore{monitored: map[string]struct{}{"addrA": {}}}
	idx := New(fs)

	require.False(t, idx.IsMonitored(domain.Testnet4, "addrA"))
	require.NoError(t, idx.Reload(context.Background(), domain.Testnet4))
	require.True(t, idx.IsMonitored(domain.Testnet4, "addrA"))
	require.False(t, idx.IsMonitored(domain.Testnet4, "addrB"))
	require.False(t, idx.IsMonitored(domain.Mainnet, "addrA"))
}

func TestCollectSpentOutpoints(t *testing.T) {
	idx := New(&fakeStore{})
	txs := []*txdecode.Tx{
		{Inputs: []store.Outpoint{{Txid: "t1", Vout: 0}}},
		{Inputs: []store.Outpoint{{Txid: "t2", Vout: 1}}},
	}
	spent := idx.CollectSpentOutpoints(txs)
	require.ElementsMatch(t, []store.Outpoint{{Txid: "t1", Vout: 0}, {Txid: "t2", Vout: 1}}, spent)
}

func TestCollectNewUtxos_OnlyMonitored(t *testing.T) {
	fs := &fakeStore{monitored: map[string]struct{}{"addrA": {}}}
	idx := New(fs)
	require.NoError(t, idx.Reload(context.Background(), domain.Testnet4))

	txs := []*txdecode.Tx{
		{Txid: "tx1", Outputs: []txdecode.Output{
			{Vout: 0, Value: 1000, Address: "addrA"},
			{Vout: 1, Value: 2000, Address: "addrB"},
			{Vout: 2, Value: 500, Address: ""},
		}},
	}

	utxos := idx.CollectNewUtxos(domain.Testnet4, 100, txs)
	require.Len(t, utxos, 1)
	require.Equal(t, "addrA", utxos[0].Address)
	require.Equal(t, int64(100), utxos[0].BlockHeight)
}

func TestApply_DeletesAndInserts(t *testing.T) {
	fs := &fakeStore{monitored: map[string]struct{}{"addrA": {}}}
	idx := New(fs)
	require.NoError(t, idx.Reload(context.Background(), domain.Testnet4))

	txs := []*txdecode.Tx{
		{Txid: "tx1",
			Inputs:  []store.Outpoint{{Txid: "spent1", Vout: 0}},
			Outputs: []txdecode.Output{{Vout: 0, Value: 1000, Address: "addrA"}},
		},
	}

	require.NoError(t, idx.Apply(context.Background(), domain.Testnet4, 50, txs))
	require.Len(t, fs.deleted, 1)
	require.Len(t, fs.inserted, 1)
}
