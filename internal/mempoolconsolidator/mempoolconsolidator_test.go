package mempoolconsolidator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type fakeStore struct {
	store.Store
	calls   int
	height  int64
	network domain.Network
	txids   []string
}

func (f *fakeStore) ConsolidateBlock(ctx context.Context, n domain.Network, height int64, txids []string) error {
	f.calls++
	f.network = n
	f.height = height
	f.txids = txids
	return nil
}

func TestConsolidate_DelegatesToStore(t *testing.T) {
	fs := &fakeStore{}
	c := New(fs)

	require.NoError(t, c.Consolidate(context.Background(), domain.Testnet4, 42, []string{"a", "b"}))

	require.Equal(t, 1, fs.calls)
	require.Equal(t, domain.Testnet4, fs.network)
	require.Equal(t, int64(42), fs.height)
	require.Equal(t, []string{"a", "b"}, fs.txids)
}

func TestConsolidate_EmptyTxidsStillCallsStore(t *testing.T) {
	fs := &fakeStore{}
	c := New(fs)

	require.NoError(t, c.Consolidate(context.Background(), domain.Testnet4, 1, nil))
	require.Equal(t, 1, fs.calls)
}
