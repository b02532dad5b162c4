package spent

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type fakeStore struct {
	store.Store
	unspent       []domain.Charm
	markedSpent   []domain.Charm
	findCalls     int
	markCalls     int
}

func (f *fakeStore) FindUnspentCharms(ctx context.Context, n domain.Network, outpoints []store.Outpoint) ([]domain.Charm, error) {
	f.findCalls++
	return f.unspent, nil
}

func (f *fakeStore) MarkSpentAndAdjust(ctx context.Context, n domain.Network, spent []domain.Charm) error {
	f.markCalls++
	f.markedSpent = spent
	return nil
}

func testLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestMarkSpent_EmptyOutpointsIsNoop(t *testing.T) {
	fs := &fakeStore{}
	tr := New(fs, testLog())
	require.NoError(t, tr.MarkSpent(context.Background(), domain.Testnet4, nil))
	require.Equal(t, 0, fs.findCalls)
}

func TestMarkSpent_NoMatchesSkipsAdjust(t *testing.T) {
	fs := &fakeStore{unspent: nil}
	tr := New(fs, testLog())
	outpoints := []store.Outpoint{{Txid: "t1", Vout: 0}}
	require.NoError(t, tr.MarkSpent(context.Background(), domain.Testnet4, outpoints))
	require.Equal(t, 1, fs.findCalls)
	require.Equal(t, 0, fs.markCalls)
}

func TestMarkSpent_MatchesAdjust(t *testing.T) {
	fs := &fakeStore{unspent: []domain.Charm{{Txid: "t1", Vout: 0}}}
	tr := New(fs, testLog())
	outpoints := []store.Outpoint{{Txid: "t1", Vout: 0}}
	require.NoError(t, tr.MarkSpent(context.Background(), domain.Testnet4, outpoints))
	require.Len(t, fs.markedSpent, 1)
}
