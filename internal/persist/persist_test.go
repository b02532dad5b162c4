package persist

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type fakeStore struct {
	store.Store
	upsertTxCalls    int
	upsertCharmCalls int
	failUntil        int
}

func (f *fakeStore) UpsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	f.upsertTxCalls++
	if f.upsertTxCalls <= f.failUntil {
		return errors.New("transient")
	}
	return nil
}

func (f *fakeStore) UpsertCharms(ctx context.Context, charms []domain.Charm) error {
	f.upsertCharmCalls++
	return nil
}

func testLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestUpsertTransactions_EmptyIsNoop(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs, testLog())
	require.NoError(t, p.UpsertTransactions(context.Background(), nil))
	require.Equal(t, 0, fs.upsertTxCalls)
}

func TestUpsertTransactions_RetriesThenSucceeds(t *testing.T) {
	fs := &fakeStore{failUntil: 2}
	p := New(fs, testLog())
	err := p.UpsertTransactions(context.Background(), []domain.Transaction{{Txid: "a"}})
	require.NoError(t, err)
	require.Equal(t, 3, fs.upsertTxCalls)
}

func TestUpsertCharms_EmptyIsNoop(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs, testLog())
	require.NoError(t, p.UpsertCharms(context.Background(), nil))
	require.Equal(t, 0, fs.upsertCharmCalls)
}
