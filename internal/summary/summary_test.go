package summary

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
	delta      store.SummaryDelta
	height     int64
	tipStatus  string
	tipCount   int64
	tipHash    string
	applyCalls int
	tipCalls   int
}

func (f *fakeStore) ApplySummaryDelta(ctx context.Context, n domain.Network, height int64, delta store.SummaryDelta) error {
	f.applyCalls++
	f.delta = delta
	f.height = height
	return nil
}

func (f *fakeStore) RefreshChainTip(ctx context.Context, n domain.Network, status string, blockCount int64, bestHash string) error {
	f.tipCalls++
	f.tipStatus, f.tipCount, f.tipHash = status, blockCount, bestHash
	return nil
}

func testLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestApply(t *testing.T) {
	fs := &fakeStore{}
	u := New(fs, testLog())

	delta := store.SummaryDelta{}
	require.NoError(t, u.Apply(context.Background(), domain.Testnet4, 100, delta))
	require.Equal(t, 1, fs.applyCalls)
	require.Equal(t, int64(100), fs.height)
}

func TestRefreshChainTip(t *testing.T) {
	fs := &fakeStore{}
	u := New(fs, testLog())

	require.NoError(t, u.RefreshChainTip(context.Background(), domain.Testnet4, "ok", 500, "deadbeef"))
	require.Equal(t, 1, fs.tipCalls)
	require.Equal(t, "ok", fs.tipStatus)
	require.Equal(t, int64(500), fs.tipCount)
	require.Equal(t, "deadbeef", fs.tipHash)
}
