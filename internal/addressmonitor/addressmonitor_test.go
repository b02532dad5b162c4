package addressmonitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/quicknode"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type fakeStore struct {
	store.Store
	monitored map[string]bool
	seeded    []string
}

func (f *fakeStore) IsMonitored(ctx context.Context, n domain.Network, address string) (bool, error) {
	return f.monitored[address], nil
}

func (f *fakeStore) SeedMonitoredAddress(ctx context.Context, n domain.Network, address string, seedHeight int64, utxos []domain.AddressUtxo) error {
	f.seeded = append(f.seeded, address)
	f.monitored[address] = true
	return nil
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestEnsureMonitored_AlreadyTracked(t *testing.T) {
	fs := &fakeStore{monitored: map[string]bool{"addrA": true}}
	m := New(fs, quicknode.New("http://unused"), testLog())

	require.NoError(t, m.EnsureMonitored(context.Background(), domain.Testnet4, "addrA"))
	require.Empty(t, fs.seeded)
}

func TestEnsureMonitored_ProviderDisabled(t *testing.T) {
	fs := &fakeStore{monitored: map[string]bool{}}
	m := New(fs, quicknode.New(""), testLog())

	require.NoError(t, m.EnsureMonitored(context.Background(), domain.Testnet4, "addrB"))
	require.Empty(t, fs.seeded)
}

func TestEnsureMonitored_SeedsFromProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result json.RawMessage
		switch req.Method {
		case "bb_getutxos":
			result = json.RawMessage(`[{"txid":"t1","vout":0,"value":"500","confirmations":1}]`)
		case "getblockcount":
			result = json.RawMessage(`123`)
		}
		require.NoError(t, json.NewEncoder(w).Encode(struct {
			Result json.RawMessage `json:"result"`
		}{Result: result}))
	}))
	defer srv.Close()

	fs := &fakeStore{monitored: map[string]bool{}}
	m := New(fs, quicknode.New(srv.URL), testLog())

	require.NoError(t, m.EnsureMonitored(context.Background(), domain.Testnet4, "addrC"))
	require.Equal(t, []string{"addrC"}, fs.seeded)
	require.True(t, fs.monitored["addrC"])
}
