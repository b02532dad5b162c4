// Package addressmonitor implements AddressMonitor (C12), spec.md §4.12:
// on-demand seeding of the monitored-address set from an external
// indexed provider when the read API sees an address it doesn't track
// yet.
package addressmonitor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/quicknode"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

// retryDelay is the re-check interval when another seeder holds the
// lock, spec.md §4.12 "sleep briefly (~500ms) and re-check".
const retryDelay = 500 * time.Millisecond

// keyedLock substitutes for a database advisory lock: SQLite has no
// advisory-lock primitive, so concurrent seeds within one process are
// serialized by an in-process mutex keyed by (network, address) instead.
// This only protects against concurrent seeds from this process — which
// is every writer there is, since the indexer is the sole owner of its
// SQLite file (see DESIGN.md).
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: map[string]*sync.Mutex{}}
}

func (k *keyedLock) forKey(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Monitor seeds newly-requested addresses via the QuickNodeClient.
type Monitor struct {
	store store.Store
	qn    *quicknode.Client
	lock  *keyedLock
	log   *logrus.Entry
}

func New(s store.Store, qn *quicknode.Client, log *logrus.Entry) *Monitor {
	return &Monitor{store: s, qn: qn, lock: newKeyedLock(), log: log}
}

// EnsureMonitored implements spec.md §4.12 steps 1-4. Returns nil
// immediately if the address is already tracked or the provider is
// disabled for this network.
func (m *Monitor) EnsureMonitored(ctx context.Context, n domain.Network, address string) error {
	monitored, err := m.store.IsMonitored(ctx, n, address)
	if err != nil {
		return err
	}
	if monitored {
		return nil
	}
	if !m.qn.Enabled() {
		return nil
	}

	key := n.String() + ":" + address
	mu := m.lock.forKey(key)

	for {
		if mu.TryLock() {
			defer mu.Unlock()
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	// Step 2: re-check membership under the lock.
	monitored, err = m.store.IsMonitored(ctx, n, address)
	if err != nil {
		return err
	}
	if monitored {
		return nil
	}

	// Step 3: query the external provider and seed.
	rawUtxos, err := m.qn.GetUTXOs(ctx, address)
	if err != nil {
		return errors.Wrap(err, "addressmonitor: fetch utxos")
	}
	tip, err := m.qn.GetBlockCount(ctx)
	if err != nil {
		return errors.Wrap(err, "addressmonitor: fetch tip")
	}

	utxos := make([]domain.AddressUtxo, 0, len(rawUtxos))
	for _, u := range rawUtxos {
		value, err := strconv.ParseInt(u.Value, 10, 64)
		if err != nil {
			m.log.WithError(err).Warnf("skip unparseable utxo value %q for %s", u.Value, address)
			continue
		}
		utxos = append(utxos, domain.AddressUtxo{
			Txid: u.Txid, Vout: u.Vout, Network: n, Address: address,
			Value: value, BlockHeight: 0,
		})
	}

	return m.store.SeedMonitoredAddress(ctx, n, address, tip, utxos)
}
