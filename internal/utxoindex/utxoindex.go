// Package utxoindex implements UtxoIndexer (C3), spec.md §4.6: for each
// block, delete consumed UTXOs and insert new outputs belonging to
// monitored addresses.
package utxoindex

import (
	"context"
	"sync"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
	"github.com/CharmsDev/charms-explorer-sub000/internal/txdecode"
)

// Indexer caches the monitored-address set in memory, refreshed
// periodically (spec.md §5 "Monitored-address set: a periodically-
// refreshed in-memory snapshot, read-only for the duration of a cycle").
type Indexer struct {
	store store.Store

	mu        sync.RWMutex
	addresses map[domain.Network]map[string]struct{}
}

func New(s store.Store) *Indexer {
	return &Indexer{store: s, addresses: map[domain.Network]map[string]struct{}{}}
}

// Reload refreshes the in-memory monitored-address snapshot for n,
// spec.md §4.7 step 5's RELOAD_EVERY and §4.6 step 1.
func (idx *Indexer) Reload(ctx context.Context, n domain.Network) error {
	set, err := idx.store.MonitoredAddresses(ctx, n)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.addresses[n] = set
	idx.mu.Unlock()
	return nil
}

// IsMonitored reports whether address is in the cached monitored-address
// snapshot for n. Exported so BlockProcessor's address-transaction ledger
// step (§4.2 step 8) can reuse the same in-memory set.
func (idx *Indexer) IsMonitored(n domain.Network, address string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := idx.addresses[n]
	if set == nil {
		return false
	}
	_, ok := set[address]
	return ok
}

// CollectSpentOutpoints implements step 2's collection: the outpoints
// consumed by every input of txs (coinbase transactions contribute none),
// gathered across the whole block so they can be deleted together.
func (idx *Indexer) CollectSpentOutpoints(txs []*txdecode.Tx) []store.Outpoint {
	var spent []store.Outpoint
	for _, tx := range txs {
		spent = append(spent, tx.Inputs...)
	}
	return spent
}

// CollectNewUtxos implements step 3: for each output paying a monitored
// address, build the AddressUtxo row to insert. Unspendable/unparseable
// scripts are already Address == "" from txdecode and are skipped here.
func (idx *Indexer) CollectNewUtxos(n domain.Network, height int64, txs []*txdecode.Tx) []domain.AddressUtxo {
	var utxos []domain.AddressUtxo
	for _, tx := range txs {
		for _, out := range tx.Outputs {
			if out.Address == "" || !idx.IsMonitored(n, out.Address) {
				continue
			}
			utxos = append(utxos, domain.AddressUtxo{
				Txid:         tx.Txid,
				Vout:         out.Vout,
				Network:      n,
				Address:      out.Address,
				Value:        out.Value,
				ScriptPubkey: out.ScriptPubkey,
				BlockHeight:  height,
			})
		}
	}
	return utxos
}

// Apply deletes consumed UTXOs and inserts new ones for a processed
// block, spec.md §4.6 steps 2-3.
func (idx *Indexer) Apply(ctx context.Context, n domain.Network, height int64, txs []*txdecode.Tx) error {
	spent := idx.CollectSpentOutpoints(txs)
	if len(spent) > 0 {
		if err := idx.store.DeleteAddressUTXOs(ctx, n, spent); err != nil {
			return err
		}
	}

	utxos := idx.CollectNewUtxos(n, height, txs)
	if len(utxos) > 0 {
		if err := idx.store.InsertAddressUTXOs(ctx, utxos); err != nil {
			return err
		}
	}
	return nil
}
