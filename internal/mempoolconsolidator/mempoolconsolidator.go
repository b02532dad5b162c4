// Package mempoolconsolidator implements MempoolConsolidator (C4),
// spec.md §4.4: promote provisional mempool rows to confirmed when their
// containing block arrives. The conflict-free SQL lives in
// store.SQLiteStore.ConsolidateBlock; this package is the named
// component boundary BlockProcessor (C7) calls at step 2.
package mempoolconsolidator

import (
	"context"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type Consolidator struct {
	store store.Store
}

func New(s store.Store) *Consolidator {
	return &Consolidator{store: s}
}

// Consolidate implements spec.md §4.4 for every txid in the incoming
// block. Idempotent; safe to re-run with the same block.
func (c *Consolidator) Consolidate(ctx context.Context, n domain.Network, height int64, txids []string) error {
	return c.store.ConsolidateBlock(ctx, n, height, txids)
}
