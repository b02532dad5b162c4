// Package persist implements BatchPersister (C5), spec.md §4.5: the
// idempotent bulk-upsert surface with retry/backoff. The conflict-
// resolution rules themselves live in store.SQLiteStore's SQL; this
// package only adds the retry envelope §4.5 requires ("All three
// operations retry with exponential backoff (base 500ms, max 3 attempts
// per batch)").
package persist

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/retry"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

// BatchPersister retries store writes per spec.md §4.5.
type BatchPersister struct {
	store store.Store
	log   *logrus.Entry
}

func New(s store.Store, log *logrus.Entry) *BatchPersister {
	return &BatchPersister{store: s, log: log}
}

func (p *BatchPersister) UpsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return retry.Default(ctx, p.log, func(ctx context.Context) error {
		return p.store.UpsertTransactions(ctx, txs)
	})
}

func (p *BatchPersister) UpsertCharms(ctx context.Context, charms []domain.Charm) error {
	if len(charms) == 0 {
		return nil
	}
	return retry.Default(ctx, p.log, func(ctx context.Context) error {
		return p.store.UpsertCharms(ctx, charms)
	})
}

func (p *BatchPersister) UpsertAssets(ctx context.Context, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	return retry.Default(ctx, p.log, func(ctx context.Context) error {
		return p.store.UpsertAssets(ctx, assets)
	})
}

func (p *BatchPersister) UpsertDexOrders(ctx context.Context, orders []domain.DexOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return retry.Default(ctx, p.log, func(ctx context.Context) error {
		return p.store.UpsertDexOrders(ctx, orders)
	})
}
