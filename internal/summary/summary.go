// Package summary implements SummaryUpdater (C6), spec.md §4.2 step 9
// and §3 Summary: maintain per-network counters and the chain-tip
// mirror, retrying transient DB errors per §4.11.
package summary

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/retry"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

type Updater struct {
	store store.Store
	log   *logrus.Entry
}

func New(s store.Store, log *logrus.Entry) *Updater {
	return &Updater{store: s, log: log}
}

// Apply adds a block's batch counters to the per-network summary row.
func (u *Updater) Apply(ctx context.Context, n domain.Network, height int64, delta store.SummaryDelta) error {
	return retry.Default(ctx, u.log, func(ctx context.Context) error {
		return u.store.ApplySummaryDelta(ctx, n, height, delta)
	})
}

// RefreshChainTip mirrors the node's reported tip into the summary row,
// spec.md §4.2 step 9 "refresh chain-tip mirror".
func (u *Updater) RefreshChainTip(ctx context.Context, n domain.Network, status string, blockCount int64, bestHash string) error {
	return retry.Default(ctx, u.log, func(ctx context.Context) error {
		return u.store.RefreshChainTip(ctx, n, status, blockCount, bestHash)
	})
}
