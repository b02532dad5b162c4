// Package spent implements SpentTracker (C2), spec.md §4.3: given a
// block's non-coinbase inputs, mark matching unspent charms spent and
// roll back their supply and holder counters.
package spent

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/retry"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

// Tracker wraps store lookups with §4.11's retry policy for C2 (max 5
// attempts, base 1s).
type Tracker struct {
	store store.Store
	log   *logrus.Entry
}

func New(s store.Store, log *logrus.Entry) *Tracker {
	return &Tracker{store: s, log: log}
}

// MarkSpent implements spec.md §4.3 steps 1-2: find unspent charms
// matching the block's consumed outpoints, then flip them spent and
// adjust their asset supply and StatsHolder balances in one call.
func (t *Tracker) MarkSpent(ctx context.Context, n domain.Network, outpoints []store.Outpoint) error {
	if len(outpoints) == 0 {
		return nil
	}

	return retry.SpentTrackerRetry(ctx, t.log, func(ctx context.Context) error {
		spent, err := t.store.FindUnspentCharms(ctx, n, outpoints)
		if err != nil {
			return err
		}
		if len(spent) == 0 {
			return nil
		}
		return t.store.MarkSpentAndAdjust(ctx, n, spent)
	})
}
