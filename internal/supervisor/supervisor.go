// Package supervisor implements NetworkSupervisor (C10), spec.md §4.9:
// the per-network task owner that drains reindex, then runs the live
// block loop and mempool loop side by side.
package supervisor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/CharmsDev/charms-explorer-sub000/internal/blockprocessor"
	"github.com/CharmsDev/charms-explorer-sub000/internal/chainclient"
	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/errkind"
	"github.com/CharmsDev/charms-explorer-sub000/internal/mempoolprocessor"
	"github.com/CharmsDev/charms-explorer-sub000/internal/reindex"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

// idleLogInterval rate-limits the "caught up with tip" log line, spec.md
// §4.2 "rate-limits log output to once per 30s".
const idleLogInterval = 30 * time.Second

// idleSleep is how long the loop sleeps once current_height exceeds the
// tip, spec.md §4.2 "sleeps ~10s".
const idleSleep = 10 * time.Second

// Supervisor owns the block-loop and mempool-loop goroutines for one
// network. Shared state across networks is none: each Supervisor holds
// its own cursor and component handles, spec.md §4.9.
type Supervisor struct {
	network       domain.Network
	chain         chainclient.ChainClient
	store         store.Store
	block         *blockprocessor.Processor
	mempool       *mempoolprocessor.Processor
	reindexer     *reindex.Path
	genesisHeight int64
	processPause  time.Duration
	log           *logrus.Entry

	lastIdleLog time.Time
}

func New(
	n domain.Network,
	chain chainclient.ChainClient,
	s store.Store,
	block *blockprocessor.Processor,
	mempool *mempoolprocessor.Processor,
	reindexer *reindex.Path,
	genesisHeight int64,
	processPause time.Duration,
	log *logrus.Entry,
) *Supervisor {
	return &Supervisor{
		network: n, chain: chain, store: s, block: block, mempool: mempool, reindexer: reindexer,
		genesisHeight: genesisHeight, processPause: processPause, log: log,
	}
}

// Run implements spec.md §4.9: reindex, then the live loop, with the
// mempool loop running concurrently the whole time. Returns when ctx is
// cancelled and both tasks have drained.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.reindexer.Drain(ctx, s.network); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runLiveLoop(gctx) })
	g.Go(func() error {
		err := s.mempool.Run(gctx)
		if gctx.Err() != nil {
			return nil // cancellation is a clean shutdown, not a failure
		}
		return err
	})
	return g.Wait()
}

func (s *Supervisor) runLiveLoop(ctx context.Context) error {
	height, err := s.startHeight(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		advanced, err := s.processOneHeight(ctx, height)
		if err != nil {
			if errkind.Classify(err) == errkind.KindRetryable {
				s.log.WithError(err).Warnf("height %d failed, will retry", height)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(s.processPause):
				}
				continue
			}
			return err
		}

		if !advanced {
			s.logIdle(height)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idleSleep):
			}
			continue
		}

		height++
		if s.processPause > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.processPause):
			}
		}
	}
}

// processOneHeight processes height if it is within the current tip.
// advanced is false (and err nil) when the cursor has caught up.
func (s *Supervisor) processOneHeight(ctx context.Context, height int64) (advanced bool, err error) {
	tip, err := s.tip(ctx)
	if err != nil {
		return false, err
	}
	if height > tip {
		return false, nil
	}

	if err := s.block.ProcessBlock(ctx, s.network, height); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Supervisor) tip(ctx context.Context) (int64, error) {
	return s.chain.GetBlockCount(ctx)
}

func (s *Supervisor) startHeight(ctx context.Context) (int64, error) {
	last, ok, err := s.store.LastProcessedHeight(ctx, s.network)
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.genesisHeight, nil
	}
	return last + 1, nil
}

func (s *Supervisor) logIdle(height int64) {
	if time.Since(s.lastIdleLog) < idleLogInterval {
		return
	}
	s.lastIdleLog = time.Now()
	s.log.Infof("caught up with tip at height %d", height)
}
