// Package mempoolprocessor implements MempoolProcessor (C8), spec.md
// §4.7: poll the node's mempool, detect spells in new transactions, and
// write provisional entries that BlockProcessor later promotes.
package mempoolprocessor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CharmsDev/charms-explorer-sub000/internal/analyzer"
	"github.com/CharmsDev/charms-explorer-sub000/internal/chainclient"
	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/rawcache"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
	"github.com/CharmsDev/charms-explorer-sub000/internal/txdecode"
	"github.com/CharmsDev/charms-explorer-sub000/internal/utxoindex"
)

// Options configures the cycle constants spec.md §4.7 names, each with
// the spec's stated default.
type Options struct {
	PollInterval time.Duration // default 1s
	MaxPerCycle  int           // default 100
	CleanupEvery int           // default 100
	ReloadEvery  int           // default 60
	StaleAfter   time.Duration // default 24h
	SeenCap      int           // default 10_000
}

func DefaultOptions() Options {
	return Options{
		PollInterval: time.Second,
		MaxPerCycle:  100,
		CleanupEvery: 100,
		ReloadEvery:  60,
		StaleAfter:   24 * time.Hour,
		SeenCap:      10_000,
	}
}

// Processor is the per-network mempool poll loop.
type Processor struct {
	network  domain.Network
	chain    chainclient.ChainClient
	store    store.Store
	analyzer *analyzer.TxAnalyzer
	utxo     *utxoindex.Indexer
	cache    *rawcache.Cache
	opts     Options
	log      *logrus.Entry

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(n domain.Network, chain chainclient.ChainClient, s store.Store, a *analyzer.TxAnalyzer, utxo *utxoindex.Indexer, cache *rawcache.Cache, opts Options, log *logrus.Entry) *Processor {
	return &Processor{
		network: n, chain: chain, store: s, analyzer: a, utxo: utxo, cache: cache,
		opts: opts, log: log, seen: map[string]struct{}{},
	}
}

// Run loops until ctx is cancelled, spec.md §5 "Mempool polls are
// cancellable between iterations".
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cycle++
			if err := p.runCycle(ctx); err != nil {
				p.log.WithError(err).Warn("mempool cycle failed")
			}
			if cycle%p.opts.CleanupEvery == 0 {
				p.cleanup(ctx)
			}
			if cycle%p.opts.ReloadEvery == 0 {
				if err := p.utxo.Reload(ctx, p.network); err != nil {
					p.log.WithError(err).Warn("reload monitored addresses failed")
				}
			}
		}
	}
}

// runCycle implements spec.md §4.7 steps 1-3.
func (p *Processor) runCycle(ctx context.Context) error {
	mempool, err := p.chain.GetRawMempool(ctx)
	if err != nil {
		return err
	}

	fresh := p.takeFresh(mempool)
	if len(fresh) == 0 {
		return nil
	}

	for _, txid := range fresh {
		if err := p.processOne(ctx, txid); err != nil {
			p.log.WithError(err).Debugf("mempool tx %s", txid)
		}
	}
	return nil
}

// takeFresh diffs mempool against the seen set under a short-held lock
// and inserts the selected txids before returning, so a crash mid-cycle
// never retries the same txid, per spec.md §4.7 step 2.
func (p *Processor) takeFresh(mempool []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fresh []string
	for _, txid := range mempool {
		if len(fresh) >= p.opts.MaxPerCycle {
			break
		}
		if _, ok := p.seen[txid]; ok {
			continue
		}
		p.seen[txid] = struct{}{}
		fresh = append(fresh, txid)
	}
	return fresh
}

func (p *Processor) processOne(ctx context.Context, txid string) error {
	hex, ok := p.cache.Get(p.network.String(), txid)
	if !ok {
		h, err := p.chain.GetRawTransactionHex(ctx, txid, "")
		if err != nil {
			return err
		}
		hex = h
		_ = p.cache.Put(p.network.String(), txid, hex)
	}

	decoded, err := txdecode.Decode(hex, p.network)
	if err != nil {
		return err
	}

	now := time.Now()

	if len(decoded.Inputs) > 0 {
		spends := make([]domain.MempoolSpend, 0, len(decoded.Inputs))
		for _, in := range decoded.Inputs {
			spends = append(spends, domain.MempoolSpend{
				SpendingTxid: txid, SpentTxid: in.Txid, SpentVout: in.Vout, Network: p.network, CreatedAt: now,
			})
		}
		if err := p.store.InsertMempoolSpends(ctx, spends); err != nil {
			return err
		}
	}

	utxos := p.utxo.CollectNewUtxos(p.network, 0, []*txdecode.Tx{decoded})
	if len(utxos) > 0 {
		if err := p.store.InsertAddressUTXOs(ctx, utxos); err != nil {
			return err
		}
	}

	result, err := p.analyzer.Analyze(txid, hex, p.network)
	if err != nil || result == nil {
		return nil // spec.md §7: spell parse failure is silent
	}

	txRow := domain.Transaction{
		Txid: txid, Network: p.network, BlockHeight: nil, Ordinal: 0,
		Raw: []byte(hex), Charm: result.CharmJSON, Status: domain.TxPending,
		Confirmations: 0, UpdatedAt: now, MempoolDetectedAt: &now,
	}
	if err := p.store.UpsertTransactions(ctx, []domain.Transaction{txRow}); err != nil {
		return err
	}

	var charms []domain.Charm
	for _, ai := range result.AssetInfos {
		charms = append(charms, domain.Charm{
			Txid: txid, Vout: ai.VoutIndex, Network: p.network, AppID: ai.AppID,
			AssetType: domain.AssetTypeFromAppID(ai.AppID), Amount: ai.Amount,
			Address: result.Address, Data: result.CharmJSON, BlockHeight: nil,
			DateCreated: now, Spent: false, Tags: result.Tags, Verified: true,
			MempoolDetectedAt: &now,
		})
	}
	if err := p.store.UpsertCharms(ctx, charms); err != nil {
		return err
	}

	if result.DexResult != nil {
		order := domain.DexOrder{
			OrderID: txid, Txid: txid, Network: p.network, BlockHeight: nil,
			Side: result.DexResult.Side, ExecType: result.DexResult.ExecType,
			Amount: result.DexResult.Amount, Quantity: result.DexResult.Quantity,
			AssetAppID: result.DexResult.AssetAppID, Status: domain.OrderOpen,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := p.store.UpsertDexOrders(ctx, []domain.DexOrder{order}); err != nil {
			return err
		}
	}

	return nil
}

// cleanup implements spec.md §4.7 step 4: purge stale mempool state and
// clear an oversized seen set.
func (p *Processor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.opts.StaleAfter)
	if _, err := p.store.PurgeStaleMempool(ctx, p.network, cutoff); err != nil {
		p.log.WithError(err).Warn("purge stale mempool failed")
	}

	p.mu.Lock()
	if len(p.seen) > p.opts.SeenCap {
		p.seen = map[string]struct{}{}
	}
	p.mu.Unlock()
}
