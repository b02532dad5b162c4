// Package blockprocessor implements BlockProcessor (C7), spec.md §4.2:
// the sole authoritative transition for one block height. Steps run in
// the order the spec lists, except that the address ledger (step 8) is
// written just before the UTXO diff (step 7) inside the same transaction;
// failure of any step aborts the block and the supervisor's cursor does
// not advance.
package blockprocessor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/CharmsDev/charms-explorer-sub000/internal/analyzer"
	"github.com/CharmsDev/charms-explorer-sub000/internal/chainclient"
	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/errkind"
	"github.com/CharmsDev/charms-explorer-sub000/internal/mempoolconsolidator"
	"github.com/CharmsDev/charms-explorer-sub000/internal/persist"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spent"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spellparser"
	"github.com/CharmsDev/charms-explorer-sub000/internal/summary"
	"github.com/CharmsDev/charms-explorer-sub000/internal/txdecode"
	"github.com/CharmsDev/charms-explorer-sub000/internal/utxoindex"
)

// ConfirmationDepth is the default re-org tolerance: a block is
// confirmed only once tip - height + 1 >= 6.
const ConfirmationDepth = 6

// Processor wires every leaf component into the §4.2 pipeline.
type Processor struct {
	chain    chainclient.ChainClient
	store    store.Store
	analyzer *analyzer.TxAnalyzer
	utxo     *utxoindex.Indexer
	consol   *mempoolconsolidator.Consolidator
	spent    *spent.Tracker
	summary  *summary.Updater

	confirmationDepth int64
	log               *logrus.Entry
}

func New(
	chain chainclient.ChainClient,
	s store.Store,
	a *analyzer.TxAnalyzer,
	utxo *utxoindex.Indexer,
	consol *mempoolconsolidator.Consolidator,
	spentTracker *spent.Tracker,
	sum *summary.Updater,
	confirmationDepth int64,
	log *logrus.Entry,
) *Processor {
	if confirmationDepth <= 0 {
		confirmationDepth = ConfirmationDepth
	}
	return &Processor{
		chain: chain, store: s, analyzer: a, utxo: utxo, consol: consol,
		spent: spentTracker, summary: sum, confirmationDepth: confirmationDepth, log: log,
	}
}

// ProcessBlock implements spec.md §4.2. A nil return means height is
// fully and durably processed (including the pruned-skip case); the
// caller (NetworkSupervisor) advances its cursor only then.
func (p *Processor) ProcessBlock(ctx context.Context, n domain.Network, height int64) error {
	tip, err := p.chain.GetBlockCount(ctx)
	if err != nil {
		return err
	}

	hash, err := p.chain.GetBlockHash(ctx, height)
	if err != nil {
		return p.handleFetchError(ctx, n, height, err)
	}

	block, err := p.chain.GetBlock(ctx, hash)
	if err != nil {
		return p.handleFetchError(ctx, n, height, err)
	}

	decoded := make([]*txdecode.Tx, 0, len(block.Tx))
	txids := make([]string, 0, len(block.Tx))
	for _, tx := range block.Tx {
		d, err := txdecode.Decode(tx.Hex, n)
		if err != nil {
			p.log.WithError(err).Debugf("decode tx %s at height %d", tx.Txid, height)
			continue
		}
		decoded = append(decoded, d)
		txids = append(txids, tx.Txid)
	}

	// Step 2: consolidate mempool for every txid now confirmed.
	if err := p.consol.Consolidate(ctx, n, height, txids); err != nil {
		return err
	}

	// Step 3: analyze every transaction.
	now := time.Now()
	var (
		txBatch    []domain.Transaction
		charmBatch []domain.Charm
		assetBatch []domain.Asset
		dexBatch   []domain.DexOrder
		delta      = store.SummaryDelta{ByType: map[domain.AssetType]int64{}, TagCounters: map[string]int64{}}
	)

	for i, tx := range block.Tx {
		result, err := p.analyzer.Analyze(tx.Txid, tx.Hex, n)
		if err != nil {
			continue // spec.md §7: spell parse failure is silent
		}

		txRow := domain.Transaction{
			Txid: tx.Txid, Network: n, BlockHeight: &height, Ordinal: i,
			Raw: []byte(tx.Hex), Status: domain.TxConfirmed, Confirmations: 1, UpdatedAt: now,
		}
		if result != nil {
			txRow.Charm = result.CharmJSON
		}
		txBatch = append(txBatch, txRow)

		if result == nil {
			continue
		}

		for _, ai := range result.AssetInfos {
			charmBatch = append(charmBatch, domain.Charm{
				Txid: tx.Txid, Vout: ai.VoutIndex, Network: n, AppID: ai.AppID,
				AssetType: domain.AssetTypeFromAppID(ai.AppID), Amount: ai.Amount,
				Address: result.Address, Data: result.CharmJSON, BlockHeight: &height,
				DateCreated: now, Spent: false, Tags: result.Tags, Verified: true,
			})
			assetBatch = append(assetBatch, buildAsset(ai, tx.Txid, height, n, now))
			delta.NewCharms++
			delta.ByType[domain.AssetTypeFromAppID(ai.AppID)]++
		}
		for _, tag := range result.Tags {
			delta.TagCounters[tag]++
		}

		if result.DexResult != nil {
			dexBatch = append(dexBatch, buildDexOrder(result.DexResult, tx.Txid, height, n, now))
		}
	}
	delta.ConfirmedTxs = int64(len(txBatch))

	// Steps 4-9 happen in one DB transaction, spec.md §9 "Scoped
	// resources": a failure leaves the database exactly as it was.
	err = p.store.Atomic(ctx, func(tx store.Store) error {
		bp := persist.New(tx, p.log)
		if err := bp.UpsertTransactions(ctx, txBatch); err != nil {
			return err
		}
		if err := bp.UpsertCharms(ctx, charmBatch); err != nil {
			return err
		}
		if err := bp.UpsertAssets(ctx, assetBatch); err != nil {
			return err
		}
		if err := bp.UpsertDexOrders(ctx, dexBatch); err != nil {
			return err
		}

		// Step 5: mark spent.
		st := spent.New(tx, p.log)
		if err := st.MarkSpent(ctx, n, p.utxo.CollectSpentOutpoints(decoded)); err != nil {
			return err
		}

		// Step 6: auto-register charm holders for monitoring and bump
		// their StatsHolder balance (tokens by amount under the
		// prefix-rewritten parent n/ app_id, NFTs by 1 ownership unit).
		for _, c := range charmBatch {
			if c.Address == "" {
				continue
			}
			if err := tx.RegisterMonitoredAddress(ctx, n, c.Address, domain.SourceIndexer, &height); err != nil {
				return err
			}

			switch c.AssetType {
			case domain.AssetToken:
				parentAppID := domain.TokenAppIDToParentNFT(c.AppID)
				if err := tx.UpsertStatsHolder(ctx, n, parentAppID, c.Address, c.Amount, height); err != nil {
					return err
				}
			case domain.AssetNFT:
				if err := tx.UpsertStatsHolder(ctx, n, c.AppID, c.Address, 1, height); err != nil {
					return err
				}
			}
		}

		// Step 8: address transaction ledger, ahead of step 7 so the
		// AddressUtxo rows this block spends can still be resolved.
		if err := p.recordAddressTransactions(ctx, tx, n, height, now, decoded); err != nil {
			return err
		}

		// Step 7: UTXO index diff, through the transaction-bound store.
		if spentOps := p.utxo.CollectSpentOutpoints(decoded); len(spentOps) > 0 {
			if err := tx.DeleteAddressUTXOs(ctx, n, spentOps); err != nil {
				return err
			}
		}
		if utxos := p.utxo.CollectNewUtxos(n, height, decoded); len(utxos) > 0 {
			if err := tx.InsertAddressUTXOs(ctx, utxos); err != nil {
				return err
			}
		}

		// Step 9: summary counters.
		su := summary.New(tx, p.log)
		if err := su.Apply(ctx, n, height, delta); err != nil {
			return err
		}
		return su.RefreshChainTip(ctx, n, "ok", tip, hash)
	})
	if err != nil {
		return err
	}

	// Step 10: advance block status.
	if err := p.store.MarkDownloaded(ctx, n, height, hash, len(block.Tx)); err != nil {
		return err
	}
	if err := p.store.MarkProcessed(ctx, n, height, len(charmBatch)); err != nil {
		return err
	}
	latest := int64(-1)
	if tip-height+1 >= p.confirmationDepth {
		if err := p.store.MarkConfirmed(ctx, n, height); err != nil {
			return err
		}
		latest = height
	}

	// Step 11: retro-confirm.
	pending, err := p.store.UnconfirmedHeights(ctx, n, tip, p.confirmationDepth)
	if err != nil {
		return err
	}
	for _, h := range pending {
		if err := p.store.MarkConfirmed(ctx, n, h); err != nil {
			return err
		}
		if h > latest {
			latest = h
		}
	}
	if latest < 0 {
		return nil
	}
	return p.store.MarkLatestConfirmed(ctx, n, latest)
}

// handleFetchError implements spec.md §4.2 step 1's skip rule: a
// pruned/out-of-range/missing block is marked processed with zero
// charms and the cursor still advances; any other fetch error propagates
// for the supervisor's retry loop.
func (p *Processor) handleFetchError(ctx context.Context, n domain.Network, height int64, err error) error {
	if errkind.Classify(err) != errkind.KindSkipBlock {
		return err
	}

	p.log.WithError(err).Warnf("skipping unavailable block %d", height)
	if err := p.store.MarkDownloaded(ctx, n, height, "", 0); err != nil {
		return err
	}
	return p.store.MarkProcessed(ctx, n, height, 0)
}

// recordAddressTransactions implements spec.md §4.2 step 8: the in/out
// ledger for monitored addresses touched by this block. "Out" entries
// are attributed by resolving the AddressUtxo rows UtxoIndexer is about
// to delete, before they disappear; "in" entries come straight from the
// block's decoded outputs.
func (p *Processor) recordAddressTransactions(ctx context.Context, tx store.Store, n domain.Network, height int64, now time.Time, decoded []*txdecode.Tx) error {
	spendingBy := map[store.Outpoint]string{}
	var spent []store.Outpoint
	for _, d := range decoded {
		for _, in := range d.Inputs {
			spendingBy[in] = d.Txid
			spent = append(spent, in)
		}
	}

	var ats []domain.AddressTransaction

	if len(spent) > 0 {
		resolved, err := tx.ResolveAddressUtxos(ctx, n, spent)
		if err != nil {
			return err
		}
		for _, u := range resolved {
			spendTxid := spendingBy[store.Outpoint{Txid: u.Txid, Vout: u.Vout}]
			if spendTxid == "" {
				continue
			}
			ats = append(ats, domain.AddressTransaction{
				Txid: spendTxid, Address: u.Address, Network: n, Direction: domain.DirectionOut,
				Amount: u.Value, BlockHeight: &height, Confirmations: 1, CreatedAt: now,
			})
		}
	}

	for _, d := range decoded {
		for _, out := range d.Outputs {
			if out.Address == "" || !p.utxo.IsMonitored(n, out.Address) {
				continue
			}
			ats = append(ats, domain.AddressTransaction{
				Txid: d.Txid, Address: out.Address, Network: n, Direction: domain.DirectionIn,
				Amount: out.Value, BlockHeight: &height, Confirmations: 1, CreatedAt: now,
			})
		}
	}

	if len(ats) == 0 {
		return nil
	}
	return tx.InsertAddressTransactions(ctx, ats)
}

// buildAsset maps one detected asset into its Asset row, spec.md §4.5's
// accumulation rule: NFTs start at total_supply=0, tokens carry their
// minted amount as the delta the store layer sums into the parent.
func buildAsset(ai spellparser.AssetInfo, txid string, height int64, n domain.Network, now time.Time) domain.Asset {
	assetType := domain.AssetTypeFromAppID(ai.AppID)
	totalSupply := ai.Amount
	if assetType == domain.AssetNFT {
		totalSupply = 0
	}

	return domain.Asset{
		ID:          uuid.NewString(),
		AppID:       ai.AppID,
		Txid:        txid,
		VoutIndex:   ai.VoutIndex,
		BlockHeight: height,
		AssetType:   assetType,
		Network:     n,
		Decimals:    8,
		TotalSupply: totalSupply,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// buildDexOrder maps a detected DEX order into its persisted row,
// spec.md §3 DexOrder and §4.1's operation classification.
func buildDexOrder(dex *analyzer.DexDetectionResult, txid string, height int64, n domain.Network, now time.Time) domain.DexOrder {
	status := domain.OrderOpen
	switch dex.Operation {
	case "FulfillAsk", "FulfillBid":
		status = domain.OrderFilled
	case "PartialFill":
		status = domain.OrderPartial
	case "Cancel":
		status = domain.OrderCancelled
	}

	return domain.DexOrder{
		OrderID:     txid,
		Txid:        txid,
		Network:     n,
		BlockHeight: &height,
		Side:        dex.Side,
		ExecType:    dex.ExecType,
		Amount:      dex.Amount,
		Quantity:    dex.Quantity,
		AssetAppID:  dex.AssetAppID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
