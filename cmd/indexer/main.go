// Command indexer is the process entrypoint: it loads configuration,
// opens the store, wires every per-network component, and runs one
// NetworkSupervisor per enabled network until SIGINT/SIGTERM, per
// spec.md §6's "no flags; everything via environment" operational
// surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/CharmsDev/charms-explorer-sub000/internal/analyzer"
	"github.com/CharmsDev/charms-explorer-sub000/internal/blockprocessor"
	"github.com/CharmsDev/charms-explorer-sub000/internal/chainclient"
	"github.com/CharmsDev/charms-explorer-sub000/internal/config"
	"github.com/CharmsDev/charms-explorer-sub000/internal/logging"
	"github.com/CharmsDev/charms-explorer-sub000/internal/mempoolconsolidator"
	"github.com/CharmsDev/charms-explorer-sub000/internal/mempoolprocessor"
	"github.com/CharmsDev/charms-explorer-sub000/internal/rawcache"
	"github.com/CharmsDev/charms-explorer-sub000/internal/reindex"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spellparser"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spent"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
	"github.com/CharmsDev/charms-explorer-sub000/internal/summary"
	"github.com/CharmsDev/charms-explorer-sub000/internal/supervisor"
	"github.com/CharmsDev/charms-explorer-sub000/internal/utxoindex"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logging.Init(os.Getenv("LOG_FILE"), envOr("LOG_LEVEL", "info"))
	log := logging.For("indexer")

	db, err := store.Open(cfg.DatabaseURL, cfg.StoreFastCommit)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()

	var enabled []*config.NetworkConfig
	for _, nc := range cfg.Networks {
		if nc.Enabled {
			enabled = append(enabled, nc)
		}
	}
	if len(enabled) == 0 {
		log.Warn("no networks enabled, nothing to do")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, nc := range enabled {
		nc := nc

		built, err := wireNetwork(db, nc, cfg)
		if err != nil {
			return fmt.Errorf("wire %s: %w", nc.Network, err)
		}
		defer built.chain.Close()
		defer built.cache.Close()

		if cfg.ReindexMode {
			g.Go(func() error { return built.reindexer.Drain(gctx, nc.Network) })
			continue
		}

		g.Go(func() error { return built.supervisor.Run(gctx) })
	}

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// wiredNetwork holds everything per network that needs an explicit
// Close on shutdown.
type wiredNetwork struct {
	chain      *chainclient.BitcoindClient
	cache      *rawcache.Cache
	reindexer  *reindex.Path
	supervisor *supervisor.Supervisor
}

// wireNetwork builds the full component graph for one network: chain
// client, spell parser, raw-tx cache, the leaf orchestration packages
// (analyzer, utxo index, mempool consolidator, spent tracker, summary
// updater), then BlockProcessor, MempoolProcessor, ReindexPath, and
// finally the NetworkSupervisor that owns them, per spec.md §4.9.
func wireNetwork(db *store.SQLiteStore, nc *config.NetworkConfig, cfg *config.Config) (*wiredNetwork, error) {
	log := logging.ForNetwork("supervisor", nc.Network.String())

	chain, err := chainclient.NewBitcoindClient(nc.RPC.Addr(), nc.RPC.Username, nc.RPC.Password)
	if err != nil {
		return nil, fmt.Errorf("chainclient: %w", err)
	}

	cachePath := fmt.Sprintf("rawcache-%s", nc.Network.Name)
	cache, err := rawcache.Open(cachePath)
	if err != nil {
		chain.Close()
		return nil, fmt.Errorf("rawcache: %w", err)
	}

	parser := spellparser.NewEnvelopeParser()
	a := analyzer.New(parser)
	utxo := utxoindex.New(db)
	consol := mempoolconsolidator.New(db)
	spentTracker := spent.New(db, logging.ForNetwork("spent", nc.Network.String()))
	sum := summary.New(db, logging.ForNetwork("summary", nc.Network.String()))

	if err := utxo.Reload(context.Background(), nc.Network); err != nil {
		log.WithError(err).Warn("initial monitored-address load failed")
	}

	block := blockprocessor.New(chain, db, a, utxo, consol, spentTracker, sum, nc.ConfirmationDepth,
		logging.ForNetwork("blockprocessor", nc.Network.String()))

	mempoolOpts := mempoolprocessor.Options{
		PollInterval: cfg.MempoolPollInterval,
		MaxPerCycle:  cfg.MempoolMaxPerCycle,
		CleanupEvery: cfg.MempoolCleanupEvery,
		ReloadEvery:  cfg.MempoolReloadEvery,
		StaleAfter:   cfg.MempoolStaleAfter,
		SeenCap:      10_000,
	}
	mempool := mempoolprocessor.New(nc.Network, chain, db, a, utxo, cache, mempoolOpts,
		logging.ForNetwork("mempoolprocessor", nc.Network.String()))

	rp := reindex.New(chain, db, a, spentTracker, logging.ForNetwork("reindex", nc.Network.String()))

	sv := supervisor.New(nc.Network, chain, db, block, mempool, rp, nc.GenesisBlockHeight, cfg.ProcessIntervalMS, log)

	return &wiredNetwork{chain: chain, cache: cache, reindexer: rp, supervisor: sv}, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
