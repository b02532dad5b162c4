// Command migrate applies the schema to DATABASE_URL without starting
// any network supervisor, for use in deploy scripts that want schema
// creation as a separate step from the indexer's own startup. store.Open
// already applies the embedded schema idempotently, so this is a thin
// wrapper: spec.md §1 keeps the standalone schema-migration tool itself
// out of scope, this binary exists only so deploys have an explicit step.
package main

import (
	"fmt"
	"os"

	"github.com/CharmsDev/charms-explorer-sub000/internal/config"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
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

	db, err := store.Open(cfg.DatabaseURL, false)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()

	fmt.Printf("schema applied to %s\n", cfg.DatabaseURL)
	return nil
}
