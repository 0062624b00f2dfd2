// Package main implements the stratalake-stats binary: a read-only view of
// the analytical store and the exported snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/stratalake/stratalake/internal/config"
	"github.com/stratalake/stratalake/internal/export"
	"github.com/stratalake/stratalake/internal/observability"
	"github.com/stratalake/stratalake/internal/store"
)

func main() {
	var (
		configFile   string
		dataDir      string
		snapshotFile string
		showHelp     bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&snapshotFile, "snapshot", "", "Decode a snapshot file and print its summary")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "stratalake-stats - Inspect the analytical store and snapshots\n\n")
		fmt.Fprintf(os.Stderr, "Usage: stratalake-stats [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if snapshotFile != "" {
		printSnapshot(snapshotFile)
		return
	}

	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Resolve()

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	fmt.Printf("Store: %s\n\n", cfg.Store.Path)
	for _, layer := range []string{"structured", "modeled"} {
		fmt.Printf("%s layer:\n", layer)
		totals, err := observability.LayerTotals(ctx, db, layer)
		if err != nil {
			log.Fatalf("Failed to read %s totals: %v", layer, err)
		}
		for _, table := range store.LayerTables[layer] {
			fmt.Printf("  %-20s %d rows\n", table, totals[table])
		}
		fmt.Println()
	}

	staged, err := db.Count(ctx, "raw_events")
	if err != nil {
		log.Fatalf("Failed to count staging rows: %v", err)
	}
	fmt.Printf("staging: %d rows pending\n", staged)
}

func printSnapshot(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read snapshot: %v", err)
	}

	snap, err := export.DecodeSnapshot(data)
	if err != nil {
		log.Fatalf("Failed to decode snapshot: %v", err)
	}

	fmt.Printf("Snapshot: %s\n", path)
	fmt.Printf("  Table:    %s\n", snap.Table)
	fmt.Printf("  Rows:     %d\n", len(snap.Rows))
	fmt.Printf("  Columns:  %d\n", len(snap.Columns))
	fmt.Printf("  Created:  %s\n", snap.CreatedAt)
	for _, col := range snap.Columns {
		fmt.Printf("    - %s\n", col)
	}
}
