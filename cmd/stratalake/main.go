// Package main implements the stratalake pipeline binary: it consumes
// analytics events from the configured queue, persists them to the raw layer,
// and advances them through the structured and modeled layers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stratalake/stratalake/internal/config"
	"github.com/stratalake/stratalake/internal/export"
	"github.com/stratalake/stratalake/internal/observability"
	"github.com/stratalake/stratalake/internal/pipeline"
	"github.com/stratalake/stratalake/internal/raw"
	"github.com/stratalake/stratalake/internal/source"
	"github.com/stratalake/stratalake/internal/sqlmodel"
	"github.com/stratalake/stratalake/internal/storage"
	"github.com/stratalake/stratalake/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		layer       string
		once        bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&layer, "layer", "", "Terminal layer to process through: raw, structured, modeled")
	flag.BoolVar(&once, "once", false, "Process a single batch and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Stratalake - Layered Analytics Event Pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: stratalake [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stratalake --data-dir /data/stratalake\n")
		fmt.Fprintf(os.Stderr, "  stratalake --layer structured --once\n")
		fmt.Fprintf(os.Stderr, "  stratalake --config /etc/stratalake/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  STRATALAKE_LAYER          Terminal layer (raw, structured, modeled)\n")
		fmt.Fprintf(os.Stderr, "  STRATALAKE_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  STRATALAKE_QUEUE_URL      SQS queue URL\n")
		fmt.Fprintf(os.Stderr, "  STRATALAKE_QUEUE_NAME     SQS queue name (when no URL)\n")
		fmt.Fprintf(os.Stderr, "  STRATALAKE_EXPORT_MIRROR  Snapshot mirror (none, local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("stratalake version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// A .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, layer)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator, db, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer db.Close()

	if once {
		stats, err := orchestrator.ProcessBatch(ctx)
		if err != nil {
			log.Fatalf("Batch failed: %v", err)
		}
		log.Printf("Batch %s: received=%d staged=%d deleted=%d",
			stats.BatchID, stats.Received, stats.Staged, stats.Deleted)
		printLayerTotals(ctx, cfg, db)
		return
	}

	runner := pipeline.NewRunner(orchestrator, cfg.Pipeline.PollInterval)
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	// Graceful shutdown: the in-flight batch finishes before Stop returns.
	if err := runner.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	totals := orchestrator.Stats().Totals()
	log.Printf("Processed %d batches, %d messages (%d invalid, %d parse failures, %d empty polls)",
		totals.Batches, totals.MessagesReceived, totals.InvalidMessages,
		totals.ParseFailures, totals.EmptyPolls)
	printLayerTotals(ctx, cfg, db)
}

// buildPipeline wires the source, stores, runner, and exporters from config.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Orchestrator, store.AnalyticalStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}

	rawStore, err := raw.NewStore(cfg.RawPath(), db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	src, err := buildSource(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	if count, err := src.ApproximateCount(ctx); err == nil {
		log.Printf("Queue depth at startup: ~%d messages", count)
	}

	exporters, err := buildExporters(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	runner := sqlmodel.NewRunner(db, cfg.ScriptsDir)
	orchestrator, err := pipeline.NewOrchestrator(cfg, src, rawStore, db, runner,
		exporters, observability.NewPipelineStats())
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return orchestrator, db, nil
}

func buildSource(ctx context.Context, cfg *config.Config) (source.MessageSource, error) {
	switch cfg.Source.Type {
	case "memory":
		return source.NewMemorySource(cfg.Source.MaxMessages), nil
	default:
		return source.NewSQSSource(ctx, source.SQSConfig{
			QueueURL:          cfg.Source.QueueURL,
			QueueName:         cfg.Source.QueueName,
			Region:            cfg.Source.Region,
			MaxMessages:       cfg.Source.MaxMessages,
			VisibilityTimeout: cfg.Source.VisibilityTimeout,
			WaitTime:          cfg.Source.WaitTime,
		})
	}
}

func buildExporters(ctx context.Context, cfg *config.Config, db store.AnalyticalStore) (map[string]*export.Exporter, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}

	var mirror storage.ObjectStore
	switch cfg.Export.Mirror {
	case "local":
		local, err := storage.NewLocalStore(cfg.Export.MirrorPath)
		if err != nil {
			return nil, err
		}
		mirror = local
	case "s3":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:   cfg.Export.S3.Bucket,
			Region:   cfg.Export.S3.Region,
			Endpoint: cfg.Export.S3.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		mirror = s3Store
	}

	return map[string]*export.Exporter{
		"structured": export.NewExporter(db, cfg.StructuredPath(), mirror),
		"modeled":    export.NewExporter(db, cfg.ModeledPath(), mirror),
	}, nil
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, layer string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags win.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if layer != "" {
		cfg.Layer = config.Layer(layer)
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printBanner(cfg *config.Config) {
	log.Printf("Stratalake - Layered Analytics Event Pipeline")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Layer:       %s", cfg.Layer)
	log.Printf("  Data Dir:    %s", cfg.DataDir)
	log.Printf("  Scripts Dir: %s", cfg.ScriptsDir)
	log.Printf("  Source:      %s", cfg.Source.Type)
	log.Printf("  Export:      enabled=%t mirror=%s", cfg.Export.Enabled, cfg.Export.Mirror)
	log.Printf("  Poll:        every %s", cfg.Pipeline.PollInterval)
	log.Printf("")
}

func printLayerTotals(ctx context.Context, cfg *config.Config, db store.AnalyticalStore) {
	for _, layer := range []string{"structured", "modeled"} {
		totals, err := observability.LayerTotals(ctx, db, layer)
		if err != nil {
			log.Printf("Failed to read %s totals: %v", layer, err)
			continue
		}
		for _, table := range store.LayerTables[layer] {
			log.Printf("  %-20s %d rows", table, totals[table])
		}
	}
}
