// Package pipeline orchestrates one batch cycle: receive, persist raw,
// transform through the structured and modeled layers, export snapshots, and
// acknowledge the consumed messages.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/stratalake/stratalake/internal/config"
	"github.com/stratalake/stratalake/internal/export"
	"github.com/stratalake/stratalake/internal/observability"
	"github.com/stratalake/stratalake/internal/raw"
	"github.com/stratalake/stratalake/internal/source"
	"github.com/stratalake/stratalake/internal/sqlmodel"
	"github.com/stratalake/stratalake/internal/store"
)

// Scripts per transform layer, in execution order. Parent tables are filled
// before child tables so the anti-joins see a complete parent set.
var (
	structuredScripts = []string{"structured_events", "structured_items"}
	modeledScripts    = []string{"fact_events", "fact_event_items", "dim_items", "dim_users"}
)

// BatchStats summarizes one processed batch. A poll that returned no messages
// yields zero-valued stats.
type BatchStats struct {
	BatchID       string
	Received      int
	Invalid       int
	ParseFailures int
	Staged        int
	Deleted       int
	// Deltas maps each layer table to the rows this batch added to it.
	Deltas  map[string]int64
	Elapsed time.Duration
}

// Orchestrator runs the batch cycle against a message source, the raw store,
// the SQL model runner, and the optional exporters.
type Orchestrator struct {
	cfg      *config.Config
	src      source.MessageSource
	rawStore *raw.Store
	db       store.AnalyticalStore
	runner   *sqlmodel.Runner
	// exporters are keyed by layer; a missing entry disables export for it.
	exporters map[string]*export.Exporter
	stats     *observability.PipelineStats
	node      *snowflake.Node
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	cfg *config.Config,
	src source.MessageSource,
	rawStore *raw.Store,
	db store.AnalyticalStore,
	runner *sqlmodel.Runner,
	exporters map[string]*export.Exporter,
	stats *observability.PipelineStats,
) (*Orchestrator, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create batch ID generator: %w", err)
	}
	if exporters == nil {
		exporters = map[string]*export.Exporter{}
	}
	if stats == nil {
		stats = observability.NewPipelineStats()
	}
	return &Orchestrator{
		cfg:       cfg,
		src:       src,
		rawStore:  rawStore,
		db:        db,
		runner:    runner,
		exporters: exporters,
		stats:     stats,
		node:      node,
	}, nil
}

// Stats returns the orchestrator's statistics tracker.
func (o *Orchestrator) Stats() *observability.PipelineStats {
	return o.stats
}

// ProcessBatch runs one full cycle. On any raw or transform failure the batch
// aborts without acknowledging its messages, so the source redelivers them
// after the visibility timeout. Messages are only acknowledged when the cycle
// reached the modeled layer; a cycle bounded at raw or structured leaves them
// queued for a later modeled run. The modeled scripts scan the whole
// structured layer each cycle; their anti-join inserts keep rows modeled in
// earlier cycles from being inserted again.
func (o *Orchestrator) ProcessBatch(ctx context.Context) (*BatchStats, error) {
	start := time.Now()

	messages, err := o.src.Receive(ctx)
	o.stats.RecordStage(observability.StageReceive, int64(len(messages)), time.Since(start))
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		o.stats.RecordEmptyPoll()
		return &BatchStats{Deltas: map[string]int64{}}, nil
	}

	batchID := o.node.Generate().String()
	stats := &BatchStats{
		BatchID:  batchID,
		Received: len(messages),
		Deltas:   map[string]int64{},
	}
	log.Printf("pipeline: batch %s: received %d messages", batchID, len(messages))

	if err := o.persistRaw(ctx, batchID, messages, stats); err != nil {
		o.stats.RecordFailedBatch()
		return nil, err
	}

	if o.layerEnabled(config.LayerStructured) {
		if err := o.transformLayer(ctx, batchID, "structured", structuredScripts, stats); err != nil {
			o.stats.RecordFailedBatch()
			return nil, err
		}
		o.exportLayer(ctx, "structured", observability.StageStructuredExport)
	}

	if o.layerEnabled(config.LayerModeled) {
		if err := o.transformLayer(ctx, batchID, "modeled", modeledScripts, stats); err != nil {
			o.stats.RecordFailedBatch()
			return nil, err
		}
		o.exportLayer(ctx, "modeled", observability.StageModeledExport)
	}

	o.unstage(ctx, batchID)

	// Deletion is reserved for cycles that ran the modeling scripts. A
	// raw- or structured-bounded cycle keeps its messages queued, at the
	// cost of duplicate rows when they are eventually redelivered.
	if o.cfg.Pipeline.DeleteAfterProcessing && o.layerEnabled(config.LayerModeled) {
		stats.Deleted = o.deleteMessages(ctx, messages)
	}

	stats.Elapsed = time.Since(start)
	o.stats.RecordBatch(stats.Received, stats.Deleted, stats.Invalid, stats.ParseFailures)
	log.Printf("pipeline: batch %s: done in %s (invalid=%d parse_failures=%d deleted=%d)",
		batchID, stats.Elapsed.Round(time.Millisecond), stats.Invalid, stats.ParseFailures, stats.Deleted)

	return stats, nil
}

// persistRaw validates and writes every message to the raw layer. Invalid
// messages are persisted for audit but not staged for transformation.
func (o *Orchestrator) persistRaw(ctx context.Context, batchID string, messages []source.Message, stats *BatchStats) error {
	start := time.Now()
	stage := o.layerEnabled(config.LayerStructured)

	for _, msg := range messages {
		res := raw.Validate(msg.Body)
		if !res.Valid {
			stats.Invalid++
			log.Printf("pipeline: batch %s: message %s failed validation: %v",
				batchID, msg.MessageID, res.Problems)
		}

		rec, err := o.rawStore.Save(ctx, msg, batchID, stage && res.Valid)
		if err != nil {
			return err
		}
		if rec.ParseFailed {
			stats.ParseFailures++
		}
		if rec.Staged {
			stats.Staged++
		}
	}

	o.stats.RecordStage(observability.StageRaw, int64(len(messages)), time.Since(start))
	log.Printf("pipeline: batch %s: persisted %d raw records (%d staged)",
		batchID, len(messages), stats.Staged)
	return nil
}

// transformLayer runs a layer's scripts and records the per-table row deltas
// by bracketing the run with table counts. Only the structured scripts are
// batch-scoped; the modeled scripts rescan the structured layer and take no
// parameters.
func (o *Orchestrator) transformLayer(ctx context.Context, batchID, layer string, scripts []string, stats *BatchStats) error {
	start := time.Now()

	before, err := o.tableCounts(ctx, layer)
	if err != nil {
		return err
	}

	var params map[string]string
	if layer == "structured" {
		params = map[string]string{
			"batch_id": batchID,
			"raw_path": o.cfg.RawPath(),
		}
	}
	for _, script := range scripts {
		if err := o.runner.Run(ctx, script, params); err != nil {
			return err
		}
	}

	after, err := o.tableCounts(ctx, layer)
	if err != nil {
		return err
	}

	var layerRows int64
	for _, table := range store.LayerTables[layer] {
		delta := after[table] - before[table]
		stats.Deltas[table] = delta
		layerRows += delta
		log.Printf("pipeline: batch %s: %s: %+d rows (total %d)", batchID, table, delta, after[table])
	}

	stage := observability.StageStructured
	if layer == "modeled" {
		stage = observability.StageModeled
	}
	o.stats.RecordStage(stage, layerRows, time.Since(start))
	return nil
}

// exportLayer snapshots a layer's tables. Export problems are logged, never
// fatal: the batch's messages must still be acknowledged once the store has
// the rows, and the next cycle re-exports everything anyway.
func (o *Orchestrator) exportLayer(ctx context.Context, layer, stage string) {
	exporter, ok := o.exporters[layer]
	if !ok || exporter == nil {
		return
	}

	start := time.Now()
	results, err := exporter.ExportLayer(ctx, layer)
	if err != nil {
		log.Printf("pipeline: %s export had failures: %v", layer, err)
	}

	var rows int64
	for _, res := range results {
		rows += res.Rows
	}
	o.stats.RecordStage(stage, rows, time.Since(start))
}

// unstage drops the batch's staging rows. The raw files on disk remain the
// durable record; a failure here only leaves dead rows behind.
func (o *Orchestrator) unstage(ctx context.Context, batchID string) {
	if err := o.db.Exec(ctx, "DELETE FROM raw_events WHERE batch_id = ?", batchID); err != nil {
		log.Printf("pipeline: batch %s: failed to clear staging rows: %v", batchID, err)
	}
}

// deleteMessages acknowledges the batch. Individual delete failures are
// logged and skipped; the redelivered message is deduplicated downstream.
func (o *Orchestrator) deleteMessages(ctx context.Context, messages []source.Message) int {
	deleted := 0
	for _, msg := range messages {
		if err := o.src.Delete(ctx, msg.ReceiptHandle); err != nil {
			log.Printf("pipeline: failed to delete message %s: %v", msg.MessageID, err)
			continue
		}
		deleted++
	}
	return deleted
}

// tableCounts snapshots the row count of each table in a layer.
func (o *Orchestrator) tableCounts(ctx context.Context, layer string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range store.LayerTables[layer] {
		count, err := o.db.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		counts[table] = count
	}
	return counts, nil
}

// layerEnabled reports whether the configured terminal layer includes the
// given layer.
func (o *Orchestrator) layerEnabled(layer config.Layer) bool {
	order := map[config.Layer]int{
		config.LayerRaw:        0,
		config.LayerStructured: 1,
		config.LayerModeled:    2,
	}
	return order[o.cfg.Layer] >= order[layer]
}
