package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/stratalake/stratalake/internal/errors"
	"github.com/stratalake/stratalake/internal/storage"
	"github.com/stratalake/stratalake/internal/store"
)

// partitionColumns maps tables to the expression used for date partitioning.
// Tables without an entry are exported as a single snapshot file.
var partitionColumns = map[string]string{
	"structured_events": "date(event_timestamp)",
	"fact_events":       "event_date",
}

// Result describes one exported table.
type Result struct {
	Table string
	Rows  int64
	Files []string
	// Partitioned reports whether the date-partitioned layout was used;
	// false means the single-file fallback (or a table with no date column).
	Partitioned bool
	// MirrorFailures counts files that failed to upload to the mirror.
	MirrorFailures int
}

// Exporter snapshots tables from the analytical store into columnar files
// under exportDir/<layer>/<table>/. Each export replaces the table's previous
// snapshot. A nil mirror disables mirroring.
type Exporter struct {
	db        store.AnalyticalStore
	exportDir string
	mirror    storage.ObjectStore
}

// NewExporter creates an exporter writing under exportDir.
func NewExporter(db store.AnalyticalStore, exportDir string, mirror storage.ObjectStore) *Exporter {
	return &Exporter{db: db, exportDir: exportDir, mirror: mirror}
}

// ExportLayer snapshots every table of the given layer. Per-table failures
// are collected rather than aborting the remaining tables.
func (e *Exporter) ExportLayer(ctx context.Context, layer string) ([]*Result, error) {
	tables, ok := store.LayerTables[layer]
	if !ok {
		return nil, apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("unknown layer %q", layer), nil)
	}

	var results []*Result
	var errs []error
	for _, table := range tables {
		res, err := e.ExportTable(ctx, layer, table)
		if err != nil {
			log.Printf("export: %s/%s failed: %v", layer, table, err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// ExportTable snapshots a single table. Tables with a date column are
// exported one file per date; when the partitioned pass fails the table is
// re-exported as a single file so a snapshot always lands.
func (e *Exporter) ExportTable(ctx context.Context, layer, table string) (*Result, error) {
	tableDir := filepath.Join(e.exportDir, layer, table)
	if err := os.RemoveAll(tableDir); err != nil {
		return nil, apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to clear previous snapshot of %s", table), err)
	}

	if partCol, ok := partitionColumns[table]; ok {
		res, err := e.exportPartitioned(ctx, layer, table, partCol)
		if err == nil {
			e.mirrorFiles(ctx, res)
			return res, nil
		}
		log.Printf("export: %s: partitioned export failed, falling back to single file: %v", table, err)
		if err := os.RemoveAll(tableDir); err != nil {
			return nil, apperrors.NewExportError(apperrors.CodeSnapshotFailed,
				fmt.Sprintf("failed to clear partial snapshot of %s", table), err)
		}
	}

	res, err := e.exportSingle(ctx, layer, table)
	if err != nil {
		return nil, err
	}
	e.mirrorFiles(ctx, res)
	return res, nil
}

func (e *Exporter) exportPartitioned(ctx context.Context, layer, table, partCol string) (*Result, error) {
	_, dateRows, err := e.db.Query(ctx,
		fmt.Sprintf("SELECT DISTINCT %s AS dt FROM %s WHERE %s IS NOT NULL ORDER BY 1", partCol, table, partCol))
	if err != nil {
		return nil, apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to list partitions of %s", table), err)
	}

	res := &Result{Table: table, Partitioned: true}
	for _, row := range dateRows {
		dt := stringValue(row[0])
		if dt == "" {
			continue
		}

		columns, rows, err := e.db.Query(ctx,
			fmt.Sprintf("SELECT * FROM %s WHERE %s = '%s'", table, partCol, escapeSQL(dt)))
		if err != nil {
			return nil, apperrors.NewExportError(apperrors.CodeSnapshotFailed,
				fmt.Sprintf("failed to read partition %s of %s", dt, table), err)
		}

		path := filepath.Join(e.exportDir, layer, table, "dt="+dt, "part-00000.col")
		if err := e.writeSnapshot(path, table, columns, rows); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
		res.Rows += int64(len(rows))
	}

	log.Printf("export: %s: wrote %d rows across %d partition files", table, res.Rows, len(res.Files))
	return res, nil
}

func (e *Exporter) exportSingle(ctx context.Context, layer, table string) (*Result, error) {
	columns, rows, err := e.db.Query(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to read %s", table), err)
	}

	path := filepath.Join(e.exportDir, layer, table, "part-00000.col")
	if err := e.writeSnapshot(path, table, columns, rows); err != nil {
		return nil, err
	}

	log.Printf("export: %s: wrote %d rows to single snapshot file", table, len(rows))
	return &Result{
		Table: table,
		Rows:  int64(len(rows)),
		Files: []string{path},
	}, nil
}

// writeSnapshot encodes and atomically writes one snapshot file.
func (e *Exporter) writeSnapshot(path, table string, columns []string, rows [][]interface{}) error {
	data, err := EncodeSnapshot(table, columns, rows)
	if err != nil {
		return apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to encode snapshot of %s", table), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to create snapshot directory for %s", table), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to write snapshot of %s", table), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperrors.NewExportError(apperrors.CodeSnapshotFailed,
			fmt.Sprintf("failed to finalize snapshot of %s", table), err)
	}
	return nil
}

// mirrorFiles uploads the result's files to the mirror. Upload failures are
// logged and counted but never fail the export: the local snapshot is the
// source of truth and the mirror catches up on the next run.
func (e *Exporter) mirrorFiles(ctx context.Context, res *Result) {
	if e.mirror == nil {
		return
	}
	for _, path := range res.Files {
		rel, err := filepath.Rel(e.exportDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		objectPath := filepath.ToSlash(rel)
		if err := e.mirror.Upload(ctx, path, objectPath); err != nil {
			res.MirrorFailures++
			log.Printf("export: mirror upload of %s failed: %v", objectPath, err)
		}
	}
	if res.MirrorFailures == 0 && len(res.Files) > 0 {
		log.Printf("export: %s: mirrored %d files", res.Table, len(res.Files))
	}
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
