// Package store provides the analytical store abstraction that layer
// transformations execute against, plus its SQLite implementation.
package store

import (
	"context"
)

// AnalyticalStore abstracts SQL execution against the layered tables.
// It executes statement text and reports row counts; it has no notion of
// "rows inserted this run", which is why callers bracket Count around a
// stage to measure its delta.
type AnalyticalStore interface {
	// Exec executes a single SQL statement. Optional args bind to '?'
	// placeholders for parameterized inserts.
	Exec(ctx context.Context, query string, args ...interface{}) error

	// Count returns the current row count for a table.
	Count(ctx context.Context, table string) (int64, error)

	// Query executes a SQL query and returns column names plus all rows.
	// Intended for snapshot export and stats reporting, not hot paths.
	Query(ctx context.Context, query string) ([]string, [][]interface{}, error)

	// Close closes the store connection.
	Close() error
}
