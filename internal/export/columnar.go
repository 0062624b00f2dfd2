// Package export writes columnar snapshots of structured and modeled tables
// and optionally mirrors them to an object store.
package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
)

// Snapshot file format:
//   - 4 bytes: magic "STSN"
//   - 1 byte:  format version
//   - 4 bytes: header length (uint32, little-endian)
//   - header JSON (table, columns, row_count, created_at)
//   - per column, in header order:
//     4 bytes block length (uint32, little-endian), then the block:
//     snappy-compressed JSON array of that column's values
//
// Values are stored column-major so a reader can pull a single column
// without decompressing the rest.
const (
	snapshotMagic   = "STSN"
	snapshotVersion = 1
)

// Common decode errors.
var (
	ErrBadMagic       = errors.New("not a snapshot file")
	ErrBadVersion     = errors.New("unsupported snapshot version")
	ErrTruncated      = errors.New("snapshot truncated")
	ErrColumnMismatch = errors.New("column lengths differ")
)

// Snapshot is a decoded snapshot.
type Snapshot struct {
	Table     string
	Columns   []string
	Rows      [][]interface{}
	CreatedAt time.Time
}

type snapshotHeader struct {
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
	RowCount  int64    `json:"row_count"`
	CreatedAt string   `json:"created_at"`
}

// EncodeSnapshot serializes row-major query results into the columnar
// snapshot format.
func EncodeSnapshot(table string, columns []string, rows [][]interface{}) ([]byte, error) {
	header := snapshotHeader{
		Table:     table,
		Columns:   columns,
		RowCount:  int64(len(rows)),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("export: failed to marshal header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	buf.WriteByte(snapshotVersion)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(headerJSON)))
	buf.Write(lenBuf[:])
	buf.Write(headerJSON)

	for col := range columns {
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			if col >= len(row) {
				return nil, fmt.Errorf("export: row %d has %d values, want %d", i, len(row), len(columns))
			}
			values[i] = normalizeValue(row[col])
		}

		valuesJSON, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("export: failed to marshal column %s: %w", columns[col], err)
		}

		block := snappy.Encode(nil, valuesJSON)
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(block)))
		buf.Write(lenBuf[:])
		buf.Write(block)
	}

	return buf.Bytes(), nil
}

// DecodeSnapshot parses a snapshot file back into row-major form.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < len(snapshotMagic)+1+4 {
		return nil, ErrTruncated
	}
	if string(data[:4]) != snapshotMagic {
		return nil, ErrBadMagic
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, data[4])
	}

	offset := 5
	headerLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+headerLen > len(data) {
		return nil, ErrTruncated
	}

	var header snapshotHeader
	if err := json.Unmarshal(data[offset:offset+headerLen], &header); err != nil {
		return nil, fmt.Errorf("export: failed to parse header: %w", err)
	}
	offset += headerLen

	columns := make([][]interface{}, len(header.Columns))
	for i := range header.Columns {
		if offset+4 > len(data) {
			return nil, ErrTruncated
		}
		blockLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if offset+blockLen > len(data) {
			return nil, ErrTruncated
		}

		valuesJSON, err := snappy.Decode(nil, data[offset:offset+blockLen])
		if err != nil {
			return nil, fmt.Errorf("export: failed to decompress column %s: %w", header.Columns[i], err)
		}
		offset += blockLen

		var values []interface{}
		if err := json.Unmarshal(valuesJSON, &values); err != nil {
			return nil, fmt.Errorf("export: failed to parse column %s: %w", header.Columns[i], err)
		}
		if int64(len(values)) != header.RowCount {
			return nil, ErrColumnMismatch
		}
		columns[i] = values
	}

	rows := make([][]interface{}, header.RowCount)
	for i := range rows {
		row := make([]interface{}, len(columns))
		for c := range columns {
			row[c] = columns[c][i]
		}
		rows[i] = row
	}

	createdAt, _ := time.Parse(time.RFC3339, header.CreatedAt)

	return &Snapshot{
		Table:     header.Table,
		Columns:   header.Columns,
		Rows:      rows,
		CreatedAt: createdAt,
	}, nil
}

// normalizeValue maps driver-specific scan values onto JSON-friendly types.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
