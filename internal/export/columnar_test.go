package export

import (
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	columns := []string{"event_id", "user_id", "price", "quantity", "coupon"}
	rows := [][]interface{}{
		{"e-1", "u-1", 9.99, int64(2), nil},
		{"e-2", "u-2", 150.0, int64(1), "SUMMER"},
		{"e-3", "u-1", 0.0, int64(3), nil},
	}

	data, err := EncodeSnapshot("fact_event_items", columns, rows)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if snap.Table != "fact_event_items" {
		t.Errorf("table = %s", snap.Table)
	}
	if len(snap.Columns) != len(columns) {
		t.Fatalf("got %d columns, want %d", len(snap.Columns), len(columns))
	}
	if len(snap.Rows) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(snap.Rows), len(rows))
	}

	// JSON round-trips integers as float64.
	if snap.Rows[0][0] != "e-1" || snap.Rows[0][2] != 9.99 || snap.Rows[0][3] != float64(2) {
		t.Errorf("row 0 = %v", snap.Rows[0])
	}
	if snap.Rows[1][4] != "SUMMER" {
		t.Errorf("row 1 coupon = %v", snap.Rows[1][4])
	}
	if snap.Rows[2][4] != nil {
		t.Errorf("row 2 coupon = %v, want nil", snap.Rows[2][4])
	}
}

func TestSnapshotRoundTripEmpty(t *testing.T) {
	data, err := EncodeSnapshot("dim_users", []string{"user_sk", "user_id"}, nil)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if len(snap.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(snap.Rows))
	}
	if len(snap.Columns) != 2 {
		t.Errorf("got %d columns, want 2", len(snap.Columns))
	}
}

func TestSnapshotNormalizesBlobsToStrings(t *testing.T) {
	data, err := EncodeSnapshot("structured_events", []string{"event_id"},
		[][]interface{}{{[]byte("e-blob")}})
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if snap.Rows[0][0] != "e-blob" {
		t.Errorf("blob value = %v, want string", snap.Rows[0][0])
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"wrong magic", []byte("NOPE\x01\x00\x00\x00\x00"), ErrBadMagic},
		{"wrong version", []byte("STSN\x09\x00\x00\x00\x00"), ErrBadVersion},
		{"truncated header", []byte("STSN\x01\xff\x00\x00\x00"), ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot(tt.data)
			if err == nil {
				t.Fatal("garbage accepted")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
