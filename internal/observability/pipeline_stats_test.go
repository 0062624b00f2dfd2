package observability

import (
	"sync"
	"testing"
	"time"
)

func TestRecordStageAccumulates(t *testing.T) {
	stats := NewPipelineStats()

	stats.RecordStage(StageStructured, 10, 50*time.Millisecond)
	stats.RecordStage(StageStructured, 5, 30*time.Millisecond)
	stats.RecordStage(StageModeled, 15, 20*time.Millisecond)

	snapshot := stats.StageSnapshot()
	if len(snapshot) != 2 {
		t.Fatalf("got %d stages, want 2", len(snapshot))
	}

	// Sorted by stage name: modeled before structured.
	if snapshot[0].Stage != StageModeled || snapshot[1].Stage != StageStructured {
		t.Fatalf("unexpected order: %s, %s", snapshot[0].Stage, snapshot[1].Stage)
	}

	structured := snapshot[1]
	if structured.Runs != 2 {
		t.Errorf("runs = %d, want 2", structured.Runs)
	}
	if structured.Rows != 15 {
		t.Errorf("rows = %d, want 15", structured.Rows)
	}
	if structured.Duration != 80*time.Millisecond {
		t.Errorf("duration = %v, want 80ms", structured.Duration)
	}
	if structured.LastRun.IsZero() {
		t.Error("last run not recorded")
	}
}

func TestRecordBatchTotals(t *testing.T) {
	stats := NewPipelineStats()

	stats.RecordBatch(10, 9, 1, 2)
	stats.RecordBatch(3, 3, 0, 0)
	stats.RecordEmptyPoll()
	stats.RecordFailedBatch()

	totals := stats.Totals()
	if totals.Batches != 2 {
		t.Errorf("batches = %d, want 2", totals.Batches)
	}
	if totals.MessagesReceived != 13 {
		t.Errorf("received = %d, want 13", totals.MessagesReceived)
	}
	if totals.MessagesDeleted != 12 {
		t.Errorf("deleted = %d, want 12", totals.MessagesDeleted)
	}
	if totals.InvalidMessages != 1 {
		t.Errorf("invalid = %d, want 1", totals.InvalidMessages)
	}
	if totals.ParseFailures != 2 {
		t.Errorf("parse failures = %d, want 2", totals.ParseFailures)
	}
	if totals.EmptyPolls != 1 {
		t.Errorf("empty polls = %d, want 1", totals.EmptyPolls)
	}
	if totals.FailedBatches != 1 {
		t.Errorf("failed batches = %d, want 1", totals.FailedBatches)
	}
}

func TestPipelineStatsConcurrentAccess(t *testing.T) {
	stats := NewPipelineStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.RecordStage(StageRaw, 1, time.Millisecond)
				stats.RecordBatch(1, 1, 0, 0)
				stats.StageSnapshot()
				stats.Totals()
			}
		}()
	}
	wg.Wait()

	snapshot := stats.StageSnapshot()
	if len(snapshot) != 1 || snapshot[0].Rows != 1000 {
		t.Errorf("raw stage rows = %v, want 1000", snapshot)
	}
	if stats.Totals().MessagesReceived != 1000 {
		t.Errorf("received = %d, want 1000", stats.Totals().MessagesReceived)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	stats := NewPipelineStats()
	stats.RecordStage(StageReceive, 5, time.Millisecond)

	snapshot := stats.StageSnapshot()
	snapshot[0].Rows = 999

	if stats.StageSnapshot()[0].Rows != 5 {
		t.Error("snapshot mutation leaked into tracker")
	}
}
