package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stratalake/stratalake/internal/observability"
	"github.com/stratalake/stratalake/internal/raw"
	"github.com/stratalake/stratalake/internal/source"
	"github.com/stratalake/stratalake/internal/sqlmodel"
	"github.com/stratalake/stratalake/internal/store"
)

func TestRunnerProcessesQueuedMessages(t *testing.T) {
	cfg := testConfig(t)
	o, src, _ := newTestOrchestrator(t, cfg)

	src.Push([]byte(nativeItemsBody))
	src.Push([]byte(nestedTextBody))

	runner := NewRunner(o, 10*time.Millisecond)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer runner.Stop()

	deadline := time.After(5 * time.Second)
	for {
		count, err := src.ApproximateCount(context.Background())
		if err != nil {
			t.Fatalf("ApproximateCount failed: %v", err)
		}
		if count == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("queue not drained, %d messages left", count)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := runner.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	totals := o.Stats().Totals()
	if totals.MessagesReceived != 2 {
		t.Errorf("received = %d, want 2", totals.MessagesReceived)
	}
}

func TestRunnerStartTwiceFails(t *testing.T) {
	cfg := testConfig(t)
	o, _, _ := newTestOrchestrator(t, cfg)

	runner := NewRunner(o, time.Hour)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer runner.Stop()

	if err := runner.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	o, _, _ := newTestOrchestrator(t, cfg)

	runner := NewRunner(o, time.Hour)
	if err := runner.Stop(); err != nil {
		t.Fatalf("Stop before Start failed: %v", err)
	}

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := runner.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := runner.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

// gatedStore blocks the first Exec until released and records the context
// state that statement observed.
type gatedStore struct {
	store.AnalyticalStore

	entered chan struct{}
	release chan struct{}

	once   sync.Once
	ctxErr error
}

func (g *gatedStore) Exec(ctx context.Context, query string, args ...interface{}) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
		g.ctxErr = ctx.Err()
	})
	return g.AnalyticalStore.Exec(ctx, query, args...)
}

func TestRunnerStopLetsInFlightBatchFinish(t *testing.T) {
	cfg := testConfig(t)

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gated := &gatedStore{
		AnalyticalStore: db,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}

	rawStore, err := raw.NewStore(cfg.RawPath(), gated)
	if err != nil {
		t.Fatalf("creating raw store: %v", err)
	}
	src := source.NewMemorySource(cfg.Source.MaxMessages)
	o, err := NewOrchestrator(cfg, src, rawStore, gated,
		sqlmodel.NewRunner(gated, cfg.ScriptsDir), nil, observability.NewPipelineStats())
	if err != nil {
		t.Fatalf("creating orchestrator: %v", err)
	}

	src.Push([]byte(nativeItemsBody))

	runner := NewRunner(o, time.Hour)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait until the batch is mid-stage, then stop the runner while the
	// statement is still blocked.
	<-gated.entered
	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a batch was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the batch finished")
	}

	if gated.ctxErr != nil {
		t.Errorf("in-flight statement saw context error %v, want none", gated.ctxErr)
	}

	// The batch ran to completion: its message was acknowledged.
	count, err := src.ApproximateCount(context.Background())
	if err != nil {
		t.Fatalf("ApproximateCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("%d messages still queued, want 0", count)
	}
}

func TestRunOnceReturnsBatchStats(t *testing.T) {
	cfg := testConfig(t)
	o, src, _ := newTestOrchestrator(t, cfg)

	src.Push([]byte(nativeItemsBody))

	runner := NewRunner(o, time.Hour)
	stats, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Received != 1 {
		t.Errorf("received = %d, want 1", stats.Received)
	}
	if stats.BatchID == "" {
		t.Error("batch ID not assigned")
	}
}
