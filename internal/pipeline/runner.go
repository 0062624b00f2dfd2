package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Runner drives the orchestrator on a fixed polling interval.
type Runner struct {
	orchestrator *Orchestrator
	interval     time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner creates a polling runner.
func NewRunner(o *Orchestrator, interval time.Duration) *Runner {
	return &Runner{orchestrator: o, interval: interval}
}

// Start begins the polling loop. It runs until the context is cancelled or
// Stop is called; an in-flight batch always finishes before the loop exits.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("pipeline: runner is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(ctx)
	return nil
}

// Stop gracefully stops the runner, waiting for the current batch to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}

	r.cancel()
	<-r.done
	r.running = false
	return nil
}

// run is the main polling loop.
func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	// Poll immediately on start
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce processes a single batch, logging failures rather than halting the
// loop: an aborted batch is redelivered by the source. The loop context only
// gates whether a new batch starts; a batch already in flight runs to
// completion even if Stop cancels the loop mid-cycle, so a batch is never
// left half-acknowledged.
func (r *Runner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, err := r.orchestrator.ProcessBatch(context.WithoutCancel(ctx)); err != nil {
		log.Printf("pipeline: batch failed: %v", err)
	}
}

// RunOnce processes a single batch synchronously. Used by the --once mode.
func (r *Runner) RunOnce(ctx context.Context) (*BatchStats, error) {
	return r.orchestrator.ProcessBatch(ctx)
}
