// Package worker drives the enrichment pipeline: it claims queued jobs,
// fetches raw records from the configured sources, reconciles them into a
// canonical book and loads the result into the warehouse.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/reconcile"
	"github.com/lepinkainen/folio/internal/source"
	"github.com/lepinkainen/folio/internal/warehouse"
)

// ErrNoData marks a job failure where every source answered but none had a
// matching record. Distinguishable from fetch errors via errors.Is.
var ErrNoData = errors.New("no data available from any source")

// Worker processes enrichment jobs in batches.
type Worker struct {
	wh         *warehouse.Warehouse
	adapters   []source.Adapter
	policy     source.RetryPolicy
	primary    source.Name
	batchSize  int
	maxRetries int

	// now is swappable for tests.
	now func() time.Time
}

// New creates a worker over the given warehouse and source adapters.
func New(wh *warehouse.Warehouse, adapters []source.Adapter, policy source.RetryPolicy, primary source.Name, batchSize, maxRetries int) *Worker {
	return &Worker{
		wh:         wh,
		adapters:   adapters,
		policy:     policy,
		primary:    primary,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Run claims and processes jobs in batches until the queue has no eligible
// work left or the context is cancelled. Individual job failures are recorded
// on the job and do not stop the run.
func (w *Worker) Run(ctx context.Context) (*Stats, error) {
	total := &Stats{}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		jobs, err := w.wh.Claim(ctx, w.batchSize, w.maxRetries)
		if err != nil {
			return total, fmt.Errorf("failed to claim jobs: %w", err)
		}
		if len(jobs) == 0 {
			return total, nil
		}

		slog.Info("Claimed batch", "jobs", len(jobs))
		for _, job := range jobs {
			total.add(w.processJob(ctx, job))
		}
	}
}

// fetchResult pairs one adapter's outcome with its source tag.
type fetchResult struct {
	name   source.Name
	record *source.RawRecord
	err    error
}

func (w *Worker) processJob(ctx context.Context, job warehouse.Job) Stats {
	stats := Stats{Claimed: 1}
	log := slog.With("job_id", job.ID, "isbn", job.ISBN, "title", job.Title)

	hint := source.Hint{ISBN: job.ISBN, Title: job.Title, Author: job.Author}
	results := w.fetchAll(ctx, hint)

	var records []*source.RawRecord
	var firstErr error
	for _, result := range results {
		if result.err != nil {
			log.Warn("Source fetch failed", "source", result.name, "error", result.err)
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		if result.record == nil {
			log.Debug("Source has no match", "source", result.name)
			continue
		}
		records = append(records, result.record)
	}

	if len(records) == 0 {
		if firstErr != nil {
			w.failJob(ctx, log, job.ID, firstErr, &stats)
			return stats
		}
		stats.NotFound++
		w.failJob(ctx, log, job.ID, ErrNoData, &stats)
		return stats
	}
	// One source errored but the other delivered. A transient error still
	// fails the job so the missing source gets another chance on retry; a
	// permanent error is treated like not found and the job proceeds with
	// what it has.
	if firstErr != nil && folioerrors.IsTransient(firstErr) {
		w.failJob(ctx, log, job.ID, firstErr, &stats)
		return stats
	}

	book, conflicts, err := reconcile.Merge(records, w.primary)
	if err != nil {
		w.failJob(ctx, log, job.ID, fmt.Errorf("reconciliation failed: %w", err), &stats)
		return stats
	}
	for _, conflict := range conflicts {
		stats.Conflicts++
		log.Warn("Source conflict resolved",
			"field", conflict.Field,
			"chosen", conflict.Chosen,
			"chosen_source", conflict.ChosenSource,
			"discarded", conflict.Discarded,
			"discarded_source", conflict.DiscardedSource)
	}

	if err := w.wh.Load(ctx, book, w.now()); err != nil {
		w.failJob(ctx, log, job.ID, fmt.Errorf("warehouse load failed: %w", err), &stats)
		return stats
	}

	if err := w.wh.Complete(ctx, job.ID); err != nil {
		log.Error("Failed to mark job completed", "error", err)
		stats.Failed++
		return stats
	}

	stats.Completed++
	log.Info("Job completed", "book", book.Title, "conflicts", len(conflicts))
	return stats
}

// fetchAll queries every adapter concurrently. Adapter errors are collected,
// not propagated, so one failing source never hides the other's answer.
func (w *Worker) fetchAll(ctx context.Context, hint source.Hint) []fetchResult {
	results := make([]fetchResult, len(w.adapters))

	g, ctx := errgroup.WithContext(ctx)
	for i, adapter := range w.adapters {
		g.Go(func() error {
			record, err := source.FetchWithRetry(ctx, adapter, hint, w.policy)
			results[i] = fetchResult{name: adapter.Source(), record: record, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (w *Worker) failJob(ctx context.Context, log *slog.Logger, jobID string, cause error, stats *Stats) {
	stats.Failed++
	log.Warn("Job failed", "error", cause)
	if err := w.wh.Fail(ctx, jobID, cause); err != nil {
		log.Error("Failed to record job failure", "error", err)
	}
}
