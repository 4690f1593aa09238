// Package work runs the enrichment worker over the queued jobs.
package work

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lepinkainen/folio/internal/config"
	"github.com/lepinkainen/folio/internal/source"
	"github.com/lepinkainen/folio/internal/warehouse"
	"github.com/lepinkainen/folio/internal/worker"
)

// Adapter factory, swappable in tests.
var buildAdapters = func() []source.Adapter {
	return []source.Adapter{
		source.NewGoogleBooksAdapter(),
		source.NewOpenLibraryAdapter(),
	}
}

// Run opens the warehouse, builds the source adapters and processes queued
// jobs until the queue is drained or the process is interrupted.
func Run(wh *warehouse.Warehouse) (*worker.Stats, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := source.RetryPolicy{
		MaxAttempts:    config.FetchAttempts,
		Timeout:        config.AdapterTimeout,
		InitialBackoff: source.DefaultRetryPolicy().InitialBackoff,
		MaxBackoff:     source.DefaultRetryPolicy().MaxBackoff,
	}

	w := worker.New(wh, buildAdapters(), policy,
		source.Name(config.PrimarySource), config.BatchSize, config.RetryMaxAttempts)

	stats, err := w.Run(ctx)
	if err != nil && ctx.Err() != nil {
		slog.Warn("Run interrupted", "error", err)
		stats.LogSummary()
		return stats, nil
	}
	if stats != nil {
		stats.LogSummary()
	}
	return stats, err
}
