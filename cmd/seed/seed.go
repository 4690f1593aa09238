// Package seed loads book requests from a CSV export into the job queue.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/folio/internal/csvutil"
	"github.com/lepinkainen/folio/internal/source"
	"github.com/lepinkainen/folio/internal/warehouse"
)

// request is one parsed CSV row. Expected columns: isbn, title, author.
type request struct {
	ISBN   string
	Title  string
	Author string
}

// Summary reports what a seeding run did.
type Summary struct {
	Rows     int
	Enqueued int
	Skipped  int
}

func parseRequest(record []string) (request, error) {
	if len(record) < 3 {
		return request{}, fmt.Errorf("expected 3 columns, got %d", len(record))
	}

	req := request{
		ISBN:   source.NormalizeISBN(record[0]),
		Title:  strings.TrimSpace(record[1]),
		Author: strings.TrimSpace(record[2]),
	}
	if req.ISBN == "" && (req.Title == "" || req.Author == "") {
		return request{}, fmt.Errorf("row has neither an ISBN nor a title and author")
	}
	return req, nil
}

// Seed parses the CSV at path and enqueues a pending job for each usable row.
// Rows already present in the queue are counted as skipped, not errors.
func Seed(ctx context.Context, wh *warehouse.Warehouse, path string) (*Summary, error) {
	requests, err := csvutil.ProcessCSV(path, parseRequest, csvutil.ProcessorOptions{SkipInvalid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to process CSV: %w", err)
	}

	summary := &Summary{Rows: len(requests)}
	for _, req := range requests {
		created, err := wh.Enqueue(ctx, req.ISBN, req.Title, req.Author)
		if err != nil {
			return summary, fmt.Errorf("failed to enqueue %q: %w", req.ISBN+req.Title, err)
		}
		if created {
			summary.Enqueued++
		} else {
			summary.Skipped++
			slog.Debug("Duplicate request skipped", "isbn", req.ISBN, "title", req.Title)
		}
	}

	slog.Info("Seeding complete",
		"rows", summary.Rows,
		"enqueued", summary.Enqueued,
		"skipped", summary.Skipped)
	return summary, nil
}
