// Package source defines the adapter contract for the external book data
// providers and the retry policy applied around them.
package source

import (
	"context"
	"strings"
)

// Name identifies one external data provider.
type Name string

const (
	// GoogleBooks is the commerce-rich source: ratings, pricing, availability.
	GoogleBooks Name = "googlebooks"
	// OpenLibrary is the metadata-rich source: editions, author keys, subjects,
	// work identity.
	OpenLibrary Name = "openlibrary"
)

// Hint carries the identity information available for a job. ISBN is preferred
// when present; title and author are the fallback search terms.
type Hint struct {
	ISBN   string
	Title  string
	Author string
}

// Adapter is the contract every source implements. Fetch distinguishes three
// outcomes: a populated RawRecord (found), nil with a nil error (not found),
// or a typed error (errors.TransientError / errors.PermanentError).
type Adapter interface {
	// Name returns the human-readable name of the source (e.g., "OpenLibrary").
	Name() string

	// Source returns the source tag stamped onto fetched records.
	Source() Name

	// Ping tests the connection to the source and returns an error if it
	// cannot be reached for whatever reason.
	Ping(ctx context.Context) error

	// Fetch retrieves book data for the given hint.
	Fetch(ctx context.Context, hint Hint) (*RawRecord, error)
}

// NormalizeISBN strips hyphens and spaces from an ISBN.
func NormalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return normalized
}

// isISBN13 reports whether s is a bare 13-digit identifier.
func isISBN13(s string) bool {
	if len(s) != 13 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
