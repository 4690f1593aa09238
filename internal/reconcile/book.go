package reconcile

import (
	"time"

	"github.com/lepinkainen/folio/internal/source"
)

// Author is a reconciled author identity. Key is the OpenLibrary author key
// when any source reported one; it doubles as the dimension natural key.
type Author struct {
	Name string
	Key  string
}

// Metrics is the measurable snapshot of a book at reconciliation time.
// Ratings, pricing and availability come exclusively from Google Books,
// edition count exclusively from Open Library; there is no cross-source
// averaging.
type Metrics struct {
	RatingAvg        *float64
	RatingCount      *int
	EditionCount     *int
	ListPrice        *float64
	RetailPrice      *float64
	CurrencyCode     *string
	IsEbookAvailable bool
	Saleability      *string
}

// CanonicalBook is the single merged record ready for warehouse load.
// Every populated field holds exactly one resolved value; absent fields stay
// nil rather than defaulting.
type CanonicalBook struct {
	// ISBN13 is the mandatory identity. A merge that cannot produce one is a
	// reconciliation failure, not a partial success.
	ISBN13 string

	Title            string
	TitleHasConflict bool
	Subtitle         *string
	Description      *string
	Publisher        *string
	PageCount        *int
	CoverURL         *string
	WorkKey          *string
	PublishedDate    *time.Time

	// Languages are deduplicated two-letter codes, sorted for determinism.
	Languages []string

	Authors []Author
	Genres  []string

	Metrics Metrics
}

// Conflict records a cross-source disagreement that was resolved in favour of
// the configured primary source. Conflicts are returned alongside the merged
// book so callers can audit them; they are never failures.
type Conflict struct {
	Field           string
	Chosen          string
	ChosenSource    source.Name
	Discarded       string
	DiscardedSource source.Name
}
