// Package reconcile merges the raw records fetched from the external sources
// into one canonical book. It is pure computation: no I/O, deterministic
// output for a given input.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lepinkainen/folio/internal/source"
)

var (
	// ErrNoIdentity is returned when no source produced a usable ISBN-13.
	ErrNoIdentity = errors.New("no usable identifier from any source")

	// ErrMissingTitle is returned when no source produced a title.
	ErrMissingTitle = errors.New("no title from any source")
)

// IdentityConflictError is returned when the sources disagree on the book's
// identifier. Ambiguous identity is never silently resolved.
type IdentityConflictError struct {
	A, B string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identity conflict: sources report both %q and %q", e.A, e.B)
}

// IsIdentityConflict reports whether err is an IdentityConflictError (even
// when wrapped).
func IsIdentityConflict(err error) bool {
	var icErr *IdentityConflictError
	return errors.As(err, &icErr)
}

// Merge combines up to two raw records into one CanonicalBook. Nil records
// are skipped. When both sources populate the same scalar field with
// differing values, the configured primary source wins and a Conflict is
// recorded; set-valued fields are unioned with normalized dedup keys.
func Merge(records []*source.RawRecord, primary source.Name) (*CanonicalBook, []Conflict, error) {
	ordered := orderRecords(records, primary)
	if len(ordered) == 0 {
		return nil, nil, ErrNoIdentity
	}

	isbn, err := resolveIdentity(ordered)
	if err != nil {
		return nil, nil, err
	}

	book := &CanonicalBook{ISBN13: isbn}
	var conflicts []Conflict

	title, titleConflict := mergeScalar("title", ordered, func(r *source.RawRecord) (string, string) {
		if r.Title == nil {
			return "", ""
		}
		core := cleanTitleCore(*r.Title)
		return CleanTitle(*r.Title), core
	})
	if title == "" {
		return nil, nil, ErrMissingTitle
	}
	book.Title = title
	if titleConflict != nil {
		book.TitleHasConflict = true
		conflicts = append(conflicts, *titleConflict)
	}

	if desc, conflict := mergeScalar("description", ordered, stringField(func(r *source.RawRecord) *string { return r.Description })); desc != "" {
		book.Description = &desc
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	if publisher, conflict := mergeScalar("publisher", ordered, func(r *source.RawRecord) (string, string) {
		if r.Publisher == nil {
			return "", ""
		}
		cleaned := CleanPublisher(*r.Publisher)
		return cleaned, cleaned
	}); publisher != "" {
		book.Publisher = &publisher
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	if subtitle, _ := mergeScalar("subtitle", ordered, stringField(func(r *source.RawRecord) *string { return r.Subtitle })); subtitle != "" {
		book.Subtitle = &subtitle
	}
	if cover, _ := mergeScalar("cover_url", ordered, stringField(func(r *source.RawRecord) *string { return r.CoverURL })); cover != "" {
		book.CoverURL = &cover
	}

	book.PageCount, conflicts = mergePageCount(ordered, conflicts)
	book.Languages = mergeLanguages(ordered)
	book.Authors = mergeAuthors(ordered)
	book.Genres = mergeGenres(ordered)

	for _, r := range ordered {
		if r.WorkKey != nil && *r.WorkKey != "" {
			key := *r.WorkKey
			book.WorkKey = &key
			break
		}
	}
	for _, r := range ordered {
		if r.PublishedDate != nil {
			if parsed, ok := ParsePublishedDate(*r.PublishedDate); ok {
				book.PublishedDate = &parsed
				break
			}
		}
	}

	book.Metrics = mergeMetrics(records)

	return book, conflicts, nil
}

// orderRecords puts the primary source first and drops nil entries, so every
// precedence decision below is a simple first-non-empty scan.
func orderRecords(records []*source.RawRecord, primary source.Name) []*source.RawRecord {
	var ordered []*source.RawRecord
	for _, r := range records {
		if r != nil && r.Source == primary {
			ordered = append(ordered, r)
		}
	}
	for _, r := range records {
		if r != nil && r.Source != primary {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

// resolveIdentity collects the distinct normalized identifiers the sources
// report. Exactly one distinct value is required.
func resolveIdentity(ordered []*source.RawRecord) (string, error) {
	var isbn string
	for _, r := range ordered {
		if r.ISBN13 == nil || *r.ISBN13 == "" {
			continue
		}
		candidate := source.NormalizeISBN(*r.ISBN13)
		if isbn == "" {
			isbn = candidate
			continue
		}
		if candidate != isbn {
			return "", &IdentityConflictError{A: isbn, B: candidate}
		}
	}
	if isbn == "" {
		return "", ErrNoIdentity
	}
	return isbn, nil
}

func stringField(get func(*source.RawRecord) *string) func(*source.RawRecord) (string, string) {
	return func(r *source.RawRecord) (string, string) {
		if v := get(r); v != nil {
			collapsed := CollapseWhitespace(*v)
			return collapsed, collapsed
		}
		return "", ""
	}
}

// mergeScalar picks the first non-empty value in precedence order. The getter
// returns the display value to use and the comparison form it is judged by;
// when a lower-precedence source's comparison form disagrees, the discrepancy
// is recorded as a Conflict but the higher-precedence value still wins.
func mergeScalar(field string, ordered []*source.RawRecord, get func(*source.RawRecord) (string, string)) (string, *Conflict) {
	chosen := ""
	chosenCompare := ""
	var chosenSource source.Name
	var conflict *Conflict

	for _, r := range ordered {
		value, compare := get(r)
		if value == "" {
			continue
		}
		if chosen == "" {
			chosen = value
			chosenCompare = compare
			chosenSource = r.Source
			continue
		}
		if compare != chosenCompare && conflict == nil {
			conflict = &Conflict{
				Field:           field,
				Chosen:          chosen,
				ChosenSource:    chosenSource,
				Discarded:       compare,
				DiscardedSource: r.Source,
			}
		}
	}
	return chosen, conflict
}

func mergePageCount(ordered []*source.RawRecord, conflicts []Conflict) (*int, []Conflict) {
	var chosen *int
	var chosenSource source.Name

	for _, r := range ordered {
		if r.PageCount == nil || *r.PageCount <= 0 {
			continue
		}
		if chosen == nil {
			pages := *r.PageCount
			chosen = &pages
			chosenSource = r.Source
			continue
		}
		if *r.PageCount != *chosen {
			conflicts = append(conflicts, Conflict{
				Field:           "page_count",
				Chosen:          fmt.Sprintf("%d", *chosen),
				ChosenSource:    chosenSource,
				Discarded:       fmt.Sprintf("%d", *r.PageCount),
				DiscardedSource: r.Source,
			})
			break
		}
	}
	return chosen, conflicts
}

// mergeLanguages unions language codes across sources, normalized to their
// two-letter form and sorted for deterministic output.
func mergeLanguages(ordered []*source.RawRecord) []string {
	seen := make(map[string]bool)
	var languages []string
	for _, r := range ordered {
		for _, code := range r.Languages {
			normalized := NormalizeLanguageCode(code)
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			languages = append(languages, normalized)
		}
	}
	sort.Strings(languages)
	return languages
}

// mergeAuthors unions authors across sources, deduplicated by normalized
// name. When the same name appears both with and without an external key,
// the keyed variant wins.
func mergeAuthors(ordered []*source.RawRecord) []Author {
	index := make(map[string]int)
	var authors []Author

	for _, r := range ordered {
		for _, ref := range r.Authors {
			name := CollapseWhitespace(ref.Name)
			if name == "" {
				continue
			}
			key := NormalizeKey(name)
			if i, ok := index[key]; ok {
				if authors[i].Key == "" && ref.Key != "" {
					authors[i].Key = ref.Key
				}
				continue
			}
			index[key] = len(authors)
			authors = append(authors, Author{Name: name, Key: ref.Key})
		}
	}
	return authors
}

// mergeGenres unions cleaned genre labels across sources, preserving
// first-seen order in precedence order.
func mergeGenres(ordered []*source.RawRecord) []string {
	seen := make(map[string]bool)
	var genres []string
	for _, r := range ordered {
		for _, raw := range r.Genres {
			cleaned := CleanGenre(raw)
			if cleaned == "" || seen[cleaned] {
				continue
			}
			seen[cleaned] = true
			genres = append(genres, cleaned)
		}
	}
	return genres
}

// mergeMetrics reads each metric from its authoritative source only.
func mergeMetrics(records []*source.RawRecord) Metrics {
	var metrics Metrics
	for _, r := range records {
		if r == nil {
			continue
		}
		switch r.Source {
		case source.GoogleBooks:
			metrics.RatingAvg = r.RatingAvg
			metrics.RatingCount = r.RatingCount
			metrics.ListPrice = r.ListPrice
			metrics.RetailPrice = r.RetailPrice
			metrics.CurrencyCode = r.CurrencyCode
			metrics.Saleability = r.Saleability
			if r.IsEbook != nil {
				metrics.IsEbookAvailable = *r.IsEbook
			}
		case source.OpenLibrary:
			metrics.EditionCount = r.EditionCount
		}
	}
	return metrics
}
