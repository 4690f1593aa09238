package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/folio/internal/cache"
	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/ratelimit"
)

const (
	defaultOpenLibraryBaseURL = "https://openlibrary.org"
	// OpenLibrary asks for at most one request per second.
	openLibraryRate = 1.0
	// OpenLibrary subject lists run into the hundreds; only the leading
	// entries are useful as genre labels.
	maxOpenLibrarySubjects = 10
)

// OpenLibraryAdapter implements the Adapter interface for Open Library.
// It is the metadata-rich source: author identities, subjects, edition count
// and the work key come from here.
type OpenLibraryAdapter struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

// Compile-time check that OpenLibraryAdapter implements Adapter.
var _ Adapter = (*OpenLibraryAdapter)(nil)

// NewOpenLibraryAdapter creates an adapter against the configured Open
// Library endpoint, defaulting to the public API.
func NewOpenLibraryAdapter() *OpenLibraryAdapter {
	baseURL := viper.GetString("openlibrary.baseurl")
	if baseURL == "" {
		baseURL = defaultOpenLibraryBaseURL
	}
	return &OpenLibraryAdapter{baseURL: baseURL}
}

// NewOpenLibraryAdapterWithBaseURL creates an adapter against a custom base
// URL, used in tests.
func NewOpenLibraryAdapterWithBaseURL(baseURL string) *OpenLibraryAdapter {
	return &OpenLibraryAdapter{baseURL: baseURL}
}

// Name returns the human-readable name of this source.
func (a *OpenLibraryAdapter) Name() string {
	return "OpenLibrary"
}

// Source returns the tag stamped onto fetched records.
func (a *OpenLibraryAdapter) Source() Name {
	return OpenLibrary
}

func (a *OpenLibraryAdapter) getHTTPClient() *http.Client {
	a.clientOnce.Do(func() {
		if a.httpClient == nil {
			a.httpClient = &http.Client{Timeout: 10 * time.Second}
		}
	})
	return a.httpClient
}

func (a *OpenLibraryAdapter) getRateLimiter() *ratelimit.Limiter {
	a.limiterOnce.Do(func() {
		a.rateLimiter = ratelimit.New("OpenLibrary", openLibraryRate)
	})
	return a.rateLimiter
}

// Ping tests the connection to Open Library.
func (a *OpenLibraryAdapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL, nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := a.getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("OpenLibrary ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenLibrary returned status %d", resp.StatusCode)
	}
	return nil
}

// cachedOpenLibraryResult wraps a RawRecord with metadata for caching.
type cachedOpenLibraryResult struct {
	Record   *RawRecord `json:"record"`
	NotFound bool       `json:"not_found"`
}

// Fetch retrieves book data from Open Library. Returns nil, nil when the
// source has no record for the hint.
func (a *OpenLibraryAdapter) Fetch(ctx context.Context, hint Hint) (*RawRecord, error) {
	cached, _, err := cache.GetOrFetchWithTTL("openlibrary_cache", cacheKeyFor(hint), func() (*cachedOpenLibraryResult, error) {
		record, err := a.fetchFromAPI(ctx, hint)
		if err != nil {
			return nil, err
		}
		return &cachedOpenLibraryResult{Record: record, NotFound: record == nil}, nil
	}, cache.SelectNegativeCacheTTL(func(r *cachedOpenLibraryResult) bool {
		return r.NotFound
	}))

	if err != nil {
		return nil, err
	}
	if cached.NotFound {
		return nil, nil
	}
	return cached.Record, nil
}

// openLibrarySearchResponse matches the search API response structure.
type openLibrarySearchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key                 string   `json:"key"`
		Title               string   `json:"title"`
		AuthorName          []string `json:"author_name"`
		AuthorKey           []string `json:"author_key"`
		Subject             []string `json:"subject"`
		Language            []string `json:"language"`
		Publisher           []string `json:"publisher"`
		ISBN                []string `json:"isbn"`
		EditionCount        int      `json:"edition_count"`
		NumberOfPagesMedian int      `json:"number_of_pages_median"`
	} `json:"docs"`
}

func (a *OpenLibraryAdapter) fetchFromAPI(ctx context.Context, hint Hint) (*RawRecord, error) {
	if err := a.getRateLimiter().Wait(ctx); err != nil {
		return nil, folioerrors.NewTransientError(a.Name(), err)
	}

	query := fmt.Sprintf("%s %s", hint.Title, hint.Author)
	if isbn := NormalizeISBN(hint.ISBN); isbn != "" {
		query = "isbn:" + isbn
	}
	searchURL := fmt.Sprintf("%s/search.json?q=%s&limit=1", a.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, folioerrors.NewPermanentError(a.Name(), err)
	}

	resp, err := a.getHTTPClient().Do(req)
	if err != nil {
		// Network errors and per-call timeouts are retryable.
		return nil, folioerrors.NewTransientError(a.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, folioerrors.NewTransientError(a.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, folioerrors.NewPermanentError(a.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result openLibrarySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, folioerrors.NewPermanentError(a.Name(), fmt.Errorf("decoding search response: %w", err))
	}

	if result.NumFound == 0 || len(result.Docs) == 0 {
		return nil, nil
	}

	doc := result.Docs[0]
	record := &RawRecord{Source: OpenLibrary}

	if doc.Title != "" {
		record.Title = &doc.Title
	}
	if doc.Key != "" {
		record.WorkKey = &doc.Key
	}
	if isbn := pickISBN13(hint, doc.ISBN); isbn != "" {
		record.ISBN13 = &isbn
	}
	if len(doc.Publisher) > 0 && doc.Publisher[0] != "" {
		record.Publisher = &doc.Publisher[0]
	}
	if doc.NumberOfPagesMedian > 0 {
		pages := doc.NumberOfPagesMedian
		record.PageCount = &pages
	}
	if doc.EditionCount > 0 {
		editions := doc.EditionCount
		record.EditionCount = &editions
	}
	record.Languages = doc.Language

	for i, name := range doc.AuthorName {
		ref := AuthorRef{Name: name}
		if i < len(doc.AuthorKey) {
			ref.Key = doc.AuthorKey[i]
		}
		record.Authors = append(record.Authors, ref)
	}

	subjects := doc.Subject
	if len(subjects) > maxOpenLibrarySubjects {
		subjects = subjects[:maxOpenLibrarySubjects]
	}
	record.Genres = subjects

	return record, nil
}

// pickISBN13 prefers the 13-digit form of the hint's ISBN and falls back to
// the first 13-digit identifier the source reports.
func pickISBN13(hint Hint, reported []string) string {
	if isbn := NormalizeISBN(hint.ISBN); isISBN13(isbn) {
		return isbn
	}
	for _, candidate := range reported {
		if normalized := NormalizeISBN(candidate); isISBN13(normalized) {
			return normalized
		}
	}
	return ""
}

// cacheKeyFor builds a stable cache key for a hint.
func cacheKeyFor(hint Hint) string {
	if isbn := NormalizeISBN(hint.ISBN); isbn != "" {
		return isbn
	}
	return hint.Title + "|" + hint.Author
}
