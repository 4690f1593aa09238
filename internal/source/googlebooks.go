package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/folio/internal/cache"
	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/ratelimit"
)

const (
	defaultGoogleBooksBaseURL = "https://www.googleapis.com/books/v1"
	// Google Books allows bursts but throttles sustained traffic hard.
	googleBooksRate = 5.0
)

// GoogleBooksAdapter implements the Adapter interface for Google Books.
// It is the commerce-rich source: ratings, pricing and ebook availability are
// authoritative here.
type GoogleBooksAdapter struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

// Compile-time check that GoogleBooksAdapter implements Adapter.
var _ Adapter = (*GoogleBooksAdapter)(nil)

// NewGoogleBooksAdapter creates an adapter against the configured Google
// Books endpoint, defaulting to the public API.
func NewGoogleBooksAdapter() *GoogleBooksAdapter {
	baseURL := viper.GetString("googlebooks.baseurl")
	if baseURL == "" {
		baseURL = defaultGoogleBooksBaseURL
	}
	return &GoogleBooksAdapter{baseURL: baseURL}
}

// NewGoogleBooksAdapterWithBaseURL creates an adapter against a custom base
// URL, used in tests.
func NewGoogleBooksAdapterWithBaseURL(baseURL string) *GoogleBooksAdapter {
	return &GoogleBooksAdapter{baseURL: baseURL}
}

// Name returns the human-readable name of this source.
func (a *GoogleBooksAdapter) Name() string {
	return "GoogleBooks"
}

// Source returns the tag stamped onto fetched records.
func (a *GoogleBooksAdapter) Source() Name {
	return GoogleBooks
}

func (a *GoogleBooksAdapter) getHTTPClient() *http.Client {
	a.clientOnce.Do(func() {
		if a.httpClient == nil {
			a.httpClient = &http.Client{Timeout: 10 * time.Second}
		}
	})
	return a.httpClient
}

func (a *GoogleBooksAdapter) getRateLimiter() *ratelimit.Limiter {
	a.limiterOnce.Do(func() {
		a.rateLimiter = ratelimit.New("GoogleBooks", googleBooksRate)
	})
	return a.rateLimiter
}

// Ping tests the connection to Google Books.
func (a *GoogleBooksAdapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/volumes?q=isbn:0&maxResults=1", nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := a.getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("GoogleBooks ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GoogleBooks returned status %d", resp.StatusCode)
	}
	return nil
}

// cachedGoogleBooksResult wraps a RawRecord with metadata for caching.
type cachedGoogleBooksResult struct {
	Record   *RawRecord `json:"record"`
	NotFound bool       `json:"not_found"`
}

// Fetch retrieves book data from Google Books. Returns nil, nil when the
// source has no record for the hint.
func (a *GoogleBooksAdapter) Fetch(ctx context.Context, hint Hint) (*RawRecord, error) {
	cached, _, err := cache.GetOrFetchWithTTL("googlebooks_cache", cacheKeyFor(hint), func() (*cachedGoogleBooksResult, error) {
		record, err := a.fetchFromAPI(ctx, hint)
		if err != nil {
			return nil, err
		}
		return &cachedGoogleBooksResult{Record: record, NotFound: record == nil}, nil
	}, cache.SelectNegativeCacheTTL(func(r *cachedGoogleBooksResult) bool {
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

// googleBooksResponse matches the volumes API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Description         string   `json:"description"`
			PageCount           int      `json:"pageCount"`
			Categories          []string `json:"categories"`
			AverageRating       float64  `json:"averageRating"`
			RatingsCount        int      `json:"ratingsCount"`
			Language            string   `json:"language"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
		SaleInfo struct {
			Saleability string `json:"saleability"`
			IsEbook     bool   `json:"isEbook"`
			ListPrice   struct {
				Amount       float64 `json:"amount"`
				CurrencyCode string  `json:"currencyCode"`
			} `json:"listPrice"`
			RetailPrice struct {
				Amount       float64 `json:"amount"`
				CurrencyCode string  `json:"currencyCode"`
			} `json:"retailPrice"`
		} `json:"saleInfo"`
	} `json:"items"`
}

func (a *GoogleBooksAdapter) fetchFromAPI(ctx context.Context, hint Hint) (*RawRecord, error) {
	if err := a.getRateLimiter().Wait(ctx); err != nil {
		return nil, folioerrors.NewTransientError(a.Name(), err)
	}

	query := fmt.Sprintf("intitle:%s inauthor:%s", hint.Title, hint.Author)
	if isbn := NormalizeISBN(hint.ISBN); isbn != "" {
		query = "isbn:" + isbn
	}
	volumesURL := fmt.Sprintf("%s/volumes?q=%s&maxResults=1", a.baseURL, url.QueryEscape(query))
	if apiKey := os.Getenv("GOOGLE_BOOKS_API_KEY"); apiKey != "" {
		volumesURL += "&key=" + url.QueryEscape(apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, volumesURL, nil)
	if err != nil {
		return nil, folioerrors.NewPermanentError(a.Name(), err)
	}

	resp, err := a.getHTTPClient().Do(req)
	if err != nil {
		return nil, folioerrors.NewTransientError(a.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, folioerrors.NewTransientError(a.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, folioerrors.NewPermanentError(a.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, folioerrors.NewPermanentError(a.Name(), fmt.Errorf("decoding volumes response: %w", err))
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return nil, nil
	}

	info := result.Items[0].VolumeInfo
	sale := result.Items[0].SaleInfo
	record := &RawRecord{Source: GoogleBooks}

	if info.Title != "" {
		record.Title = &info.Title
	}
	if info.Subtitle != "" {
		record.Subtitle = &info.Subtitle
	}
	if info.Description != "" {
		record.Description = &info.Description
	}
	if info.Publisher != "" {
		record.Publisher = &info.Publisher
	}
	if info.PublishedDate != "" {
		record.PublishedDate = &info.PublishedDate
	}
	if info.PageCount > 0 {
		pages := info.PageCount
		record.PageCount = &pages
	}
	if info.ImageLinks.Thumbnail != "" {
		record.CoverURL = &info.ImageLinks.Thumbnail
	}
	if info.Language != "" {
		record.Languages = []string{info.Language}
	}
	for _, ident := range info.IndustryIdentifiers {
		if ident.Type == "ISBN_13" {
			if isbn := NormalizeISBN(ident.Identifier); isISBN13(isbn) {
				record.ISBN13 = &isbn
				break
			}
		}
	}
	if record.ISBN13 == nil {
		if isbn := NormalizeISBN(hint.ISBN); isISBN13(isbn) {
			record.ISBN13 = &isbn
		}
	}

	for _, name := range info.Authors {
		record.Authors = append(record.Authors, AuthorRef{Name: name})
	}
	record.Genres = info.Categories

	if info.AverageRating > 0 {
		rating := info.AverageRating
		record.RatingAvg = &rating
	}
	if info.RatingsCount > 0 {
		count := info.RatingsCount
		record.RatingCount = &count
	}
	if sale.ListPrice.Amount > 0 {
		amount := sale.ListPrice.Amount
		record.ListPrice = &amount
	}
	if sale.RetailPrice.Amount > 0 {
		amount := sale.RetailPrice.Amount
		record.RetailPrice = &amount
	}
	if code := sale.ListPrice.CurrencyCode; code != "" {
		record.CurrencyCode = &code
	} else if code := sale.RetailPrice.CurrencyCode; code != "" {
		record.CurrencyCode = &code
	}
	isEbook := sale.IsEbook
	record.IsEbook = &isEbook
	if sale.Saleability != "" {
		record.Saleability = &sale.Saleability
	}

	return record, nil
}
