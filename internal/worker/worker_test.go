package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/folio/internal/cache"
	"github.com/lepinkainen/folio/internal/source"
	"github.com/lepinkainen/folio/internal/warehouse"
)

const googleBooksResponse = `{
	"totalItems": 1,
	"items": [{
		"volumeInfo": {
			"title": "Crime and Punishment",
			"authors": ["Fyodor Dostoevsky"],
			"publisher": "Penguin",
			"publishedDate": "2002-12-31",
			"pageCount": 718,
			"categories": ["Fiction / Classics"],
			"averageRating": 4.3,
			"ratingsCount": 1042,
			"language": "en",
			"industryIdentifiers": [{"type": "ISBN_13", "identifier": "9780140449136"}]
		},
		"saleInfo": {"saleability": "FOR_SALE", "isEbook": true}
	}]
}`

const openLibraryResponse = `{
	"numFound": 1,
	"docs": [{
		"key": "/works/OL166894W",
		"title": "Crime and Punishment",
		"author_name": ["Fyodor Dostoevsky"],
		"author_key": ["OL22242A"],
		"subject": ["Russian literature"],
		"language": ["eng", "rus"],
		"publisher": ["Penguin Books"],
		"isbn": ["9780140449136"],
		"edition_count": 312,
		"number_of_pages_median": 671
	}]
}`

func setupWorkerTest(t *testing.T) *warehouse.Warehouse {
	t.Helper()

	viper.Reset()
	viper.Set("cache.dbfile", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, cache.ResetGlobalCache())
	t.Cleanup(func() {
		_ = cache.ResetGlobalCache()
		viper.Reset()
	})

	wh, err := warehouse.Open(filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wh.Close() })
	return wh
}

func fastPolicy() source.RetryPolicy {
	return source.RetryPolicy{
		MaxAttempts:    2,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func newTestWorker(wh *warehouse.Warehouse, googleURL, openLibraryURL string) *Worker {
	adapters := []source.Adapter{
		source.NewGoogleBooksAdapterWithBaseURL(googleURL),
		source.NewOpenLibraryAdapterWithBaseURL(openLibraryURL),
	}
	return New(wh, adapters, fastPolicy(), source.GoogleBooks, 10, 3)
}

func TestRunEnrichesBookEndToEnd(t *testing.T) {
	wh := setupWorkerTest(t)
	ctx := context.Background()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(googleBooksResponse))
	}))
	defer google.Close()
	openLibrary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(openLibraryResponse))
	}))
	defer openLibrary.Close()

	_, err := wh.Enqueue(ctx, "9780140449136", "", "")
	require.NoError(t, err)

	stats, err := newTestWorker(wh, google.URL, openLibrary.URL).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Failed)

	counts, err := wh.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[warehouse.StatusCompleted])

	var title string
	var editions int
	var rating float64
	require.NoError(t, wh.DB().QueryRow(`
		SELECT b.title, f.edition_count, f.rating_avg
		FROM dim_books b
		JOIN fact_book_metrics f ON f.book_id = b.book_id
		WHERE b.isbn = ?`, "9780140449136").Scan(&title, &editions, &rating))
	assert.Equal(t, "Crime and Punishment", title)
	assert.Equal(t, 312, editions, "edition count from Open Library")
	assert.Equal(t, 4.3, rating, "rating from Google Books")

	var authorKey string
	require.NoError(t, wh.DB().QueryRow(
		`SELECT ol_author_key FROM dim_author WHERE name = ?`, "Fyodor Dostoevsky").Scan(&authorKey))
	assert.Equal(t, "OL22242A", authorKey)
}

func TestRunFailsJobWhenNoSourceHasData(t *testing.T) {
	wh := setupWorkerTest(t)
	ctx := context.Background()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer google.Close()
	openLibrary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer openLibrary.Close()

	_, err := wh.Enqueue(ctx, "0000000000000", "", "")
	require.NoError(t, err)

	worker := New(wh, []source.Adapter{
		source.NewGoogleBooksAdapterWithBaseURL(google.URL),
		source.NewOpenLibraryAdapterWithBaseURL(openLibrary.URL),
	}, fastPolicy(), source.GoogleBooks, 10, 1)

	stats, err := worker.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NotFound)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Completed)

	counts, err := wh.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[warehouse.StatusFailed])

	// The not-found failure is recorded as the sentinel, so callers can
	// tell it apart from fetch errors.
	var lastError string
	require.NoError(t, wh.DB().QueryRow(`SELECT last_error FROM jobs`).Scan(&lastError))
	assert.Equal(t, ErrNoData.Error(), lastError)
}

func TestRunFailsJobOnTransientSourceError(t *testing.T) {
	wh := setupWorkerTest(t)
	ctx := context.Background()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer google.Close()
	openLibrary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(openLibraryResponse))
	}))
	defer openLibrary.Close()

	_, err := wh.Enqueue(ctx, "9780140449136", "", "")
	require.NoError(t, err)

	worker := New(wh, []source.Adapter{
		source.NewGoogleBooksAdapterWithBaseURL(google.URL),
		source.NewOpenLibraryAdapterWithBaseURL(openLibrary.URL),
	}, fastPolicy(), source.GoogleBooks, 10, 1)

	stats, err := worker.Run(ctx)
	require.NoError(t, err)

	// The flaky source should get another chance, so the job fails even
	// though Open Library answered.
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 0, countBooks(t, wh))
}

func TestRunProceedsPastPermanentSourceError(t *testing.T) {
	wh := setupWorkerTest(t)
	ctx := context.Background()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer google.Close()
	openLibrary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(openLibraryResponse))
	}))
	defer openLibrary.Close()

	_, err := wh.Enqueue(ctx, "9780140449136", "", "")
	require.NoError(t, err)

	stats, err := newTestWorker(wh, google.URL, openLibrary.URL).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, countBooks(t, wh))
}

func TestRunDrainsQueueInBatches(t *testing.T) {
	wh := setupWorkerTest(t)
	ctx := context.Background()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer google.Close()
	openLibrary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer openLibrary.Close()

	for _, isbn := range []string{"1111111111111", "2222222222222", "3333333333333"} {
		_, err := wh.Enqueue(ctx, isbn, "", "")
		require.NoError(t, err)
	}

	worker := New(wh, []source.Adapter{
		source.NewGoogleBooksAdapterWithBaseURL(google.URL),
		source.NewOpenLibraryAdapterWithBaseURL(openLibrary.URL),
	}, fastPolicy(), source.GoogleBooks, 1, 1)

	stats, err := worker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Claimed, "batch size 1 still drains all jobs")
}

func countBooks(t *testing.T, wh *warehouse.Warehouse) int {
	t.Helper()

	var count int
	require.NoError(t, wh.DB().QueryRow(`SELECT COUNT(*) FROM dim_books`).Scan(&count))
	return count
}
