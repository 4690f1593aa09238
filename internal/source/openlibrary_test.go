package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lepinkainen/folio/internal/cache"
	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAdapterTest(t *testing.T) {
	t.Helper()

	viper.Reset()
	viper.Set("cache.dbfile", filepath.Join(t.TempDir(), "cache.db"))
	viper.Set("cache.ttl", "1h")
	require.NoError(t, cache.ResetGlobalCache())
	t.Cleanup(func() {
		_ = cache.ResetGlobalCache()
		viper.Reset()
	})
}

const openLibraryDoc = `{
	"numFound": 1,
	"docs": [{
		"key": "/works/OL166894W",
		"title": "Crime and Punishment",
		"author_name": ["Fyodor Dostoevsky"],
		"author_key": ["OL22242A"],
		"subject": ["Fiction", "Russian literature", "Classic Literature"],
		"language": ["eng", "rus"],
		"publisher": ["Penguin Books"],
		"isbn": ["0140449132", "9780140449136"],
		"edition_count": 312,
		"number_of_pages_median": 671
	}]
}`

func TestOpenLibraryFetchFound(t *testing.T) {
	setupAdapterTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "isbn:9780140449136", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(openLibraryDoc))
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	record, err := adapter.Fetch(context.Background(), Hint{ISBN: "978-0-14-044913-6"})
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, OpenLibrary, record.Source)
	assert.Equal(t, "Crime and Punishment", *record.Title)
	assert.Equal(t, "9780140449136", *record.ISBN13)
	assert.Equal(t, "/works/OL166894W", *record.WorkKey)
	assert.Equal(t, 312, *record.EditionCount)
	assert.Equal(t, 671, *record.PageCount)
	assert.Equal(t, "Penguin Books", *record.Publisher)
	require.Len(t, record.Authors, 1)
	assert.Equal(t, AuthorRef{Name: "Fyodor Dostoevsky", Key: "OL22242A"}, record.Authors[0])
	assert.Equal(t, []string{"eng", "rus"}, record.Languages)
	assert.Len(t, record.Genres, 3)
}

func TestOpenLibraryFetchNotFound(t *testing.T) {
	setupAdapterTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	record, err := adapter.Fetch(context.Background(), Hint{ISBN: "0000000000000"})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestOpenLibraryFetchServerErrorIsTransient(t *testing.T) {
	setupAdapterTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	_, err := adapter.Fetch(context.Background(), Hint{ISBN: "123"})
	require.Error(t, err)
	assert.True(t, folioerrors.IsTransient(err))
}

func TestOpenLibraryFetchMalformedResponseIsPermanent(t *testing.T) {
	setupAdapterTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numFound": `))
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	_, err := adapter.Fetch(context.Background(), Hint{ISBN: "123"})
	require.Error(t, err)
	assert.True(t, folioerrors.IsPermanent(err))
}

func TestOpenLibraryFetchUsesCache(t *testing.T) {
	setupAdapterTest(t)

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(openLibraryDoc))
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	_, err := adapter.Fetch(context.Background(), Hint{ISBN: "9780140449136"})
	require.NoError(t, err)

	record, err := adapter.Fetch(context.Background(), Hint{ISBN: "9780140449136"})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 1, hits, "second fetch should be served from cache")
}

func TestOpenLibraryTitleAuthorFallbackQuery(t *testing.T) {
	setupAdapterTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Dune Frank Herbert", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	_, err := adapter.Fetch(context.Background(), Hint{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
}

func TestOpenLibraryPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := NewOpenLibraryAdapterWithBaseURL(server.URL)
	require.NoError(t, adapter.Ping(context.Background()))
}
