package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books":
			assert.Equal(t, "en", r.URL.Query().Get("languages"))
			json.NewEncoder(w).Encode(bookList{Results: []bookMeta{
				{ID: 1, Title: "First Book", Formats: map[string]string{
					"text/plain; charset=utf-8": srv.URL + "/text/1",
				}},
				{ID: 2, Title: "No Text", Formats: map[string]string{
					"application/epub+zip": srv.URL + "/epub/2",
				}},
				{ID: 3, Title: "Broken Download", Formats: map[string]string{
					"text/plain; charset=utf-8": srv.URL + "/text/missing",
				}},
				{ID: 4, Title: "Fourth Book", Formats: map[string]string{
					"text/plain": srv.URL + "/text/4",
				}},
			}})
		case "/text/1":
			w.Write([]byte("Content of the first book."))
		case "/text/4":
			w.Write([]byte("Content of the fourth book."))
		default:
			http.NotFound(w, r)
		}
	}))
	return srv
}

func TestPull_DownloadsPlainTextAndSkipsBadBooks(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	g := &Gutendex{BaseURL: srv.URL, HTTP: srv.Client(), MaxChunkSize: 2000}
	units, err := g.Pull(context.Background(), "en", 10)
	require.NoError(t, err)

	require.Len(t, units, 2, "book without text format and failed download are skipped")
	assert.Equal(t, "book", units[0].Kind)
	assert.Equal(t, "en", units[0].Language)
	assert.Equal(t, "Content of the first book.", units[0].Chunks[0].Content)
	assert.Equal(t, "Content of the fourth book.", units[1].Chunks[0].Content)
}

func TestPull_HonorsLimit(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	g := &Gutendex{BaseURL: srv.URL, HTTP: srv.Client(), MaxChunkSize: 2000}
	units, err := g.Pull(context.Background(), "en", 1)
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestPull_ListFailureIsHard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := &Gutendex{BaseURL: srv.URL, HTTP: srv.Client(), MaxChunkSize: 2000}
	_, err := g.Pull(context.Background(), "en", 5)
	assert.Error(t, err, "catalog failure surfaces to the scheduler's soft-fail handling")
}

func TestPull_UnreachableCatalog(t *testing.T) {
	g := &Gutendex{
		BaseURL:      "http://127.0.0.1:1",
		HTTP:         &http.Client{Timeout: 200 * time.Millisecond},
		MaxChunkSize: 2000,
	}
	_, err := g.Pull(context.Background(), "en", 5)
	assert.Error(t, err)
}

func TestPlainTextURL_PrefersUTF8(t *testing.T) {
	formats := map[string]string{
		"text/plain":                "http://example.com/ascii",
		"text/plain; charset=utf-8": "http://example.com/utf8",
		"application/epub+zip":      "http://example.com/epub",
	}
	assert.Equal(t, "http://example.com/utf8", plainTextURL(formats))
	assert.Equal(t, "", plainTextURL(map[string]string{"application/pdf": "x"}))
}
