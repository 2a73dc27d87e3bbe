package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(NewLimiter(1000), Options{
		Timeout:       2 * time.Second,
		MaxRedirects:  4,
		RetryAttempts: 3,
		UserAgent:     "boardwatch-test",
	})
}

func TestFetchHTMLFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><body>listing</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, finalURL, err := newTestClient(t).FetchHTML(context.Background(), srv.URL+"/old", 10_000)
	require.NoError(t, err)
	require.Contains(t, body, "listing")
	require.True(t, strings.HasSuffix(finalURL, "/new"))
}

func TestFetchHTMLSkipsNonHTMLContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.4")
	}))
	defer srv.Close()

	body, _, err := newTestClient(t).FetchHTML(context.Background(), srv.URL+"/posting.pdf", 10_000)
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestFetchHTMLRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	body, _, err := newTestClient(t).FetchHTML(context.Background(), srv.URL+"/jobs", 10_000)
	require.NoError(t, err)
	require.Contains(t, body, "ok")
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestFetchTextHasNoContentTypeGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "User-agent: *\nSitemap: https://example.ca/sitemap.xml\n")
	}))
	defer srv.Close()

	body, err := newTestClient(t).FetchText(context.Background(), srv.URL+"/robots.txt", 10_000)
	require.NoError(t, err)
	require.Contains(t, body, "Sitemap:")
}

func TestResolveRedirectsChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/seed", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/careers", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/careers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := newTestClient(t).ResolveRedirects(context.Background(), srv.URL+"/seed")
	require.True(t, res.OK())
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, strings.HasSuffix(res.FinalURL, "/careers"))
	require.Len(t, res.Chain, 2)
}

func TestResolveRedirectsCapsChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := newTestClient(t).ResolveRedirects(context.Background(), srv.URL+"/loop")
	require.False(t, res.OK())
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if r.Method != http.MethodPost ||
			!strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
			json.NewDecoder(r.Body).Decode(&payload) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"total":1}`)
	}))
	defer srv.Close()

	body, err := newTestClient(t).PostJSON(context.Background(), srv.URL+"/api/jobs", map[string]any{"limit": 100}, 10_000)
	require.NoError(t, err)
	require.JSONEq(t, `{"total":1}`, string(body))
}

func TestPostJSONHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t).PostJSON(context.Background(), srv.URL+"/api/jobs", map[string]any{}, 10_000)
	require.Error(t, err)
}
