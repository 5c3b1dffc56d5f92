package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPFetcherConfig{
		UserAgent:  "test-agent",
		MaxRetries: retries,
	}, zerolog.Nop())
}

func TestFetchReturnsPage(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer ts.Close()

	f := newTestFetcher(1)
	page, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.HTML, "ok")
	assert.Equal(t, "http", page.FetcherUsed)
	assert.Equal(t, "test-agent", gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html>recovered</html>"))
	}))
	defer ts.Close()

	f := newTestFetcher(3)
	page, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Contains(t, page.HTML, "recovered")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	f := newTestFetcher(2)
	_, err := f.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchHonorsCancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("never seen"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(1)
	_, err := f.Fetch(ctx, ts.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>destination</html>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	f := newTestFetcher(1)
	page, err := f.Fetch(context.Background(), ts.URL+"/start")
	require.NoError(t, err)

	assert.Contains(t, page.HTML, "destination")
	assert.Equal(t, ts.URL+"/final", page.FinalURL)
}
