package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodspider/prodspider/internal/storage"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// stubEngine returns a canned report, optionally blocking until released or
// the task context is cancelled.
type stubEngine struct {
	report  *plugin.TaskReport
	err     error
	release chan struct{}
}

func (s *stubEngine) Crawl(ctx context.Context, taskID string, domains []string, maxDepth int, progress plugin.ProgressFunc) (*plugin.TaskReport, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return s.report, ctx.Err()
		}
	}
	if progress != nil {
		progress(plugin.ProgressEvent{Status: "completed", Domain: domains[0], Depth: maxDepth})
	}
	return s.report, s.err
}

func newTestServer(engine Engine, store plugin.Storage) (*Server, *gin.Engine) {
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	s := New(Options{
		Engine:  engine,
		Tasks:   NewTaskManager(nil),
		Storage: store,
		Logger:  zerolog.Nop(),
	})
	return s, s.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestCrawlRejectsBadRequests(t *testing.T) {
	_, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, nil)

	w, _ := doJSON(t, router, http.MethodPost, "/crawl", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := doJSON(t, router, http.MethodPost, "/crawl", `{"domains": [], "max_depth": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "domains")

	w, body = doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["  "], "max_depth": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "domains")

	w, body = doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"], "max_depth": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "max_depth")

	// an explicit zero is invalid, not a request for the default
	w, body = doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"], "max_depth": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "max_depth")
}

func TestCrawlDefaultsOmittedMaxDepth(t *testing.T) {
	_, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, nil)

	w, body := doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["max_depth"])
}

func TestCrawlLifecycle(t *testing.T) {
	report := &plugin.TaskReport{Status: "completed", TotalURLs: 5}
	srv, router := newTestServer(&stubEngine{report: report}, nil)

	w, body := doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"], "max_depth": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	taskID, _ := body["task_id"].(string)
	require.NotEmpty(t, taskID)
	assert.Equal(t, "Crawling started", body["status"])
	assert.Equal(t, []any{"https://example.com"}, body["domains"])
	assert.EqualValues(t, 2, body["max_depth"])

	require.Eventually(t, func() bool {
		return srv.tasks.Get(taskID).State == StateSuccess
	}, 2*time.Second, 10*time.Millisecond)

	w, body = doJSON(t, router, http.MethodGet, "/task/"+taskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StateSuccess, body["status"])
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 5, result["total_urls"])
}

func TestCrawlFailureState(t *testing.T) {
	srv, router := newTestServer(&stubEngine{err: errors.New("boom")}, nil)

	_, body := doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"], "max_depth": 1}`)
	taskID, _ := body["task_id"].(string)
	require.NotEmpty(t, taskID)

	require.Eventually(t, func() bool {
		return srv.tasks.Get(taskID).State == StateFailure
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "boom", srv.tasks.Get(taskID).Error)
}

func TestTaskNotFound(t *testing.T) {
	_, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, nil)

	w, _ := doJSON(t, router, http.MethodGet, "/task/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodDelete, "/task/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevokeRunningTask(t *testing.T) {
	engine := &stubEngine{report: &plugin.TaskReport{}, release: make(chan struct{})}
	srv, router := newTestServer(engine, nil)

	_, body := doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"], "max_depth": 1}`)
	taskID, _ := body["task_id"].(string)
	require.NotEmpty(t, taskID)

	require.Eventually(t, func() bool {
		return srv.tasks.Get(taskID).State == StateStarted
	}, 2*time.Second, 10*time.Millisecond)

	w, body := doJSON(t, router, http.MethodDelete, "/task/"+taskID+"?terminate=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StateRevoked, body["status"])

	// terminate cancels the task context; state stays revoked afterwards
	require.Eventually(t, func() bool {
		return srv.tasks.Get(taskID).Result != nil || srv.tasks.Get(taskID).State == StateRevoked
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateRevoked, srv.tasks.Get(taskID).State)
}

func TestRevokeFinishedTaskConflicts(t *testing.T) {
	srv, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, nil)

	_, body := doJSON(t, router, http.MethodPost, "/crawl", `{"domains": ["https://example.com"], "max_depth": 1}`)
	taskID, _ := body["task_id"].(string)

	require.Eventually(t, func() bool {
		return srv.tasks.Get(taskID).State == StateSuccess
	}, 2*time.Second, 10*time.Millisecond)

	w, _ := doJSON(t, router, http.MethodDelete, "/task/"+taskID, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestURLsFastThenDurableThenMissing(t *testing.T) {
	store := storage.NewMemoryStorage()
	_, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, store)

	ctx := context.Background()
	require.NoError(t, store.SaveURLs(ctx, "t1", "https://example.com", []string{"https://example.com/p/1"}))

	w, body := doJSON(t, router, http.MethodGet, "/urls/t1/example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "redis", body["source"])
	assert.EqualValues(t, 1, body["urls_count"])

	store.ExpireFast("t1", "https://example.com")
	w, body = doJSON(t, router, http.MethodGet, "/urls/t1/example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mongodb", body["source"])

	w, _ = doJSON(t, router, http.MethodGet, "/urls/t2/example.com", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthWithoutBackends(t *testing.T) {
	_, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, nil)

	w, body := doJSON(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unknown", body["redis"])
	assert.Equal(t, "unknown", body["mongodb"])
}

func TestRootBanner(t *testing.T) {
	_, router := newTestServer(&stubEngine{report: &plugin.TaskReport{}}, nil)

	w, body := doJSON(t, router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prodspider", body["service"])
}
