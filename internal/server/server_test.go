package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"backtestplot/internal/cache"
	"backtestplot/internal/figure"
	"backtestplot/internal/finance"
	"backtestplot/internal/storage"
)

type memStore struct {
	mu   sync.Mutex
	runs map[string]*storage.Run
	next int
}

func newMemStore() *memStore { return &memStore{runs: map[string]*storage.Run{}} }

func (m *memStore) SaveRun(_ context.Context, name string, b *finance.Batch) (*storage.Run, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	run := &storage.Run{ID: fmt.Sprintf("run-%d", m.next), Name: name, CreatedAt: time.Now(), Payload: payload}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) GetRun(_ context.Context, id string) (*storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	return run, nil
}

func (m *memStore) ListRuns(_ context.Context, _ int) ([]storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Run
	for _, r := range m.runs {
		out = append(out, storage.Run{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (m *memStore) DeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	delete(m.runs, id)
	return nil
}

const batchBody = `{
	"index": ["2021-01-01", "2021-02-01", "2021-03-01"],
	"tickers": ["SPY", "TLT"],
	"returns": [[1, 1.02, 1.04], [1, 0.99, 0.97]],
	"weights": [
		[[0.6, 0.4], [0.6, 0.4], [0.7, 0.3]],
		[[0.5, 0.5], [0.4, 0.6], [0.3, 0.7]]
	]
}`

func newTestServer(t *testing.T, limiter *rate.Limiter) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	s := New(store, cache.NewMemory(time.Minute), figure.Size{Width: 6, Height: 4}, limiter, prometheus.NewRegistry())
	return s, store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Router(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFigureFormatsAndCache(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/figure", batchBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = do(t, h, http.MethodPost, "/figure", batchBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Renders.WithLabelValues("pdf", "ok")))

	rec = do(t, h, http.MethodPost, "/figure?format=svg&width=beamer&fraction=1", batchBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
}

func TestFigureBadRequests(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Router()

	cases := map[string]struct {
		target string
		body   string
	}{
		"not json":       {"/figure", "{"},
		"empty":          {"/figure", `{"index":[],"tickers":["A"],"returns":[],"weights":[]}`},
		"mismatch":       {"/figure", `{"index":["2021-01-01"],"tickers":["A","B"],"returns":[[1]],"weights":[[[1]]]}`},
		"format":         {"/figure?format=bmp", batchBody},
		"width":          {"/figure?width=a4paper", batchBody},
		"fraction":       {"/figure?fraction=-1", batchBody},
		"fraction text":  {"/figure?fraction=half", batchBody},
		"zero width":     {"/figure?format=png&width=0", batchBody},
		"negative width": {"/figure?format=png&width=-50", batchBody},
		"nan width":      {"/figure?format=png&width=NaN", batchBody},
		"inf width":      {"/figure?format=png&width=Inf", batchBody},
		"tiny fraction":  {"/figure?format=png&fraction=1e-9", batchBody},
		"huge width":     {"/figure?format=png&width=1e6", batchBody},
		"preview empty":  {"/preview", `{}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPreview(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Router(), http.MethodPost, "/preview", batchBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestRunsLifecycle(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/runs?name=carry", batchBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created storage.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "carry", created.Name)

	rec = do(t, h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = do(t, h, http.MethodGet, "/runs/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tickers":["SPY","TLT"]`)

	rec = do(t, h, http.MethodGet, "/runs/"+created.ID+"/figure?format=png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodDelete, "/runs/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/runs/"+created.ID+"/figure", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/runs/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, rate.NewLimiter(rate.Every(time.Hour), 1))
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/preview", batchBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/preview", batchBody)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RateLimited))

	// store routes are not limited
	rec = do(t, h, http.MethodGet, "/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Router()
	do(t, h, http.MethodPost, "/figure", batchBody)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backtestplot_renders_total")
}
