package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/batch"
	"github.com/JustJay7/court-case-pipeline/internal/cache"
	"github.com/JustJay7/court-case-pipeline/internal/captcha"
	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/database"
	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSearcher) Search(_ context.Context, q scraper.SearchQuery) (scraper.ExtractionOutcome, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return scraper.ExtractionOutcome{ErrorKind: scraper.ErrorKindNavigation, Records: []scraper.CaseRecord{}}, s.err
	}
	return scraper.ExtractionOutcome{
		Success: true,
		Records: []scraper.CaseRecord{{Bench: q.Bench, CaseNumber: "CP/" + q.CaseNumber + "/2022", StatusText: "Pending"}},
	}, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *database.Store
	searcher *stubSearcher
	cfg      *config.Config
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	log := logger.NewNop()
	cfg := &config.Config{RunDeadline: time.Minute, CaptchaDir: t.TempDir()}
	store := database.NewStore(db, log)
	results := cache.NewCache(100, time.Hour)
	searcher := &stubSearcher{}

	h := NewHandlers(Deps{
		Searcher: searcher,
		Store:    store,
		Cache:    results,
		Runner:   batch.NewRunner(searcher, store, results, batch.Options{}, log),
		Logger:   log,
		Config:   cfg,
	})

	router := gin.New()
	SetupRoutes(router, h)
	return &testEnv{router: router, store: store, searcher: searcher, cfg: cfg}
}

func (e *testEnv) do(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func TestHealthCheck(t *testing.T) {
	env := setupTestRouter(t)

	w, response := env.do("GET", "/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, true, response["database"])
}

func TestSearchAPI(t *testing.T) {
	env := setupTestRouter(t)
	query := map[string]string{"bench": "delhi", "case_type": "cp", "case_number": "12", "year": "2022"}

	w, response := env.do("POST", "/api/search", query)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
	assert.Equal(t, false, response["from_cache"])

	w, response = env.do("POST", "/api/search", query)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["from_cache"])
	assert.Equal(t, 1, env.searcher.calls)

	cases, total, err := env.store.ListCases(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "CP/12/2022", cases[0].CaseNumber)
}

func TestSearchAPIValidation(t *testing.T) {
	env := setupTestRouter(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing bench", map[string]string{"case_number": "12"}},
		{"bench only", map[string]string{"bench": "delhi"}},
		{"empty body", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do("POST", "/api/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, response["success"])
		})
	}
	assert.Zero(t, env.searcher.calls)
}

func TestSearchAPIInfrastructureFailure(t *testing.T) {
	env := setupTestRouter(t)
	env.searcher.err = errors.New("navigation to search page failed")

	w, response := env.do("POST", "/api/search", map[string]string{"bench": "delhi", "year": "2022"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, false, response["success"])
	assert.Contains(t, response["error"], "navigation")

	_, response = env.do("GET", "/api/queries", nil)
	logs := response["data"].([]interface{})
	require.Len(t, logs, 1)
	assert.Equal(t, "NAVIGATION_ERROR", logs[0].(map[string]interface{})["error_kind"])
}

func TestBatchAPI(t *testing.T) {
	env := setupTestRouter(t)

	payload := map[string]interface{}{
		"queries": []map[string]string{
			{"bench": "delhi", "case_number": "100"},
			{"bench": "mumbai", "case_number": "200"},
		},
	}
	w, response := env.do("POST", "/api/batch", payload)

	require.Equal(t, http.StatusOK, w.Code)
	report := response["report"].(map[string]interface{})
	assert.Equal(t, float64(2), report["succeeded"])
	assert.Equal(t, float64(0), report["failed"])

	w, response = env.do("GET", "/api/cases?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["data"], 2)
	pagination := response["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), pagination["total"])
}

func TestBatchAPIValidation(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do("POST", "/api/batch", map[string]interface{}{"queries": []map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do("POST", "/api/batch", map[string]interface{}{
		"queries": []map[string]string{{"bench": "delhi"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLastBatchWithoutScheduler(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do("GET", "/api/batch/last", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetchDocumentsWithoutFetcher(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do("POST", "/api/documents/fetch", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCacheStats(t *testing.T) {
	env := setupTestRouter(t)
	env.do("POST", "/api/search", map[string]string{"bench": "delhi", "year": "2022"})

	w, response := env.do("GET", "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := response["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["size"])

	w, _ = env.do("DELETE", "/api/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, response = env.do("GET", "/api/cache/stats", nil)
	assert.Equal(t, float64(0), response["stats"].(map[string]interface{})["size"])
}

func TestManualCaptchaEndpoints(t *testing.T) {
	env := setupTestRouter(t)
	id := captcha.NewManualID()
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.CaptchaDir, id+".png"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.CaptchaDir, "captcha_notes.png"), []byte("x"), 0644))

	_, response := env.do("GET", "/api/captcha", nil)
	assert.Equal(t, []interface{}{id}, response["pending"])

	w, _ := env.do("GET", "/api/captcha/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png", w.Body.String())

	w, _ = env.do("POST", "/api/captcha/"+id+"/solve", map[string]string{"solution": "ab12"})
	require.Equal(t, http.StatusOK, w.Code)
	answer, err := os.ReadFile(filepath.Join(env.cfg.CaptchaDir, id+".txt"))
	require.NoError(t, err)
	assert.Equal(t, "ab12", string(answer))

	_, response = env.do("GET", "/api/captcha", nil)
	assert.Empty(t, response["pending"])

	w, _ = env.do("GET", "/api/captcha/evil.png", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do("GET", "/api/captcha/captcha_1700000000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do("POST", "/api/captcha/"+captcha.NewManualID()+"/solve", map[string]string{"solution": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do("GET", "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
