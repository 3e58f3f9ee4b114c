package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/batch"
	"github.com/JustJay7/court-case-pipeline/internal/cache"
	"github.com/JustJay7/court-case-pipeline/internal/captcha"
	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/database"
	"github.com/JustJay7/court-case-pipeline/internal/documents"
	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the handlers serve. Scheduler and Fetcher may be nil.
type Deps struct {
	Searcher  batch.Searcher
	Store     *database.Store
	Cache     cache.Cache
	Runner    *batch.Runner
	Scheduler *batch.Scheduler
	Fetcher   *documents.Fetcher
	Logger    *logger.Logger
	Config    *config.Config
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Deps
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps}
}

type batchRequest struct {
	Queries []scraper.SearchQuery `json:"queries" binding:"required,min=1,max=50,dive"`
}

// Search runs one query through the pipeline, or answers it from the cache.
func (h *Handlers) Search(c *gin.Context) {
	var q scraper.SearchQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, err)
		return
	}
	if err := q.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	key := cache.Key(q, time.Now())
	if out, found := h.Cache.Get(key); found {
		h.Logger.Info("Cache hit", "key", key)
		c.JSON(http.StatusOK, gin.H{
			"success":    out.Success,
			"data":       out,
			"from_cache": true,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Config.RunDeadline)
	defer cancel()

	out, err := h.Searcher.Search(ctx, q)
	if _, serr := h.Store.SaveOutcome(context.WithoutCancel(ctx), q, out); serr != nil {
		h.Logger.Error("Failed to save outcome", "error", serr)
	}
	if err != nil {
		h.Logger.Error("Search failed", "query", q.String(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"data":    out,
		})
		return
	}

	if batch.Cacheable(out) {
		h.Cache.Set(key, out)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    out.Success,
		"data":       out,
		"from_cache": false,
	})
}

// Batch runs a list of queries and returns the batch report.
func (h *Handlers) Batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	for _, q := range req.Queries {
		if err := q.Validate(); err != nil {
			badRequest(c, err)
			return
		}
	}

	report := h.Runner.Run(c.Request.Context(), req.Queries)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  report,
	})
}

// LastBatch returns the report of the most recent scheduled run.
func (h *Handlers) LastBatch(c *gin.Context) {
	if h.Scheduler == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "scheduler not configured"})
		return
	}
	report, ok := h.Scheduler.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no batch has run yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

// ListCases returns persisted cases, newest first.
func (h *Handlers) ListCases(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	cases, total, err := h.Store.ListCases(c.Request.Context(), page, limit)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cases,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// ListQueries returns the most recent query logs.
func (h *Handlers) ListQueries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 200 {
		limit = 20
	}

	logs, err := h.Store.RecentQueries(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": logs})
}

// FetchDocuments downloads pending order and judgment documents.
func (h *Handlers) FetchDocuments(c *gin.Context) {
	if h.Fetcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "document fetcher not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	report, err := h.Fetcher.FetchPending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"report":  report,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": h.Store.Ping(c.Request.Context()),
		"cache":    h.Cache.Stats(),
		"time":     time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.Cache.Stats(),
	})
}

func (h *Handlers) ClearCache(c *gin.Context) {
	h.Cache.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PendingCaptchas lists captcha images waiting for a manual answer.
func (h *Handlers) PendingCaptchas(c *gin.Context) {
	ids := []string{}
	matches, _ := filepath.Glob(filepath.Join(h.Config.CaptchaDir, "captcha_*.png"))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".png")
		if !captcha.ValidManualID(id) {
			continue
		}
		if _, err := os.Stat(filepath.Join(h.Config.CaptchaDir, id+".txt")); os.IsNotExist(err) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	c.JSON(http.StatusOK, gin.H{"success": true, "pending": ids})
}

// GetCaptcha returns CAPTCHA image for manual solving
func (h *Handlers) GetCaptcha(c *gin.Context) {
	id := c.Param("id")
	if !captcha.ValidManualID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid CAPTCHA id"})
		return
	}

	data, err := os.ReadFile(filepath.Join(h.Config.CaptchaDir, id+".png"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "CAPTCHA not found",
		})
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

// SolveCaptcha accepts manual CAPTCHA solution
func (h *Handlers) SolveCaptcha(c *gin.Context) {
	id := c.Param("id")
	if !captcha.ValidManualID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid CAPTCHA id"})
		return
	}

	var req struct {
		Solution string `json:"solution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := os.Stat(filepath.Join(h.Config.CaptchaDir, id+".png")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "CAPTCHA not found"})
		return
	}

	solutionPath := filepath.Join(h.Config.CaptchaDir, id+".txt")
	if err := os.WriteFile(solutionPath, []byte(req.Solution), 0644); err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "CAPTCHA solution saved",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
