package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		api.POST("/search", h.Search)
		api.POST("/batch", h.Batch)
		api.GET("/batch/last", h.LastBatch)

		api.GET("/cases", h.ListCases)
		api.GET("/queries", h.ListQueries)
		api.POST("/documents/fetch", h.FetchDocuments)

		api.GET("/cache/stats", h.CacheStats)
		api.DELETE("/cache", h.ClearCache)

		// Manual CAPTCHA answers for the file-drop solver
		if h.Config.CaptchaDir != "" {
			api.GET("/captcha", h.PendingCaptchas)
			api.GET("/captcha/:id", h.GetCaptcha)
			api.POST("/captcha/:id/solve", h.SolveCaptcha)
		}
	}
}
