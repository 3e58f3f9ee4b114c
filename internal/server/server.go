package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/api"
	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg     *config.Config
	logger  *logger.Logger
	router  *gin.Engine
	onClose []func() error
}

// New builds the router. onClose hooks run after the HTTP server has drained.
func New(cfg *config.Config, handlers *api.Handlers, logger *logger.Logger, onClose ...func() error) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	api.SetupRoutes(router, handlers)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		router:  router,
		onClose: onClose,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// Searches hold the connection for up to RUN_DEADLINE.
		WriteTimeout: s.cfg.RunDeadline + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
	}

	for _, closeFn := range s.onClose {
		if cerr := closeFn(); cerr != nil {
			s.logger.Error("Failed to release resource", "error", cerr)
		}
	}

	if err != nil {
		return err
	}
	s.logger.Info("Server exited gracefully")
	return nil
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("HTTP Request",
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
