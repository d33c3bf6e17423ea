package http_api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/metrics"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int

	// server is the underlying HTTP server
	server *http.Server

	// jwtSecret verifies bearer tokens
	jwtSecret []byte
	// webhookKeys are the shared keys of the ad networks
	webhookKeys map[string]string

	// promohive is the main application struct
	promohive models.PromoHive
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
		"Authorization", "Accept", "Cache-Control", "X-Requested-With", "X-Api-Key",
	}
	corsConfig.MaxAge = 12 * time.Hour
	return cors.New(corsConfig)
}

// metricsMiddleware counts requests per route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPResponseSeconds.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(promohive models.PromoHive, cfg *config.Config, logger *logger.Logger) models.APIServer {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(corsMiddleware())
	router.Use(metricsMiddleware())

	server := &HTTPServer{
		router:      router,
		port:        cfg.APIPort,
		jwtSecret:   []byte(cfg.JWTSecret),
		webhookKeys: cfg.WebhookKeys,
		promohive:   promohive,
		logger:      logger.Named("http"),
	}

	// Define routes
	server.routes()

	return server
}

// Start starts the HTTP server
func (s *HTTPServer) Start() {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server", "error", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
