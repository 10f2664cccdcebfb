// Package server hosts the relay's HTTP surface: the WebSocket upgrade
// route lives elsewhere (internal/wsadapter), but liveness and metrics
// endpoints need a plain HTTP server wrapping the same gin.Engine (spec
// §8 supplemented features).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"msgrelay/pkg/log"
	"msgrelay/pkg/redis"
)

// StatsProvider reports the relay's own runtime stats. wsadapter.Handler
// implements this.
type StatsProvider interface {
	ActiveConnections() int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	Router      *gin.Engine
	Logger      log.Logger
	RedisClient *redis.Client
	Stats       StatsProvider
	Mode        string // "reliable" or "best-effort", for the health/metrics payload
}

// Server represents the HTTP server.
type Server struct {
	config Config
	server *http.Server
}

// New creates a new Server instance and registers the health/metrics
// routes on cfg.Router.
func New(cfg Config) *Server {
	setupRoutes(cfg)

	return &Server{
		config: cfg,
		server: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:        cfg.Router,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.config.Logger.Infof(context.Background(), "Starting HTTP server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.config.Logger.Info(ctx, "Shutting down HTTP server...")
	return s.server.Shutdown(ctx)
}

func setupRoutes(cfg Config) {
	cfg.Router.GET("/health", func(c *gin.Context) {
		healthHandler(c, cfg)
	})
	cfg.Router.GET("/metrics", func(c *gin.Context) {
		metricsHandler(c, cfg)
	})
}
