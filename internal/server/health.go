package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Redis     *RedisHealth `json:"redis"`
	Relay     *RelayInfo   `json:"relay"`
	Uptime    int64        `json:"uptime_seconds"`
}

// RedisHealth represents Redis health status.
type RedisHealth struct {
	Status string  `json:"status"`
	PingMs float64 `json:"ping_ms,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// RelayInfo represents the relay's own runtime info.
type RelayInfo struct {
	Mode              string `json:"mode"`
	ActiveConnections int    `json:"active_connections"`
}

var startTime = time.Now()

func healthHandler(c *gin.Context, cfg Config) {
	ctx := context.Background()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int64(time.Since(startTime).Seconds()),
	}

	redisHealth := &RedisHealth{Status: "connected"}
	pingDuration, err := cfg.RedisClient.Ping(ctx)
	if err != nil {
		redisHealth.Status = "disconnected"
		redisHealth.Error = err.Error()
		response.Status = "degraded"
		cfg.Logger.Errorf(ctx, "health check: redis ping failed: %v", err)
	} else {
		redisHealth.PingMs = float64(pingDuration.Microseconds()) / 1000.0
	}
	response.Redis = redisHealth

	active := 0
	if cfg.Stats != nil {
		active = cfg.Stats.ActiveConnections()
	}
	response.Relay = &RelayInfo{Mode: cfg.Mode, ActiveConnections: active}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}
