package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// MetricsResponse represents the metrics response.
type MetricsResponse struct {
	Service     string             `json:"service"`
	Mode        string             `json:"mode"`
	Timestamp   time.Time          `json:"timestamp"`
	Uptime      int64              `json:"uptime_seconds"`
	Connections *ConnectionMetrics `json:"connections"`
}

// ConnectionMetrics represents connection-related metrics.
type ConnectionMetrics struct {
	Active int `json:"active"`
}

func metricsHandler(c *gin.Context, cfg Config) {
	active := 0
	if cfg.Stats != nil {
		active = cfg.Stats.ActiveConnections()
	}

	response := MetricsResponse{
		Service:   "msgrelay",
		Mode:      cfg.Mode,
		Timestamp: time.Now(),
		Uptime:    int64(time.Since(startTime).Seconds()),
		Connections: &ConnectionMetrics{
			Active: active,
		},
	}

	c.JSON(http.StatusOK, response)
}
