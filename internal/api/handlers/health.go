package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/mergeball/internal/room"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"service":         "mergeball-api",
			"version":         version,
			"uptime":          time.Since(startTime).String(),
			"active_sessions": mgr.ActiveCount(),
		})
	}
}
