package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionCounter reports open browser sessions. scraper.Browser implements it.
type SessionCounter interface {
	ActiveSessions() int
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when no browser is attached.
func Health(sessions SessionCounter, store *JobStore, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:     "healthy",
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			ActiveJobs: store.Active(),
			Version:    Version,
		}
		if sessions == nil {
			resp.Status = "degraded"
		} else {
			resp.ActiveSessions = sessions.ActiveSessions()
		}
		c.JSON(http.StatusOK, resp)
	}
}
