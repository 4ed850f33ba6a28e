package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceVersion = "1.0.0"

// HomePage endpoint for root path
func (h *Handler) HomePage(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"status":      "running",
		"server":      h.name,
		"service":     "survey-voice-api",
		"version":     serviceVersion,
		"time":        now.Format("2006-01-02 15:04:05"),
		"timezone":    now.Format("MST"),
		"timestamp":   now.Unix(),
		"message":     "Multilingual Survey API is running",
		"environment": gin.Mode(),
	})
}

// HealthCheck reports unhealthy when the database does not answer a ping.
// An open clarifier breaker is reported but does not fail the check.
func (h *Handler) HealthCheck(c *gin.Context) {
	dbStatus := "healthy"
	code := http.StatusOK
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "unreachable"
		code = http.StatusServiceUnavailable
	}

	status := "healthy"
	if code != http.StatusOK {
		status = "degraded"
	}
	clarifier := "disabled"
	if h.svc.Pipeline != nil {
		clarifier = h.svc.Pipeline.ClarifierState()
	}
	c.JSON(code, gin.H{
		"status":    status,
		"database":  dbStatus,
		"clarifier": clarifier,
		"time":      time.Now().Format(time.RFC3339),
		"service":   "survey-voice-api",
		"version":   serviceVersion,
	})
}
