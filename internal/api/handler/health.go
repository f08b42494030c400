package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/photogrid/internal/session"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sessions *session.Manager
	sourceID string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *session.Manager, sourceID string) *HealthHandler {
	return &HealthHandler{sessions: sessions, sourceID: sourceID}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"source":   h.sourceID,
		"sessions": h.sessions.Len(),
		"journal":  h.sessions.JournalEnabled(),
	})
}
