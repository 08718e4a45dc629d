package handlers

import (
	"net/http"

	"github.com/JunaYa/ferriskey/internal/store"
	"github.com/JunaYa/ferriskey/internal/version"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports service liveness, including a database ping.
type HealthHandler struct {
	store *store.Store
}

func NewHealthHandler(s *store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.store.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}
