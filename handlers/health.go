package handlers

import (
	"net/http"
	"path/filepath"
	"time"

	"speed-enforcement-api/services"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	orch *services.Orchestrator
}

func NewHealthHandler(orch *services.Orchestrator) *HealthHandler {
	return &HealthHandler{orch: orch}
}

func (h *HealthHandler) Health(c *gin.Context) {
	health := h.orch.Health()
	code := http.StatusOK
	if health.Status != "up" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

func (h *HealthHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Stats())
}

type ImageIntakeRequest struct {
	Path       string `json:"path" binding:"required"`
	CapturedAt string `json:"captured_at"`
}

// OfferImage announces an image delivered outside the watched
// directory (or ahead of the next poll). captured_at is RFC3339;
// when absent the capture time is parsed from the filename.
func (h *HealthHandler) OfferImage(c *gin.Context) {
	var req ImageIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	capturedAt := time.Now()
	if req.CapturedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "captured_at must be RFC3339"})
			return
		}
		capturedAt = t
	}

	h.orch.OfferImage(filepath.Clean(req.Path), capturedAt)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
