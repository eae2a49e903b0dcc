package handlers

import (
	"context"
	"net/http"

	"speed-enforcement-api/models"
	"speed-enforcement-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RadarsHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewRadarsHandler(db *gorm.DB, cache *services.CacheService) *RadarsHandler {
	return &RadarsHandler{db: db, cache: cache}
}

// GetRadars lists every radar unit the ingest path has seen, including
// auto-registered ones.
func (h *RadarsHandler) GetRadars(c *gin.Context) {
	cacheKey := services.Key("radars", "all")

	var cached struct {
		Data []models.Radar `json:"data"`
	}
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	var radars []models.Radar
	if err := h.db.Order("radar_id").Find(&radars).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	resp := gin.H{"data": radars}
	go h.cache.Set(context.Background(), cacheKey, resp, services.CatalogCacheTTL)

	c.JSON(http.StatusOK, resp)
}
