package handlers

import (
	"context"
	"net/http"

	"speed-enforcement-api/models"
	"speed-enforcement-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type FineHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewFineHandler(db *gorm.DB, cache *services.CacheService) *FineHandler {
	return &FineHandler{db: db, cache: cache}
}

// List returns fines newest-first with cursor pagination on created_at.
// Optional filters: radar_id, plate, status.
func (h *FineHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	radarID := c.Query("radar_id")
	plate := c.Query("plate")
	status := c.Query("status")

	cacheKey := services.Key("fines", "list", radarID, plate, status, p.CacheSuffix())

	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.Model(&models.Fine{}).Order("created_at DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("created_at < ?", *p.Before)
	}
	if radarID != "" {
		query = query.Where("radar_id = ?", radarID)
	}
	if plate != "" {
		query = query.Where("plate_number = ?", plate)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []models.Fine
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = FormatCursor(rows[len(rows)-1].CreatedAt)
	}

	resp := CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, services.ListCacheTTL)

	c.JSON(http.StatusOK, resp)
}

// Get returns a single fine by correlation id.
func (h *FineHandler) Get(c *gin.Context) {
	var fine models.Fine
	if err := h.db.Where("correlation_id = ?", c.Param("id")).First(&fine).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "fine not found"})
		return
	}
	c.JSON(http.StatusOK, fine)
}
