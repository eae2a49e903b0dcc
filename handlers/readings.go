package handlers

import (
	"context"
	"net/http"

	"speed-enforcement-api/models"
	"speed-enforcement-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ReadingHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewReadingHandler(db *gorm.DB, cache *services.CacheService) *ReadingHandler {
	return &ReadingHandler{db: db, cache: cache}
}

// List returns raw radar readings newest-first, cursor-paginated on
// detection_time. Optional filters: radar_id, violations=true.
func (h *ReadingHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	radarID := c.Query("radar_id")
	violationsOnly := c.Query("violations") == "true"

	violFlag := ""
	if violationsOnly {
		violFlag = "v"
	}
	cacheKey := services.Key("readings", "list", radarID, violFlag, p.CacheSuffix())

	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.Model(&models.RadarReading{}).Order("detection_time DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("detection_time < ?", *p.Before)
	}
	if radarID != "" {
		query = query.Where("radar_id = ?", radarID)
	}
	if violationsOnly {
		query = query.Where("is_violation = ?", true)
	}

	var rows []models.RadarReading
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
		nextCursor = FormatCursor(rows[len(rows)-1].DetectionTime)
	}

	resp := CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, services.ListCacheTTL)

	c.JSON(http.StatusOK, resp)
}
