package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Cursor pagination over the enforcement timelines: fines page on
// created_at, readings on detection_time. next_cursor is the last
// row's timestamp, fed back as ?before= for the next page.

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type PaginationParams struct {
	Limit  int
	Before *time.Time
}

type CursorResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if beforeStr := c.Query("before"); beforeStr != "" {
		if t, ok := parseCursor(beforeStr); ok {
			p.Before = &t
		}
	}

	return p
}

// CacheSuffix identifies this page window in a cache key.
func (p PaginationParams) CacheSuffix() string {
	if p.Before == nil {
		return strconv.Itoa(p.Limit)
	}
	return fmt.Sprintf("%d:%s", p.Limit, FormatCursor(*p.Before))
}

func FormatCursor(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// parseCursor accepts what FormatCursor emits; the layout also covers
// plain RFC3339 for hand-written dashboard queries.
func parseCursor(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, err == nil
}
