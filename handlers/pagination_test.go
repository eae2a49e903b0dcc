package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func paramsFor(t *testing.T, rawQuery string) PaginationParams {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	return ParsePagination(c)
}

func TestParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := paramsFor(t, "")
		if p.Limit != DefaultLimit {
			t.Errorf("Limit = %d, want %d", p.Limit, DefaultLimit)
		}
		if p.Before != nil {
			t.Errorf("Before = %v, want nil", p.Before)
		}
	})

	t.Run("limit clamped to max", func(t *testing.T) {
		p := paramsFor(t, "limit=9999")
		if p.Limit != MaxLimit {
			t.Errorf("Limit = %d, want %d", p.Limit, MaxLimit)
		}
	})

	t.Run("invalid limit keeps default", func(t *testing.T) {
		p := paramsFor(t, "limit=-3")
		if p.Limit != DefaultLimit {
			t.Errorf("Limit = %d, want %d", p.Limit, DefaultLimit)
		}
	})

	t.Run("invalid cursor ignored", func(t *testing.T) {
		p := paramsFor(t, "before=yesterday")
		if p.Before != nil {
			t.Errorf("Before = %v, want nil", p.Before)
		}
	})
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 0, 123456789, time.UTC)

	p := paramsFor(t, "before="+FormatCursor(ts))
	if p.Before == nil || !p.Before.Equal(ts) {
		t.Fatalf("Before = %v, want %v", p.Before, ts)
	}
}

func TestCacheSuffix(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	first := PaginationParams{Limit: 50}
	if got := first.CacheSuffix(); got != "50" {
		t.Errorf("CacheSuffix = %q, want %q", got, "50")
	}

	paged := PaginationParams{Limit: 50, Before: &ts}
	want := "50:" + FormatCursor(ts)
	if got := paged.CacheSuffix(); got != want {
		t.Errorf("CacheSuffix = %q, want %q", got, want)
	}
}
