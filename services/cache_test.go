package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheKeyNamespacing(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"list key", []string{"fines", "list", "3", "50"}, "enforcement:fines:list:3:50"},
		{"catalog key", []string{"radars", "all"}, "enforcement:radars:all"},
		{"single part", []string{"stats"}, "enforcement:stats"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Key(test.parts...); got != test.want {
				t.Errorf("Key(%v) = %q, want %q", test.parts, got, test.want)
			}
		})
	}
}

func TestCacheNilClientDegradation(t *testing.T) {
	s := &CacheService{}
	ctx := context.Background()

	if s.Available() {
		t.Error("nil client should not report available")
	}

	var dest map[string]string
	if err := s.Get(ctx, Key("fines", "list"), &dest); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
	if err := s.Set(ctx, Key("fines", "list"), "x", time.Second); err != nil {
		t.Errorf("Set should be a no-op, got %v", err)
	}
	if err := s.Publish(ctx, LiveChannel, "x"); err != nil {
		t.Errorf("Publish should be a no-op, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close should be a no-op, got %v", err)
	}
}
