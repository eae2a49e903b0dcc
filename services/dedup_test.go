package services

import (
	"testing"
	"time"

	"speed-enforcement-api/config"
)

func newTestDedup(ttl time.Duration) (*DedupStore, *time.Time) {
	d := NewDedupStore(config.DedupConfig{TTL: ttl, CleanupInterval: time.Hour})
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	return d, &now
}

func TestDedupSeen(t *testing.T) {
	d, _ := newTestDedup(24 * time.Hour)

	if d.Seen(42) {
		t.Error("fresh store should not have seen fingerprint")
	}

	d.Remember(42)
	if !d.Seen(42) {
		t.Error("remembered fingerprint should be seen")
	}
	if d.Seen(43) {
		t.Error("different fingerprint should not be seen")
	}
}

func TestDedupCheckAndRemember(t *testing.T) {
	d, _ := newTestDedup(24 * time.Hour)

	if d.CheckAndRemember(7) {
		t.Error("first CheckAndRemember should report unseen")
	}
	if !d.CheckAndRemember(7) {
		t.Error("second CheckAndRemember should report seen")
	}
}

func TestDedupTTLExpiry(t *testing.T) {
	d, now := newTestDedup(time.Hour)

	d.Remember(1)
	*now = now.Add(30 * time.Minute)
	if !d.Seen(1) {
		t.Error("fingerprint within TTL should still be seen")
	}

	*now = now.Add(31 * time.Minute)
	if d.Seen(1) {
		t.Error("fingerprint past TTL should be forgotten")
	}
}

func TestDedupSweep(t *testing.T) {
	d, now := newTestDedup(time.Hour)

	d.Remember(1)
	d.Remember(2)
	*now = now.Add(2 * time.Hour)
	d.Remember(3)

	d.sweep()

	if got := d.Size(); got != 1 {
		t.Errorf("Size() after sweep = %d, want 1", got)
	}
	if !d.Seen(3) {
		t.Error("fresh fingerprint should survive sweep")
	}
}
