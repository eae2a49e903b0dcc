package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"speed-enforcement-api/config"
)

func newTestWatcher(t *testing.T) (*ImageWatcher, *CorrelationEngine, string) {
	t.Helper()
	dir := t.TempDir()
	engine := NewCorrelationEngine(testCorrelationConfig())
	w := NewImageWatcher(config.ImagesConfig{WatchDir: dir, PollInterval: time.Second}, engine, NewStats())
	return w, engine, dir
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestWatcherOffersNewImages(t *testing.T) {
	w, engine, dir := newTestWatcher(t)

	writeImage(t, dir, "existing_20250615140800.jpg")
	w.scan(true) // priming scan ignores the backlog

	writeImage(t, dir, "cam001_20250615140845.jpg")
	writeImage(t, dir, "notes.txt")
	w.scan(false)

	if _, images := engine.Depths(); images != 1 {
		t.Errorf("pending images = %d, want 1 (txt skipped, backlog primed)", images)
	}
}

func TestWatcherDoesNotReoffer(t *testing.T) {
	w, engine, dir := newTestWatcher(t)
	w.scan(true)

	writeImage(t, dir, "a.jpg")
	w.scan(false)
	w.scan(false)
	w.scan(false)

	if _, images := engine.Depths(); images != 1 {
		t.Errorf("pending images = %d, want 1 (no re-offer)", images)
	}
}

func TestWatcherWalksSubdirectories(t *testing.T) {
	w, engine, dir := newTestWatcher(t)
	w.scan(true)

	sub := filepath.Join(dir, "camera001", "2025-06-15", "Common")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeImage(t, sub, "20250615140845.jpg")
	w.scan(false)

	if _, images := engine.Depths(); images != 1 {
		t.Errorf("pending images = %d, want 1 (nested capture)", images)
	}
}

func TestWatcherOfferDirect(t *testing.T) {
	w, engine, _ := newTestWatcher(t)

	capturedAt := time.Date(2025, 6, 15, 14, 8, 45, 0, time.UTC)
	w.Offer("/srv/camera_uploads/manual.jpg", capturedAt)

	if _, images := engine.Depths(); images != 1 {
		t.Errorf("pending images = %d, want 1", images)
	}
}

func TestWatcherMissingDirIsNotFatal(t *testing.T) {
	engine := NewCorrelationEngine(testCorrelationConfig())
	w := NewImageWatcher(config.ImagesConfig{WatchDir: "/nonexistent/path", PollInterval: time.Second}, engine, NewStats())

	w.scan(false) // must not panic
	if _, images := engine.Depths(); images != 0 {
		t.Errorf("pending images = %d, want 0", images)
	}
}
