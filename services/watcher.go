package services

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/radar"
)

// seenRetention bounds the watcher's seen-file index; entries whose
// files have been removed from disk are forgotten after this long.
const seenRetention = 24 * time.Hour

// ImageWatcher polls the camera drop directory for new captures and
// feeds them to the correlation engine. The FTP transfer itself is an
// external concern; by the time a file is visible here it is fully
// delivered.
type ImageWatcher struct {
	cfg     config.ImagesConfig
	engine  *CorrelationEngine
	stats   *Stats
	running atomic.Bool

	seen map[string]time.Time
}

func NewImageWatcher(cfg config.ImagesConfig, engine *CorrelationEngine, stats *Stats) *ImageWatcher {
	return &ImageWatcher{
		cfg:    cfg,
		engine: engine,
		stats:  stats,
		seen:   make(map[string]time.Time),
	}
}

// Running reports feed liveness for health checks.
func (w *ImageWatcher) Running() bool {
	return w.running.Load()
}

// Run polls until the context is cancelled. The first scan primes the
// seen index without offering files, so a restart does not replay the
// whole backlog into the engine.
func (w *ImageWatcher) Run(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)

	w.scan(true)
	log.Printf("watcher: image feed on %s every %s", w.cfg.WatchDir, w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan(false)
		}
	}
}

// Offer injects a single externally announced image, bypassing the
// poll loop. Used by the intake endpoint and by tests.
func (w *ImageWatcher) Offer(path string, capturedAt time.Time) {
	img := radar.NewImageEvent(path, capturedAt)
	w.stats.ImagesObserved.Add(1)
	imagesObserved.Inc()
	w.engine.OfferImage(img)
}

func (w *ImageWatcher) scan(prime bool) {
	now := time.Now()

	err := filepath.WalkDir(w.cfg.WatchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking the rest
		}
		if d.IsDir() || !isImageFile(path) {
			return nil
		}
		if _, ok := w.seen[path]; ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		w.seen[path] = now
		if prime {
			return nil
		}

		img := radar.NewImageEvent(path, info.ModTime())
		w.stats.ImagesObserved.Add(1)
		imagesObserved.Inc()
		log.Printf("watcher: new capture %s (taken %s)", img.Filename, img.CaptureTimestamp.Format(time.RFC3339))
		w.engine.OfferImage(img)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		w.stats.Errors.Add(1)
		log.Printf("watcher: scan failed: %v", err)
	}

	// Forget deleted files after a retention period so the index stays
	// bounded; files still on disk stay indexed and are never re-offered.
	for path, at := range w.seen {
		if now.Sub(at) <= seenRetention {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			delete(w.seen, path)
		} else {
			w.seen[path] = now
		}
	}
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
