package services

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

const gaugeInterval = 5 * time.Second

// Orchestrator owns the lifecycle of both feeds and the correlation
// engine. Startup order: UDP socket binds before the image feed
// starts, so the engine is receiving violations before any image can
// arrive. Shutdown order: feeds drain first, then the engine flushes
// its pending violations as unmatched and the recorder persists them.
type Orchestrator struct {
	listener *Listener
	watcher  *ImageWatcher
	engine   *CorrelationEngine
	recorder *ViolationRecorder
	dedup    *DedupStore
	stats    *Stats
}

func NewOrchestrator(listener *Listener, watcher *ImageWatcher, engine *CorrelationEngine, recorder *ViolationRecorder, dedup *DedupStore, stats *Stats) *Orchestrator {
	return &Orchestrator{
		listener: listener,
		watcher:  watcher,
		engine:   engine,
		recorder: recorder,
		dedup:    dedup,
		stats:    stats,
	}
}

// Run blocks until ctx is cancelled or a feed fails fatally.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.listener.Listen(); err != nil {
		return err
	}

	// The engine and recorder run on their own context: they must
	// outlive the feeds so everything in flight at shutdown is
	// resolved, not dropped.
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		o.recorder.Run(engineCtx, o.engine.Output())
	}()
	go o.engine.Run(engineCtx)
	go o.dedup.Run(engineCtx)
	go o.updateGauges(engineCtx)

	feeds, feedCtx := errgroup.WithContext(ctx)
	feeds.Go(func() error { return o.listener.Run(feedCtx) })
	feeds.Go(func() error { return o.watcher.Run(feedCtx) })

	err := feeds.Wait()
	if err != nil {
		log.Printf("orchestrator: feed failed: %v", err)
	}

	// Feeds are quiet now; flushing the engine closes the recorder's
	// input once the pending queue is resolved.
	engineCancel()
	<-recorderDone
	log.Printf("orchestrator: shutdown complete")
	return err
}

func (o *Orchestrator) updateGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			violations, images := o.engine.Depths()
			pendingViolationsGauge.Set(float64(violations))
			pendingImagesGauge.Set(float64(images))
		}
	}
}

// Health is the per-feed liveness view served by GET /health. Growing
// queue depths signal a stalled downstream.
type Health struct {
	Status            string        `json:"status"`
	UDPListening      bool          `json:"udp_listening"`
	WatcherRunning    bool          `json:"watcher_running"`
	PendingViolations int           `json:"pending_violations"`
	PendingImages     int           `json:"pending_images"`
	DedupEntries      int           `json:"dedup_entries"`
	Stats             StatsSnapshot `json:"stats"`
}

func (o *Orchestrator) Health() Health {
	violations, images := o.engine.Depths()
	status := "up"
	if !o.listener.Listening() || !o.watcher.Running() {
		status = "degraded"
	}
	return Health{
		Status:            status,
		UDPListening:      o.listener.Listening(),
		WatcherRunning:    o.watcher.Running(),
		PendingViolations: violations,
		PendingImages:     images,
		DedupEntries:      o.dedup.Size(),
		Stats:             o.stats.Snapshot(),
	}
}

// Stats exposes the shared counters for the stats endpoint.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

// OfferImage lets the intake endpoint announce an externally delivered
// image without waiting for the next poll.
func (o *Orchestrator) OfferImage(path string, capturedAt time.Time) {
	o.watcher.Offer(path, capturedAt)
}
