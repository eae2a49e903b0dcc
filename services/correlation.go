package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/radar"

	"github.com/google/uuid"
)

// CorrelationEngine fuses the two independently clocked feeds: radar
// violations from UDP and camera captures from the drop directory.
// The radar unit and the camera pipeline share no clock beyond "within
// tens of seconds", and either side can arrive first, so both
// directions match symmetrically against bounded pending queues.
//
// All queue mutation happens under one mutex; emissions are collected
// inside the critical section and delivered on the output channel
// after it is released, so a stalled consumer never blocks the match
// path while holding the lock.
type CorrelationEngine struct {
	cfg config.CorrelationConfig

	mu                sync.Mutex
	pendingViolations []pendingViolation
	pendingImages     []pendingImage

	out  chan radar.CorrelatedViolation
	now  func() time.Time
	seq  uint64
	once sync.Once
}

type pendingViolation struct {
	event      radar.Event
	enqueuedAt time.Time
	seq        uint64
}

type pendingImage struct {
	image      radar.ImageEvent
	enqueuedAt time.Time
	seq        uint64
}

func NewCorrelationEngine(cfg config.CorrelationConfig) *CorrelationEngine {
	return &CorrelationEngine{
		cfg: cfg,
		out: make(chan radar.CorrelatedViolation, cfg.MaxPending),
		now: time.Now,
	}
}

// Output delivers every CorrelatedViolation exactly once. The channel
// closes after Close drains the pending queues.
func (e *CorrelationEngine) Output() <-chan radar.CorrelatedViolation {
	return e.out
}

// Depths reports the pending queue sizes, the engine's backpressure
// signal.
func (e *CorrelationEngine) Depths() (violations, images int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pendingViolations), len(e.pendingImages)
}

// OfferViolation presents a speeding event to the engine. If a pending
// image lies within the correlation window the match is emitted
// immediately, otherwise the violation waits for an image or for
// expiry.
func (e *CorrelationEngine) OfferViolation(ev radar.Event) {
	e.mu.Lock()
	var emissions []radar.CorrelatedViolation

	images := e.takeImagesNear(ev.Timestamp)
	if len(images) > 0 {
		emissions = append(emissions, e.correlated(ev, images))
	} else {
		e.pendingViolations = append(e.pendingViolations, pendingViolation{
			event:      ev,
			enqueuedAt: e.now(),
			seq:        e.nextSeq(),
		})
		emissions = append(emissions, e.enforceViolationCeiling()...)
	}

	e.mu.Unlock()
	e.emit(emissions)
}

// OfferImage presents a camera capture to the engine, symmetric to
// OfferViolation.
func (e *CorrelationEngine) OfferImage(img radar.ImageEvent) {
	e.mu.Lock()
	var emissions []radar.CorrelatedViolation

	if idx := e.closestViolation(img.CaptureTimestamp); idx >= 0 {
		v := e.pendingViolations[idx]
		e.pendingViolations = append(e.pendingViolations[:idx], e.pendingViolations[idx+1:]...)

		// The new image is the trigger; other pending captures inside
		// the window ride along as extra evidence.
		images := append([]radar.ImageEvent{img}, e.takeExtraImagesNear(v.event.Timestamp, e.cfg.MaxImagesPerViolation-1)...)
		emissions = append(emissions, e.correlated(v.event, images))
	} else {
		e.pendingImages = append(e.pendingImages, pendingImage{
			image:      img,
			enqueuedAt: e.now(),
			seq:        e.nextSeq(),
		})
		e.enforceImageCeiling()
	}

	e.mu.Unlock()
	e.emit(emissions)
}

// Run drives the periodic expiry sweep until the context is
// cancelled, then flushes and closes the output.
func (e *CorrelationEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Close()
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep resolves pending entries older than the expiry age: violations
// emit unmatched (a fine is still owed), images drop silently (no fine
// is owed for an image alone). Expiry is a designed-for outcome, not a
// failure.
func (e *CorrelationEngine) Sweep() {
	e.mu.Lock()
	cutoff := e.now().Add(-e.cfg.ExpiryAge())
	var emissions []radar.CorrelatedViolation

	kept := e.pendingViolations[:0]
	for _, v := range e.pendingViolations {
		if v.enqueuedAt.Before(cutoff) {
			emissions = append(emissions, e.correlatedUnmatched(v.event))
		} else {
			kept = append(kept, v)
		}
	}
	e.pendingViolations = kept

	keptImages := e.pendingImages[:0]
	for _, img := range e.pendingImages {
		if !img.enqueuedAt.Before(cutoff) {
			keptImages = append(keptImages, img)
		}
	}
	e.pendingImages = keptImages

	e.mu.Unlock()
	e.emit(emissions)
}

// Close flushes every pending violation as unmatched and closes the
// output channel. Pending work at shutdown is resolved, never silently
// dropped.
func (e *CorrelationEngine) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		var emissions []radar.CorrelatedViolation
		for _, v := range e.pendingViolations {
			emissions = append(emissions, e.correlatedUnmatched(v.event))
		}
		e.pendingViolations = nil
		e.pendingImages = nil
		e.mu.Unlock()

		e.emit(emissions)
		close(e.out)
	})
}

// takeImagesNear removes and returns up to MaxImagesPerViolation
// pending images within the window of ts, closest first. Caller holds
// the lock.
func (e *CorrelationEngine) takeImagesNear(ts time.Time) []radar.ImageEvent {
	return e.takeExtraImagesNear(ts, e.cfg.MaxImagesPerViolation)
}

func (e *CorrelationEngine) takeExtraImagesNear(ts time.Time, max int) []radar.ImageEvent {
	if max <= 0 {
		return nil
	}

	type candidate struct {
		idx  int
		diff time.Duration
		seq  uint64
	}
	var candidates []candidate
	for i, img := range e.pendingImages {
		diff := absDuration(ts.Sub(img.image.CaptureTimestamp))
		if diff <= e.cfg.Window {
			candidates = append(candidates, candidate{idx: i, diff: diff, seq: img.seq})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].diff != candidates[j].diff {
			return candidates[i].diff < candidates[j].diff
		}
		return candidates[i].seq < candidates[j].seq
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	taken := make([]radar.ImageEvent, 0, len(candidates))
	remove := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		taken = append(taken, e.pendingImages[c.idx].image)
		remove[c.idx] = true
	}

	kept := e.pendingImages[:0]
	for i, img := range e.pendingImages {
		if !remove[i] {
			kept = append(kept, img)
		}
	}
	e.pendingImages = kept

	return taken
}

// closestViolation returns the index of the pending violation nearest
// in time to ts within the window, or -1. Ties resolve to the earliest
// enqueued. Caller holds the lock.
func (e *CorrelationEngine) closestViolation(ts time.Time) int {
	best := -1
	var bestDiff time.Duration
	var bestSeq uint64

	for i, v := range e.pendingViolations {
		diff := absDuration(ts.Sub(v.event.Timestamp))
		if diff > e.cfg.Window {
			continue
		}
		if best < 0 || diff < bestDiff || (diff == bestDiff && v.seq < bestSeq) {
			best, bestDiff, bestSeq = i, diff, v.seq
		}
	}
	return best
}

// enforceViolationCeiling evicts oldest violations past the ceiling,
// resolving each as unmatched rather than dropping it. Caller holds
// the lock.
func (e *CorrelationEngine) enforceViolationCeiling() []radar.CorrelatedViolation {
	var emissions []radar.CorrelatedViolation
	for len(e.pendingViolations) > e.cfg.MaxPending {
		evicted := e.pendingViolations[0]
		e.pendingViolations = e.pendingViolations[1:]
		log.Printf("correlation: pending violation ceiling hit, resolving oldest (radar %d) as unmatched", evicted.event.RadarID)
		emissions = append(emissions, e.correlatedUnmatched(evicted.event))
	}
	return emissions
}

func (e *CorrelationEngine) enforceImageCeiling() {
	for len(e.pendingImages) > e.cfg.MaxPending {
		evicted := e.pendingImages[0]
		e.pendingImages = e.pendingImages[1:]
		log.Printf("correlation: pending image ceiling hit, dropping oldest (%s)", evicted.image.Filename)
	}
}

func (e *CorrelationEngine) correlated(ev radar.Event, images []radar.ImageEvent) radar.CorrelatedViolation {
	return radar.CorrelatedViolation{
		CorrelationID: uuid.NewString(),
		Event:         ev,
		Images:        images,
		Matched:       true,
	}
}

func (e *CorrelationEngine) correlatedUnmatched(ev radar.Event) radar.CorrelatedViolation {
	return radar.CorrelatedViolation{
		CorrelationID: uuid.NewString(),
		Event:         ev,
		Images:        nil,
		Matched:       false,
	}
}

func (e *CorrelationEngine) emit(emissions []radar.CorrelatedViolation) {
	for _, cv := range emissions {
		e.out <- cv
	}
}

func (e *CorrelationEngine) nextSeq() uint64 {
	e.seq++
	return e.seq
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
