package services

import (
	"context"
	"sync"
	"time"

	"speed-enforcement-api/config"
)

// DedupStore remembers recently seen event fingerprints so replayed
// datagrams never produce a second reading or fine. UDP senders
// retransmit freely, and a restarted sender may replay its whole
// buffer.
type DedupStore struct {
	mu      sync.Mutex
	seen    map[uint64]time.Time
	ttl     time.Duration
	cleanup time.Duration
	now     func() time.Time
}

func NewDedupStore(cfg config.DedupConfig) *DedupStore {
	return &DedupStore{
		seen:    make(map[uint64]time.Time),
		ttl:     cfg.TTL,
		cleanup: cfg.CleanupInterval,
		now:     time.Now,
	}
}

// Seen reports whether the fingerprint was remembered within the TTL.
func (d *DedupStore) Seen(fp uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.seen[fp]
	if !ok {
		return false
	}
	if d.now().Sub(at) > d.ttl {
		delete(d.seen, fp)
		return false
	}
	return true
}

// Remember records the fingerprint at the current time.
func (d *DedupStore) Remember(fp uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[fp] = d.now()
}

// CheckAndRemember atomically tests and records a fingerprint,
// returning true if it was already present. Two datagrams with the
// same fingerprint racing through the listener resolve to exactly one
// winner.
func (d *DedupStore) CheckAndRemember(fp uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[fp]; ok && now.Sub(at) <= d.ttl {
		return true
	}
	d.seen[fp] = now
	return false
}

// Size returns the number of remembered fingerprints.
func (d *DedupStore) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Run sweeps expired fingerprints on the cleanup interval until the
// context is cancelled.
func (d *DedupStore) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *DedupStore) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.ttl)
	for fp, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, fp)
		}
	}
}
