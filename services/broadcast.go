package services

import (
	"context"
	"log"
)

// LiveChannel is the redis pub/sub channel the dashboard layer
// subscribes to. The core only publishes here; delivery to websocket
// clients is the broadcast layer's concern.
const LiveChannel = "enforcement:live"

const (
	EventRadarReading  = "radar_reading"
	EventFineCreated   = "fine_created"
	EventUnknownPacket = "unknown_packet"
)

// LiveEvent is the outward domain event envelope. Consumers dedupe on
// the payload's correlation id or fine id; delivery is at-least-once.
type LiveEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EventPublisher fans domain events out to the broadcast layer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, data interface{})
}

// CachePublisher publishes live events through redis pub/sub.
// Publish failures are logged and dropped: outward events are
// best-effort, the audit trail lives in postgres.
type CachePublisher struct {
	cache *CacheService
}

func NewCachePublisher(cache *CacheService) *CachePublisher {
	return &CachePublisher{cache: cache}
}

func (p *CachePublisher) PublishEvent(ctx context.Context, eventType string, data interface{}) {
	if err := p.cache.Publish(ctx, LiveChannel, LiveEvent{Type: eventType, Data: data}); err != nil {
		log.Printf("broadcast: publish %s failed: %v", eventType, err)
	}
}
