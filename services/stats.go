package services

import (
	"sync/atomic"
	"time"
)

// Stats are the ingest pipeline's shared counters, read by the health
// and stats endpoints. All fields are safe for concurrent update.
type Stats struct {
	StartTime time.Time

	MessagesReceived   atomic.Int64
	UnknownPackets     atomic.Int64
	Duplicates         atomic.Int64
	ReadingsSaved      atomic.Int64
	ViolationsDetected atomic.Int64
	ImagesObserved     atomic.Int64
	FinesCreated       atomic.Int64
	Errors             atomic.Int64
}

func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

type StatsSnapshot struct {
	UptimeSeconds      int64 `json:"uptime_seconds"`
	MessagesReceived   int64 `json:"messages_received"`
	UnknownPackets     int64 `json:"unknown_packets"`
	Duplicates         int64 `json:"duplicates"`
	ReadingsSaved      int64 `json:"readings_saved"`
	ViolationsDetected int64 `json:"violations_detected"`
	ImagesObserved     int64 `json:"images_observed"`
	FinesCreated       int64 `json:"fines_created"`
	Errors             int64 `json:"errors"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		UptimeSeconds:      int64(time.Since(s.StartTime).Seconds()),
		MessagesReceived:   s.MessagesReceived.Load(),
		UnknownPackets:     s.UnknownPackets.Load(),
		Duplicates:         s.Duplicates.Load(),
		ReadingsSaved:      s.ReadingsSaved.Load(),
		ViolationsDetected: s.ViolationsDetected.Load(),
		ImagesObserved:     s.ImagesObserved.Load(),
		FinesCreated:       s.FinesCreated.Load(),
		Errors:             s.Errors.Load(),
	}
}
