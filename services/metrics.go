package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	datagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_udp_datagrams_received_total",
		Help: "Total number of UDP datagrams received by the radar listener.",
	})
	unknownPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_udp_unknown_packets_total",
		Help: "Total number of datagrams that matched no supported wire format.",
	})
	duplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_duplicate_events_total",
		Help: "Total number of datagrams dropped as replays of an already-seen fingerprint.",
	})
	readingsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_readings_saved_total",
		Help: "Total number of radar readings persisted.",
	})
	violationsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_violations_detected_total",
		Help: "Total number of decoded events exceeding their speed limit.",
	})
	imagesObserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_images_observed_total",
		Help: "Total number of camera captures picked up from the drop directory.",
	})
	correlationsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_correlations_matched_total",
		Help: "Total number of violations correlated with at least one image.",
	})
	correlationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_correlations_expired_total",
		Help: "Total number of violations resolved unmatched after the correlation window closed.",
	})
	finesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_fines_created_total",
		Help: "Total number of fines persisted.",
	})
	recognitionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_recognition_failures_total",
		Help: "Total number of plate recognition calls that errored or timed out.",
	})
	persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_persistence_failures_total",
		Help: "Total number of storage writes that failed after retries.",
	})
	pendingViolationsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enforcement_pending_violations",
		Help: "Current depth of the unmatched-violation queue.",
	})
	pendingImagesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enforcement_pending_images",
		Help: "Current depth of the unmatched-image queue.",
	})
)
