package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/models"
	"speed-enforcement-api/radar"
)

const (
	persistAttempts    = 3
	persistBackoffBase = 200 * time.Millisecond
	recordDeadline     = 30 * time.Second
)

// ViolationRecorder turns each CorrelatedViolation into a persisted
// Fine: best-effort plate recognition, tiered amount, one row keyed by
// correlation id. Recognition failure is never fatal; a fine with an
// unknown plate still goes out.
type ViolationRecorder struct {
	store              Store
	calc               *FineCalculator
	recognizer         PlateRecognizer
	recognitionTimeout time.Duration
	publisher          EventPublisher
	stats              *Stats
}

func NewViolationRecorder(store Store, calc *FineCalculator, recognizer PlateRecognizer, cfg config.RecognitionConfig, publisher EventPublisher, stats *Stats) *ViolationRecorder {
	return &ViolationRecorder{
		store:              store,
		calc:               calc,
		recognizer:         recognizer,
		recognitionTimeout: cfg.Timeout,
		publisher:          publisher,
		stats:              stats,
	}
}

// Run consumes correlated violations until the channel closes. Entries
// flushed at shutdown are still recorded, so the loop deliberately
// outlives ctx.
func (r *ViolationRecorder) Run(ctx context.Context, input <-chan radar.CorrelatedViolation) {
	for cv := range input {
		if cv.Matched {
			correlationsMatched.Inc()
		} else {
			correlationsExpired.Inc()
		}

		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordDeadline)
		fine, err := r.Record(recordCtx, cv)
		cancel()
		if err != nil {
			// This violation is lost to storage, but the listener and
			// engine keep going.
			r.stats.Errors.Add(1)
			persistenceFailures.Inc()
			log.Printf("recorder: %s: %v", cv.CorrelationID, err)
			continue
		}

		r.stats.FinesCreated.Add(1)
		finesCreated.Inc()
		log.Printf("recorder: fine %d created: plate=%s speed=%d limit=%d amount=%.0f matched=%t",
			fine.ID, fine.PlateNumber, fine.Speed, fine.SpeedLimit, fine.FineAmount, cv.Matched)
		r.publisher.PublishEvent(context.WithoutCancel(ctx), EventFineCreated, fine)
	}
}

// Record persists the Fine aggregate for one correlated violation.
func (r *ViolationRecorder) Record(ctx context.Context, cv radar.CorrelatedViolation) (*models.Fine, error) {
	ev := cv.Event

	plate := models.UnknownPlate
	confidence := 0.0
	recognized := false

	if primary := cv.PrimaryImage(); primary != nil && r.recognizer != nil {
		result, err := recognizeWithTimeout(ctx, r.recognizer, primary.Path, r.recognitionTimeout)
		if err != nil {
			recognitionFailures.Inc()
			log.Printf("recorder: plate recognition failed for %s: %v", primary.Filename, err)
		} else {
			plate = result.PlateNumber
			confidence = result.Confidence
			recognized = true
		}
	}
	// Fine-shaped payloads sometimes carry the plate inline.
	if plate == models.UnknownPlate && ev.PlateNumber != "" {
		plate = ev.PlateNumber
	}

	status := models.FineStatusPending
	if plate != models.UnknownPlate {
		status = models.FineStatusProcessed
	}

	imagePath := ""
	if primary := cv.PrimaryImage(); primary != nil {
		imagePath = primary.Path
	}

	fine := &models.Fine{
		CorrelationID: cv.CorrelationID,
		RadarID:       ev.RadarID,
		PlateNumber:   plate,
		Speed:         ev.Speed,
		SpeedLimit:    ev.SpeedLimit,
		FineAmount:    r.calc.Amount(ev.Speed - ev.SpeedLimit),
		ImagePath:     imagePath,
		Status:        status,
		ViolationTime: ev.Timestamp,
	}

	err := withRetry(ctx, persistAttempts, persistBackoffBase, func() error {
		return r.store.SaveFine(ctx, fine)
	})
	if err != nil {
		return nil, fmt.Errorf("persist fine: %w", err)
	}

	if recognized {
		rec := &models.PlateRecognition{
			CorrelationID: cv.CorrelationID,
			PlateNumber:   plate,
			Confidence:    confidence,
			ImagePath:     imagePath,
			Filename:      cv.Images[0].Filename,
		}
		if err := r.store.SavePlateRecognition(ctx, rec); err != nil {
			// Recognition audit row is secondary to the fine itself.
			log.Printf("recorder: save plate recognition failed: %v", err)
		}
	}

	return fine, nil
}
