package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/models"
	"speed-enforcement-api/radar"
)

func newTestRecorder(store Store, recognizer PlateRecognizer, publisher EventPublisher) *ViolationRecorder {
	calc, err := NewFineCalculator(defaultFinesConfig())
	if err != nil {
		panic(err)
	}
	return NewViolationRecorder(store, calc, recognizer, config.RecognitionConfig{Timeout: time.Second}, publisher, NewStats())
}

func matchedViolation(speed, limit int) radar.CorrelatedViolation {
	ts := time.Date(2025, 6, 15, 14, 8, 45, 0, time.UTC)
	return radar.CorrelatedViolation{
		CorrelationID: "corr-1",
		Event:         radar.Event{RadarID: 3, Speed: speed, SpeedLimit: limit, Timestamp: ts},
		Images: []radar.ImageEvent{
			{Path: "/srv/camera_uploads/20250615140845.jpg", Filename: "20250615140845.jpg", CaptureTimestamp: ts},
		},
		Matched: true,
	}
}

func TestRecordMatchedWithRecognition(t *testing.T) {
	store := newFakeStore()
	recognizer := &fakeRecognizer{result: PlateResult{PlateNumber: "ABC123", Confidence: 0.92}}
	rec := newTestRecorder(store, recognizer, &fakePublisher{})

	fine, err := rec.Record(context.Background(), matchedViolation(72, 50))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if fine.PlateNumber != "ABC123" {
		t.Errorf("PlateNumber = %q, want ABC123", fine.PlateNumber)
	}
	if fine.Status != models.FineStatusProcessed {
		t.Errorf("Status = %q, want processed", fine.Status)
	}
	if fine.FineAmount != 200 {
		t.Errorf("FineAmount = %v, want 200 (excess 22)", fine.FineAmount)
	}
	if fine.ImagePath == "" {
		t.Error("expected image path on matched fine")
	}
	if len(store.recognitions) != 1 {
		t.Errorf("plate recognitions saved = %d, want 1", len(store.recognitions))
	}
}

func TestRecordRecognitionFailureStillFines(t *testing.T) {
	store := newFakeStore()
	recognizer := &fakeRecognizer{err: errors.New("vision service timeout")}
	rec := newTestRecorder(store, recognizer, &fakePublisher{})

	fine, err := rec.Record(context.Background(), matchedViolation(72, 50))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if fine.PlateNumber != models.UnknownPlate {
		t.Errorf("PlateNumber = %q, want %q", fine.PlateNumber, models.UnknownPlate)
	}
	if fine.Status != models.FineStatusPending {
		t.Errorf("Status = %q, want pending", fine.Status)
	}
	if fine.FineAmount != 200 {
		t.Errorf("FineAmount = %v, want 200", fine.FineAmount)
	}
	if len(store.recognitions) != 0 {
		t.Error("no plate recognition row should be saved on failure")
	}
}

func TestRecordUnmatchedViolation(t *testing.T) {
	store := newFakeStore()
	recognizer := &fakeRecognizer{result: PlateResult{PlateNumber: "ABC123"}}
	rec := newTestRecorder(store, recognizer, &fakePublisher{})

	cv := matchedViolation(66, 50)
	cv.Images = nil
	cv.Matched = false

	fine, err := rec.Record(context.Background(), cv)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if recognizer.calls != 0 {
		t.Error("recognition must not run without an image")
	}
	if fine.PlateNumber != models.UnknownPlate {
		t.Errorf("PlateNumber = %q, want %q", fine.PlateNumber, models.UnknownPlate)
	}
	if fine.ImagePath != "" {
		t.Errorf("ImagePath = %q, want empty", fine.ImagePath)
	}
	if fine.FineAmount != 100 {
		t.Errorf("FineAmount = %v, want 100 (excess 16)", fine.FineAmount)
	}
}

func TestRecordInlinePlateFromPayload(t *testing.T) {
	store := newFakeStore()
	rec := newTestRecorder(store, nil, &fakePublisher{})

	cv := matchedViolation(66, 50)
	cv.Images = nil
	cv.Matched = false
	cv.Event.PlateNumber = "XYZ789"

	fine, err := rec.Record(context.Background(), cv)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if fine.PlateNumber != "XYZ789" {
		t.Errorf("PlateNumber = %q, want XYZ789 (inline from payload)", fine.PlateNumber)
	}
	if fine.Status != models.FineStatusProcessed {
		t.Errorf("Status = %q, want processed", fine.Status)
	}
}

func TestRecordRetriesPersistence(t *testing.T) {
	store := newFakeStore()
	store.failFine = 2 // two transient failures, third attempt lands
	rec := newTestRecorder(store, nil, &fakePublisher{})

	_, err := rec.Record(context.Background(), matchedViolation(72, 50))
	if err != nil {
		t.Fatalf("Record() should succeed after retries, got: %v", err)
	}
	if len(store.savedFines()) != 1 {
		t.Errorf("fines saved = %d, want 1", len(store.savedFines()))
	}
}

func TestRecordPersistenceExhaustion(t *testing.T) {
	store := newFakeStore()
	store.failFine = persistAttempts
	rec := newTestRecorder(store, nil, &fakePublisher{})

	if _, err := rec.Record(context.Background(), matchedViolation(72, 50)); err == nil {
		t.Error("expected error after exhausting retries")
	}
}

func TestRunPublishesFineCreated(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	rec := newTestRecorder(store, nil, publisher)

	input := make(chan radar.CorrelatedViolation, 1)
	input <- matchedViolation(72, 50)
	close(input)

	rec.Run(context.Background(), input)

	if got := publisher.byType(EventFineCreated); len(got) != 1 {
		t.Errorf("fine_created events = %d, want 1", len(got))
	}
}
