package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"speed-enforcement-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the narrow persistence surface the ingest core depends on.
// Every write is idempotent on a natural key so the callers may retry
// freely.
type Store interface {
	SaveReading(ctx context.Context, reading *models.RadarReading) error
	SaveFine(ctx context.Context, fine *models.Fine) error
	SavePlateRecognition(ctx context.Context, rec *models.PlateRecognition) error
	FindOrCreateRadar(ctx context.Context, radarID int, defaults models.Radar) (*models.Radar, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the ingest tables.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.Radar{},
		&models.RadarReading{},
		&models.Fine{},
		&models.PlateRecognition{},
		&models.User{},
	)
}

func (s *GormStore) SaveReading(ctx context.Context, reading *models.RadarReading) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reading).Error
	if err != nil {
		return fmt.Errorf("save reading: %w", err)
	}
	return nil
}

func (s *GormStore) SaveFine(ctx context.Context, fine *models.Fine) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "correlation_id"}}, DoNothing: true}).
		Create(fine).Error
	if err != nil {
		return fmt.Errorf("save fine: %w", err)
	}
	return nil
}

func (s *GormStore) SavePlateRecognition(ctx context.Context, rec *models.PlateRecognition) error {
	err := s.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save plate recognition: %w", err)
	}
	return nil
}

// FindOrCreateRadar registers unknown radar units on first contact and
// bumps last_seen on every subsequent one.
func (s *GormStore) FindOrCreateRadar(ctx context.Context, radarID int, defaults models.Radar) (*models.Radar, error) {
	var radar models.Radar
	err := s.db.WithContext(ctx).
		Where(models.Radar{RadarID: radarID}).
		Attrs(defaults).
		FirstOrCreate(&radar).Error
	if err != nil {
		return nil, fmt.Errorf("find or create radar %d: %w", radarID, err)
	}

	if err := s.db.WithContext(ctx).Model(&radar).Update("last_seen", time.Now()).Error; err != nil {
		// Not worth failing ingest over.
		log.Printf("storage: update last_seen for radar %d failed: %v", radarID, err)
	}
	return &radar, nil
}

// withRetry runs fn with exponential backoff. Transient storage
// failures are retried up to maxAttempts; the returned error is the
// last one observed.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
