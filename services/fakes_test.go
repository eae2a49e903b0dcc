package services

import (
	"context"
	"errors"
	"sync"

	"speed-enforcement-api/models"
)

// fakeStore records writes in memory and can be made to fail.
type fakeStore struct {
	mu           sync.Mutex
	readings     []models.RadarReading
	fines        []models.Fine
	recognitions []models.PlateRecognition
	radars       map[int]models.Radar
	failFine     int // fail this many SaveFine calls before succeeding
	nextFineID   uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{radars: make(map[int]models.Radar)}
}

func (s *fakeStore) SaveReading(_ context.Context, reading *models.RadarReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.readings {
		if r.RadarID == reading.RadarID && r.Speed == reading.Speed && r.DetectionTime.Equal(reading.DetectionTime) {
			return nil // natural-key conflict, write is a no-op
		}
	}
	s.readings = append(s.readings, *reading)
	return nil
}

func (s *fakeStore) SaveFine(_ context.Context, fine *models.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFine > 0 {
		s.failFine--
		return errors.New("storage unavailable")
	}
	for _, f := range s.fines {
		if f.CorrelationID == fine.CorrelationID {
			return nil
		}
	}
	s.nextFineID++
	fine.ID = s.nextFineID
	s.fines = append(s.fines, *fine)
	return nil
}

func (s *fakeStore) SavePlateRecognition(_ context.Context, rec *models.PlateRecognition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recognitions = append(s.recognitions, *rec)
	return nil
}

func (s *fakeStore) FindOrCreateRadar(_ context.Context, radarID int, defaults models.Radar) (*models.Radar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.radars[radarID]; ok {
		return &r, nil
	}
	s.radars[radarID] = defaults
	r := defaults
	return &r, nil
}

func (s *fakeStore) savedFines() []models.Fine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Fine, len(s.fines))
	copy(out, s.fines)
	return out
}

func (s *fakeStore) savedReadings() []models.RadarReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RadarReading, len(s.readings))
	copy(out, s.readings)
	return out
}

// fakeRecognizer returns a fixed result or error.
type fakeRecognizer struct {
	result PlateResult
	err    error
	calls  int
}

func (r *fakeRecognizer) Recognize(_ context.Context, _ string) (PlateResult, error) {
	r.calls++
	if r.err != nil {
		return PlateResult{}, r.err
	}
	return r.result, nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []LiveEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, LiveEvent{Type: eventType, Data: data})
}

func (p *fakePublisher) byType(eventType string) []LiveEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []LiveEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
