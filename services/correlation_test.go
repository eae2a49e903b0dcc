package services

import (
	"testing"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/radar"
)

func testCorrelationConfig() config.CorrelationConfig {
	return config.CorrelationConfig{
		Window:                30 * time.Second,
		ExpiryMultiplier:      2,
		SweepInterval:         15 * time.Second,
		MaxPending:            100,
		MaxImagesPerViolation: 3,
	}
}

func newTestEngine(cfg config.CorrelationConfig) (*CorrelationEngine, *time.Time) {
	e := NewCorrelationEngine(cfg)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, &now
}

func violationAt(ts time.Time) radar.Event {
	return radar.Event{RadarID: 1, Speed: 66, SpeedLimit: 50, Timestamp: ts, SourceFormat: radar.FormatBinary}
}

func imageAt(name string, ts time.Time) radar.ImageEvent {
	return radar.ImageEvent{Path: "/srv/camera_uploads/" + name, Filename: name, CaptureTimestamp: ts}
}

func drain(t *testing.T, e *CorrelationEngine, n int) []radar.CorrelatedViolation {
	t.Helper()
	var got []radar.CorrelatedViolation
	for i := 0; i < n; i++ {
		select {
		case cv := <-e.Output():
			got = append(got, cv)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for emission %d of %d", i+1, n)
		}
	}
	select {
	case cv := <-e.Output():
		t.Fatalf("unexpected extra emission: %+v", cv)
	default:
	}
	return got
}

func TestCorrelationViolationThenImage(t *testing.T) {
	e, now := newTestEngine(testCorrelationConfig())
	base := *now

	e.OfferViolation(violationAt(base))
	if v, i := e.Depths(); v != 1 || i != 0 {
		t.Fatalf("Depths() = (%d,%d), want (1,0)", v, i)
	}

	e.OfferImage(imageAt("a.jpg", base.Add(15*time.Second)))

	got := drain(t, e, 1)
	cv := got[0]
	if !cv.Matched {
		t.Error("expected matched violation")
	}
	if len(cv.Images) != 1 || cv.Images[0].Filename != "a.jpg" {
		t.Errorf("Images = %+v, want single a.jpg", cv.Images)
	}
	if cv.CorrelationID == "" {
		t.Error("expected non-empty correlation id")
	}
	if v, i := e.Depths(); v != 0 || i != 0 {
		t.Errorf("Depths() after match = (%d,%d), want (0,0)", v, i)
	}
}

func TestCorrelationImageThenViolation(t *testing.T) {
	e, now := newTestEngine(testCorrelationConfig())
	base := *now

	e.OfferImage(imageAt("a.jpg", base))
	e.OfferViolation(violationAt(base.Add(10 * time.Second)))

	got := drain(t, e, 1)
	if !got[0].Matched || len(got[0].Images) != 1 {
		t.Errorf("expected matched violation with one image, got %+v", got[0])
	}
}

func TestCorrelationOutsideWindowExpires(t *testing.T) {
	e, now := newTestEngine(testCorrelationConfig())
	base := *now

	// Violation at t=100s, image at t=200s: 100s apart, never a match.
	e.OfferViolation(violationAt(base.Add(100 * time.Second)))
	e.OfferImage(imageAt("late.jpg", base.Add(200 * time.Second)))

	if v, i := e.Depths(); v != 1 || i != 1 {
		t.Fatalf("Depths() = (%d,%d), want (1,1)", v, i)
	}

	// Past the expiry age the violation resolves unmatched; the image
	// stays eligible for a different violation.
	*now = now.Add(61 * time.Second)
	e.Sweep()

	got := drain(t, e, 1)
	if got[0].Matched {
		t.Error("expected unmatched violation after expiry")
	}
	if len(got[0].Images) != 0 {
		t.Errorf("unmatched violation should carry no images, got %d", len(got[0].Images))
	}
	if _, i := e.Depths(); i != 1 {
		t.Errorf("image queue depth = %d, want 1 (still pending)", i)
	}

	// A later violation near the image still matches it.
	e.OfferViolation(violationAt(base.Add(205 * time.Second)))
	got = drain(t, e, 1)
	if !got[0].Matched || got[0].Images[0].Filename != "late.jpg" {
		t.Errorf("expected late.jpg to match later violation, got %+v", got[0])
	}
}

func TestCorrelationNearestImageWins(t *testing.T) {
	cfg := testCorrelationConfig()
	cfg.MaxImagesPerViolation = 1
	e, now := newTestEngine(cfg)
	base := *now

	e.OfferImage(imageAt("far.jpg", base.Add(-25*time.Second)))
	e.OfferImage(imageAt("near.jpg", base.Add(5*time.Second)))

	e.OfferViolation(violationAt(base))

	got := drain(t, e, 1)
	if got[0].Images[0].Filename != "near.jpg" {
		t.Errorf("primary image = %s, want near.jpg", got[0].Images[0].Filename)
	}
	if _, i := e.Depths(); i != 1 {
		t.Errorf("image depth = %d, want 1 (far.jpg still pending)", i)
	}
}

func TestCorrelationTieBreakEarliestEnqueued(t *testing.T) {
	cfg := testCorrelationConfig()
	cfg.MaxImagesPerViolation = 1
	e, now := newTestEngine(cfg)
	base := *now

	// Equidistant captures: the one enqueued first wins.
	e.OfferImage(imageAt("first.jpg", base.Add(10*time.Second)))
	e.OfferImage(imageAt("second.jpg", base.Add(-10*time.Second)))

	e.OfferViolation(violationAt(base))

	got := drain(t, e, 1)
	if got[0].Images[0].Filename != "first.jpg" {
		t.Errorf("tie-break winner = %s, want first.jpg", got[0].Images[0].Filename)
	}
}

func TestCorrelationMultiImageEvidence(t *testing.T) {
	e, now := newTestEngine(testCorrelationConfig())
	base := *now

	e.OfferImage(imageAt("a.jpg", base.Add(2*time.Second)))
	e.OfferImage(imageAt("b.jpg", base.Add(5*time.Second)))
	e.OfferImage(imageAt("c.jpg", base.Add(8*time.Second)))
	e.OfferImage(imageAt("d.jpg", base.Add(12*time.Second)))

	e.OfferViolation(violationAt(base))

	got := drain(t, e, 1)
	if len(got[0].Images) != 3 {
		t.Fatalf("len(Images) = %d, want 3 (capped)", len(got[0].Images))
	}
	if got[0].Images[0].Filename != "a.jpg" {
		t.Errorf("closest image = %s, want a.jpg", got[0].Images[0].Filename)
	}
	if _, i := e.Depths(); i != 1 {
		t.Errorf("image depth = %d, want 1 (d.jpg past the cap)", i)
	}
}

func TestCorrelationViolationCeiling(t *testing.T) {
	cfg := testCorrelationConfig()
	cfg.MaxPending = 3
	e, now := newTestEngine(cfg)
	base := *now

	// Sustained one-sided load: violations with no images ever arriving.
	for i := 0; i < 5; i++ {
		e.OfferViolation(violationAt(base.Add(time.Duration(i) * time.Millisecond)))
	}

	got := drain(t, e, 2)
	for _, cv := range got {
		if cv.Matched {
			t.Error("evicted violation must resolve unmatched, not matched")
		}
	}
	if v, _ := e.Depths(); v != 3 {
		t.Errorf("violation depth = %d, want ceiling 3", v)
	}
}

func TestCorrelationImageCeiling(t *testing.T) {
	cfg := testCorrelationConfig()
	cfg.MaxPending = 2
	e, now := newTestEngine(cfg)
	base := *now

	for i := 0; i < 5; i++ {
		e.OfferImage(imageAt("img.jpg", base.Add(time.Duration(i)*time.Millisecond)))
	}

	if _, i := e.Depths(); i != 2 {
		t.Errorf("image depth = %d, want ceiling 2", i)
	}
	drain(t, e, 0)
}

func TestCorrelationCloseFlushesUnmatched(t *testing.T) {
	e, now := newTestEngine(testCorrelationConfig())
	base := *now

	e.OfferViolation(violationAt(base))
	e.OfferViolation(violationAt(base.Add(time.Second)))
	e.OfferImage(imageAt("orphan.jpg", base.Add(5*time.Minute)))

	e.Close()

	var flushed []radar.CorrelatedViolation
	for cv := range e.Output() {
		flushed = append(flushed, cv)
	}
	if len(flushed) != 2 {
		t.Fatalf("flushed %d violations, want 2", len(flushed))
	}
	for _, cv := range flushed {
		if cv.Matched {
			t.Error("flushed violation must be unmatched")
		}
	}
}

func TestCorrelationExactlyOncePerViolation(t *testing.T) {
	e, now := newTestEngine(testCorrelationConfig())
	base := *now

	e.OfferViolation(violationAt(base))
	e.OfferImage(imageAt("a.jpg", base.Add(time.Second)))

	// Matched already; neither sweep nor close may emit it again.
	*now = now.Add(time.Hour)
	e.Sweep()
	e.Close()

	var got []radar.CorrelatedViolation
	for cv := range e.Output() {
		got = append(got, cv)
	}
	if len(got) != 1 {
		t.Fatalf("emissions = %d, want exactly 1", len(got))
	}
}
