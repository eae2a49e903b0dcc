package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"speed-enforcement-api/config"
)

// PlateResult is the outcome of a successful recognition call.
type PlateResult struct {
	PlateNumber string  `json:"plate_number"`
	Confidence  float64 `json:"confidence"`
}

// PlateRecognizer calls out to the external vision service. Treated
// as unreliable: callers must tolerate errors and timeouts.
type PlateRecognizer interface {
	Recognize(ctx context.Context, imagePath string) (PlateResult, error)
}

// HTTPRecognizer posts the image path to a recognition endpoint and
// expects {"plate_number": "...", "confidence": 0.92} back.
type HTTPRecognizer struct {
	url    string
	client *http.Client
}

func NewHTTPRecognizer(cfg config.RecognitionConfig) *HTTPRecognizer {
	return &HTTPRecognizer{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, imagePath string) (PlateResult, error) {
	body, err := json.Marshal(map[string]string{"image_path": imagePath})
	if err != nil {
		return PlateResult{}, fmt.Errorf("marshal recognition request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return PlateResult{}, fmt.Errorf("build recognition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return PlateResult{}, fmt.Errorf("recognition request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PlateResult{}, fmt.Errorf("recognition service returned %d", resp.StatusCode)
	}

	var result struct {
		PlateNumber      string  `json:"plate_number"`
		PlateNumberCamel string  `json:"plateNumber"`
		Confidence       float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PlateResult{}, fmt.Errorf("decode recognition response: %w", err)
	}

	plate := result.PlateNumber
	if plate == "" {
		plate = result.PlateNumberCamel
	}
	if plate == "" {
		return PlateResult{}, fmt.Errorf("recognition service returned no plate")
	}

	return PlateResult{PlateNumber: plate, Confidence: result.Confidence}, nil
}

// recognizeWithTimeout bounds a recognition call so a hung vision
// service cannot stall fine creation.
func recognizeWithTimeout(ctx context.Context, recognizer PlateRecognizer, imagePath string, timeout time.Duration) (PlateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return recognizer.Recognize(ctx, imagePath)
}
