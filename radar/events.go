package radar

import (
	"fmt"
	"hash/fnv"
	"time"
)

// SourceFormat identifies which wire format a datagram decoded from.
type SourceFormat string

const (
	FormatBinary SourceFormat = "binary"
	FormatJSON   SourceFormat = "json"
	FormatText   SourceFormat = "text"
)

// Event is a single speed measurement reported by a roadside unit.
// Immutable once decoded.
type Event struct {
	RadarID      int          `json:"radar_id"`
	Speed        int          `json:"speed"`
	SpeedLimit   int          `json:"speed_limit"`
	Timestamp    time.Time    `json:"timestamp"`
	SourceFormat SourceFormat `json:"source_format"`
	// PlateNumber is set only for fine-shaped JSON payloads that carry
	// the plate inline.
	PlateNumber string `json:"plate_number,omitempty"`
	RawPayload  string `json:"raw_payload"`
	SourceAddr  string `json:"source_addr,omitempty"`
}

// IsViolation reports whether the measured speed exceeds the limit.
func (e Event) IsViolation() bool {
	return e.Speed > e.SpeedLimit
}

// Fingerprint returns a stable hash used to detect duplicate or
// replayed datagrams describing the same physical measurement.
func (e Event) Fingerprint() uint64 {
	h := fnv.New64a()
	if e.PlateNumber != "" {
		fmt.Fprintf(h, "%s|%d|%d", e.PlateNumber, e.RadarID, e.Timestamp.Unix())
	} else {
		fmt.Fprintf(h, "%d|%d|%d", e.RadarID, e.Speed, e.Timestamp.Unix())
	}
	return h.Sum64()
}

// ImageEvent is a camera capture that became available in the drop
// directory. Immutable.
type ImageEvent struct {
	Path             string    `json:"path"`
	Filename         string    `json:"filename"`
	CaptureTimestamp time.Time `json:"capture_timestamp"`
}

// CorrelatedViolation pairs a speeding event with its evidence images,
// or records that the correlation window closed without any. Created
// exactly once per physical violation.
type CorrelatedViolation struct {
	CorrelationID string       `json:"correlation_id"`
	Event         Event        `json:"event"`
	Images        []ImageEvent `json:"images"`
	Matched       bool         `json:"matched"`
}

// PrimaryImage returns the closest-in-time evidence image, or nil for
// an unmatched violation.
func (v CorrelatedViolation) PrimaryImage() *ImageEvent {
	if len(v.Images) == 0 {
		return nil
	}
	return &v.Images[0]
}

// UnknownPacketError classifies a datagram that matched none of the
// supported wire formats. Malformed input is counted and surfaced, it
// never stops the listener.
type UnknownPacketError struct {
	Reason string
	Raw    []byte
}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("unknown packet format: %s", e.Reason)
}
