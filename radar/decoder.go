package radar

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Binary frame layout: FE AF 05 01 [RADAR_ID] [SPEED] [CHECKSUM] EF.
// The checksum byte is carried by the hardware but not validated here;
// deployed units populate it inconsistently. A zero radar id byte
// means the unit was never provisioned; those frames are attributed
// to radar 1.
const (
	binaryFrameLen        = 8
	binaryStartByte       = 0xFE
	binaryHeaderByte      = 0xAF
	binaryEndByte         = 0xEF
	binaryRadarIDByte     = 4
	binarySpeedByte       = 5
	binaryFallbackRadarID = 1
)

var textPattern = regexp.MustCompile(`ID:\s*(\d+),\s*Speed:\s*(\d+),\s*Time:\s*(\d{2}:\d{2}:\d{2})`)

// maxClockSkew is how far into the future a bare HH:MM:SS may land
// before it is assumed to belong to the previous day.
const maxClockSkew = 5 * time.Minute

// Decode turns a raw datagram into an Event. It is total: any input
// that matches none of the three wire formats yields an
// *UnknownPacketError, never a panic. Formats are tried in fixed
// order: binary, JSON, delimited text.
func Decode(payload []byte, now time.Time) (Event, error) {
	if ev, ok := decodeBinary(payload, now); ok {
		return ev, nil
	}

	trimmed := strings.TrimSpace(string(payload))
	if ev, ok := decodeJSON(trimmed, now); ok {
		return ev, nil
	}
	if ev, ok := decodeText(trimmed, now); ok {
		return ev, nil
	}

	return Event{}, &UnknownPacketError{
		Reason: fmt.Sprintf("no format matched %d bytes", len(payload)),
		Raw:    payload,
	}
}

func decodeBinary(payload []byte, now time.Time) (Event, bool) {
	if len(payload) != binaryFrameLen {
		return Event{}, false
	}
	if payload[0] != binaryStartByte || payload[1] != binaryHeaderByte || payload[binaryFrameLen-1] != binaryEndByte {
		return Event{}, false
	}

	radarID := int(payload[binaryRadarIDByte])
	if radarID == 0 {
		radarID = binaryFallbackRadarID
	}

	return Event{
		RadarID:      radarID,
		Speed:        int(payload[binarySpeedByte]),
		Timestamp:    now,
		SourceFormat: FormatBinary,
		RawPayload:   strings.ToUpper(hex.EncodeToString(payload)),
	}, true
}

// jsonPayload accepts the field aliases the deployed radar firmwares
// actually send: camelCase, snake_case, and a few legacy names.
type jsonPayload struct {
	RadarID      *int `json:"radarId"`
	RadarIDSnake *int `json:"radar_id"`
	ID           *int `json:"id"`

	Speed         *int `json:"speed"`
	SpeedDetected *int `json:"speedDetected"`

	SpeedLimit      *int `json:"speedLimit"`
	SpeedLimitSnake *int `json:"speed_limit"`

	PlateNumber      string `json:"plateNumber"`
	PlateNumberSnake string `json:"plate_number"`
	LicensePlate     string `json:"licensePlate"`

	Timestamp string `json:"timestamp"`
}

func decodeJSON(trimmed string, now time.Time) (Event, bool) {
	if !strings.HasPrefix(trimmed, "{") {
		return Event{}, false
	}

	var p jsonPayload
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return Event{}, false
	}

	ev := Event{
		RadarID:      firstInt(1, p.RadarID, p.RadarIDSnake, p.ID),
		Speed:        firstInt(0, p.Speed, p.SpeedDetected),
		SpeedLimit:   firstInt(0, p.SpeedLimit, p.SpeedLimitSnake),
		Timestamp:    now,
		SourceFormat: FormatJSON,
		PlateNumber:  firstString(p.PlateNumber, p.PlateNumberSnake, p.LicensePlate),
		RawPayload:   trimmed,
	}

	if p.Timestamp != "" {
		if ts, err := parseTimestamp(p.Timestamp); err == nil {
			ev.Timestamp = ts
		}
	}

	return ev, true
}

func decodeText(trimmed string, now time.Time) (Event, bool) {
	m := textPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Event{}, false
	}

	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Event{}, false
	}
	speed, err := strconv.Atoi(m[2])
	if err != nil {
		return Event{}, false
	}

	clock := strings.Split(m[3], ":")
	hour, _ := strconv.Atoi(clock[0])
	minute, _ := strconv.Atoi(clock[1])
	second, _ := strconv.Atoi(clock[2])
	if hour > 23 || minute > 59 || second > 59 {
		return Event{}, false
	}

	ts := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location())
	// A packet stamped 23:59:59 decoded just after midnight belongs to
	// yesterday, not later today.
	if ts.After(now.Add(maxClockSkew)) {
		ts = ts.AddDate(0, 0, -1)
	}

	return Event{
		RadarID:      id,
		Speed:        speed,
		Timestamp:    ts,
		SourceFormat: FormatText,
		RawPayload:   trimmed,
	}, true
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func firstInt(fallback int, candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return fallback
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
