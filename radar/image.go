package radar

import (
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

var filenameTimestamp = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})`)

// NewImageEvent builds an ImageEvent for a file that arrived in the
// drop directory. The capture timestamp comes from a YYYYMMDDHHMMSS
// pattern embedded in the filename when present, else from fallback
// (typically the file's modification time).
func NewImageEvent(path string, fallback time.Time) ImageEvent {
	filename := filepath.Base(path)
	return ImageEvent{
		Path:             path,
		Filename:         filename,
		CaptureTimestamp: ParseCaptureTime(filename, fallback),
	}
}

// ParseCaptureTime extracts a YYYYMMDDHHMMSS timestamp from a camera
// filename, returning fallback when no valid pattern is found.
func ParseCaptureTime(filename string, fallback time.Time) time.Time {
	m := filenameTimestamp.FindStringSubmatch(filename)
	if m == nil {
		return fallback
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return fallback
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, fallback.Location())
}
