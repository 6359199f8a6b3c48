package domain

import (
	"fmt"
	"strings"
	"time"
)

// stationUTCOffset is the fixed offset of every station's wall clock.
// The upstream fleet runs on Brasília time with no DST rules.
const stationUTCOffset = "-03:00"

// NormalizeTimestamp converts a station timestamp string into an absolute
// instant in UTC. Two shapes are accepted: ISO-8601 (contains 'T') and the
// local "DD/MM/YYYY HH:MM:SS" form interpreted at the fixed UTC-3 offset.
// Returns nil for anything malformed; callers that need a non-nil fallback
// decide that themselves.
func NormalizeTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.Contains(raw, "T") {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil
		}
		u := t.UTC()
		return &u
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 {
		return nil
	}
	date, clockPart := parts[0], parts[1]

	dmy := strings.Split(date, "/")
	if len(dmy) != 3 || dmy[0] == "" || dmy[1] == "" || dmy[2] == "" {
		return nil
	}
	day := zeroPad(dmy[0], 2)
	month := zeroPad(dmy[1], 2)
	year := zeroPad(dmy[2], 4)

	iso := fmt.Sprintf("%s-%s-%sT%s%s", year, month, day, clockPart, stationUTCOffset)
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
