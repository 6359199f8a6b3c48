package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// numberRe matches the first signed decimal number in a sensor string,
// e.g. "28.6 °C" -> "28.6", "-3.2 m/s" -> "-3.2".
var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// ExtractNumber pulls a float out of a loosely formatted scalar. Strings may
// carry units and a locale decimal comma ("28,6 °C"). Returns nil for
// null/empty input and for strings with no numeric substring, so callers can
// tell an absent sensor from one that read zero.
func ExtractNumber(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		return extractFromString(n)
	default:
		return nil
	}
}

func extractFromString(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// Only the first comma is the decimal separator; stations never emit
	// thousands separators.
	s = strings.Replace(s, ",", ".", 1)

	match := numberRe.FindString(s)
	if match == "" {
		return nil
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &f
}
