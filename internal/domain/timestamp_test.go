package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimestamp_LocalFormat(t *testing.T) {
	got := NormalizeTimestamp("18/11/2025 08:28:44")
	require.NotNil(t, got)
	// 08:28:44 at -03:00 is 11:28:44 UTC; no seasonal adjustment ever applies.
	assert.Equal(t, time.Date(2025, 11, 18, 11, 28, 44, 0, time.UTC), *got)
}

func TestNormalizeTimestamp_ZeroPadsComponents(t *testing.T) {
	got := NormalizeTimestamp("1/2/2025 03:04:05")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 2, 1, 6, 4, 5, 0, time.UTC), *got)
}

func TestNormalizeTimestamp_ISOPassthrough(t *testing.T) {
	got := NormalizeTimestamp("2025-11-18T08:28:44-03:00")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 11, 18, 11, 28, 44, 0, time.UTC), *got)

	got = NormalizeTimestamp("2025-11-18T11:28:44Z")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 11, 18, 11, 28, 44, 0, time.UTC), *got)
}

func TestNormalizeTimestamp_Malformed(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"18/11/2025",             // no time part
		"18-11-2025 08:28:44",    // wrong date separator
		"18/11 08:28:44",         // missing year
		"31/02/2025 08:28:44",    // impossible date
		"18/11/2025 25:99:99",    // impossible time
		"ontem às oito",          // free text
		"2025-13-45T99:99:99Z",   // invalid ISO
		"18/11/2025 08:28:44 -3", // trailing junk
	}
	for _, input := range tests {
		assert.Nil(t, NormalizeTimestamp(input), "input %q", input)
	}
}
