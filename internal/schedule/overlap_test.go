package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     int
		want                           bool
	}{
		{"identical ranges", 495, 535, 495, 535, true},
		{"partial overlap", 495, 535, 520, 560, true},
		{"contained", 480, 600, 495, 535, true},
		{"touching endpoints do not overlap", 495, 535, 535, 575, false},
		{"touching endpoints reversed", 535, 575, 495, 535, false},
		{"disjoint", 480, 500, 510, 530, false},
		{"one minute overlap", 495, 536, 535, 575, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
			// symmetry
			assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd))
		})
	}
}

func TestParseMinute(t *testing.T) {
	m, err := ParseMinute("08:15")
	require.NoError(t, err)
	assert.Equal(t, 495, m)

	m, err = ParseMinute("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, m)

	m, err = ParseMinute("24:00")
	require.NoError(t, err)
	assert.Equal(t, 1440, m)

	for _, bad := range []string{"", "8:15", "0815", "08:60", "25:00", "24:01", "ab:cd", "08:15:00"} {
		_, err := ParseMinute(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "08:15", FormatMinute(495))
	assert.Equal(t, "00:00", FormatMinute(0))
	assert.Equal(t, "23:59", FormatMinute(1439))
}
