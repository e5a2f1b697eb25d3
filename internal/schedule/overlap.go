// Package schedule contains the pure scheduling core: interval overlap
// arithmetic, minute-of-day parsing, the shared hold-expiry predicate and
// the availability calculator.  Nothing in this package touches the
// database or the wall clock; callers load the data and supply "now".
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is a half-open time range [Start, End) expressed in minutes since
// midnight.  Times are kept as minutes rather than time.Time so that
// comparisons are free of timezone and date-alignment concerns; callers own
// date alignment.
type Window struct {
	Start int `json:"start_minute"`
	End   int `json:"end_minute"`
}

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.  Touching endpoints do not overlap: a lesson
// ending at 09:00 does not collide with one starting at 09:00.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// ParseMinute converts an "HH:MM" clock string into minutes since midnight.
// It rejects malformed input and out-of-range components.  "24:00" is
// accepted so that an end time may land exactly on midnight.
func ParseMinute(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatMinute renders minutes since midnight back into "HH:MM".
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
