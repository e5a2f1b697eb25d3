package model

import "time"

// BlockedRange is an explicit exclusion over an instructor's availability
// for a specific calendar date: either an all-day block or a sub-range
// [StartMinute, EndMinute).  Blocks are created and deleted by
// administrators and only ever consulted by the booking flow.  A template
// window that overlaps a block is excluded whole; no partial-window
// splitting is performed.
type BlockedRange struct {
	ID           uint64    // blocked_ranges.id
	InstructorID uint64    // blocked_ranges.instructor_id
	BlockDate    string    // blocked_ranges.block_date (YYYY-MM-DD)
	AllDay       bool      // blocked_ranges.all_day
	StartMinute  int       // blocked_ranges.start_minute (0 when all-day)
	EndMinute    int       // blocked_ranges.end_minute (0 when all-day)
	Reason       string    // blocked_ranges.reason
	CreatedAt    time.Time // blocked_ranges.created_at
}
