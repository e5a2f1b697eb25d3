package model

import "time"

// Instructor is the bookable resource: a driving instructor whose calendar
// is carved into fixed lesson slots by a weekly template.  Instructors are
// created by administrative configuration and are read-only to the booking
// flow.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name.
//  MaxParticipants – occupant capacity of a single slot (student plus
//                    accompanying supervisors), at least 1.
//  IsActive        – inactive instructors are hidden from browse and
//                    reject new bookings.
//  CreatedAt       – creation timestamp.
type Instructor struct {
	ID              uint64    // instructors.id
	Name            string    // instructors.name
	MaxParticipants int       // instructors.max_participants
	IsActive        bool      // instructors.is_active
	CreatedAt       time.Time // instructors.created_at
}

// TemplateWindow is one entry of an instructor's weekly availability
// template: on Weekday the instructor offers a slot spanning
// [StartMinute, EndMinute).  Windows for the same weekday are ordered by
// start time.
type TemplateWindow struct {
	ID           uint64 // template_windows.id
	InstructorID uint64 // template_windows.instructor_id
	Weekday      int    // template_windows.weekday (0=Sunday .. 6=Saturday)
	StartMinute  int    // template_windows.start_minute
	EndMinute    int    // template_windows.end_minute
}
