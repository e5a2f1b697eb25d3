// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios: a lost
// booking race, a business-rule rejection or a caller acting on someone
// else's resource.
package repository

import "errors"

// ErrSlotTaken is returned when a create or move lost the race for a
// slot: a concurrent writer committed an overlapping reservation between
// "show available" and "commit".  Handlers translate this into HTTP 409;
// clients should re-query availability and retry.
var ErrSlotTaken = errors.New("slot no longer available")

// ErrInsufficientCredits is returned when a credit-rail confirmation
// finds the user's balance empty.  No partial mutation occurs.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as paying or completing a cancelled
// reservation.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("reservation state does not allow this operation")
