package grading

import "errors"

var (
	// ErrForbidden is returned for callers without an admin session.
	ErrForbidden = errors.New("admin access required")
	// ErrUnknownAdjustment is returned for adjustments other than the presets.
	ErrUnknownAdjustment = errors.New("unknown grade adjustment")
	// ErrInvalidBallot is returned for a missing or non-positive ballot id.
	ErrInvalidBallot = errors.New("invalid ballot id")
	// ErrNotLoaded is returned for a ballot whose confirmed score is unknown.
	// Listing the race's ballots loads it.
	ErrNotLoaded = errors.New("ballot not loaded")
	// ErrQueueFull is returned when the persistence job could not be queued.
	// The optimistic value has already been reverted.
	ErrQueueFull = errors.New("grade queue full")
)
