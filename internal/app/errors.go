package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrInvalidFilter = errors.New("invalid race filter")
	ErrInvalidLimit  = errors.New("invalid standings limit")
	ErrNoUpcoming    = errors.New("no upcoming race")
	ErrStale         = errors.New("superseded by a newer request")
)
