package repository

import "errors"

// Sentinel kinds for standings errors.
var (
	ErrNotFound     = errors.New("user not in standings")
	ErrInvalidLimit = errors.New("invalid standings limit")
	ErrInvalidRow   = errors.New("standings row without username")
)
