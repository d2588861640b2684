package rivalry

import "errors"

var (
	// ErrInvalidTransition is returned when the rivalry's status does not
	// allow the requested change.
	ErrInvalidTransition = errors.New("invalid rivalry transition")
	// ErrNotParticipant is returned when the caller may not act on a rivalry.
	ErrNotParticipant = errors.New("not a participant in this rivalry")
	// ErrInvalidChallenge is returned for malformed challenges.
	ErrInvalidChallenge = errors.New("invalid challenge")
)
