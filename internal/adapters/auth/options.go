package auth

import "time"

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source used for expiry checks and minting.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}
