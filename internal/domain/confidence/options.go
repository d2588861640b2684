package confidence

import (
	"time"

	"github.com/okian/gridpick/pkg/logger"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		a.log = l
	}
}

// WithTrackerTTL sets how long an unused tracker is kept.
func WithTrackerTTL(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.trackerTTL = d
		}
	}
}

// WithFetchTimeout bounds each shared pick fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}
