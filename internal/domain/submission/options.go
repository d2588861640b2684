package submission

import (
	"time"

	"github.com/okian/gridpick/internal/domain/inflight"
	"github.com/okian/gridpick/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithRaces enables the prediction-window check.
func WithRaces(r RaceLookup) Option {
	return func(c *Client) {
		c.races = r
	}
}

// WithGuard sets the in-flight guard shared between submit paths.
func WithGuard(g inflight.Guard) Option {
	return func(c *Client) {
		c.guard = g
	}
}

// WithSessions sets how the caller's session is resolved.
func WithSessions(f SessionFunc) Option {
	return func(c *Client) {
		if f != nil {
			c.sessions = f
		}
	}
}

// WithOnSuccess replaces the default acknowledgment with f.
func WithOnSuccess(f SuccessFunc) Option {
	return func(c *Client) {
		c.onSuccess = f
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}
