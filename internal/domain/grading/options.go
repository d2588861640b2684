package grading

import (
	"time"

	"github.com/okian/gridpick/pkg/logger"
)

// Option configures a Grader.
type Option func(*Grader)

// WithNotifier sets where sync failures are announced.
func WithNotifier(p Publisher) Option {
	return func(g *Grader) {
		g.notes = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Grader) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Grader) {
		g.log = l
	}
}
