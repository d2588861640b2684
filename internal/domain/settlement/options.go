package settlement

import "github.com/okian/gridpick/pkg/logger"

// Option configures a Trigger.
type Option func(*Trigger)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Trigger) {
		t.log = l
	}
}
