package notify

import (
	"time"

	"github.com/okian/gridpick/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithHistory sets how many notifications are kept for Recent.
func WithHistory(n int) Option {
	return func(s *Service) {
		s.maxHistory = n
	}
}

// WithBufferSize sets each subscriber's channel buffer.
func WithBufferSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.bufferSize = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}
