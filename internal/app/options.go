package service

import (
	"time"

	"github.com/okian/gridpick/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGradeWorkers sets the number of grade persistence workers.
func WithGradeWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.gradeWorkers = count
		}
	}
}

// WithGradeQueueSize sets the capacity of the grade job queue.
func WithGradeQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.gradeQueueSize = size
		}
	}
}

// WithStandingsTTL sets how long fetched standings are served before a
// refresh.
func WithStandingsTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.standingsTTL = ttl
		}
	}
}

// WithMaxStandingsLimit caps the standings page size.
func WithMaxStandingsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
