// Package ballotsim drives a running BFF with synthetic players: it submits
// ballots concurrently, checks duplicate reporting and compares the served
// confidence figures with a locally computed expectation.
package ballotsim

import (
	"errors"
	"time"

	"github.com/okian/gridpick/internal/domain/model"
)

// Defaults applied by Config.normalize.
const (
	DefaultUsers           = 200
	DefaultWorkers         = 16
	DefaultTimeout         = 10 * time.Second
	DefaultDuplicateSample = 10
	DefaultSkew            = 1.2
	tokenTTL               = time.Hour
)

// ErrInvalidConfig is returned by Run for unusable settings.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL         string        // Base URL of the BFF
	RaceID          int64         // Race the ballots are entered for
	Users           int           // Number of synthetic players
	Workers         int           // Concurrent submitters
	Timeout         time.Duration // HTTP request timeout
	Secret          string        // HS256 secret shared with the BFF
	Issuer          string        // Token issuer, empty to omit
	DuplicateSample int           // Ballots re-submitted to check duplicate reporting
	Skew            float64       // Zipf exponent of driver popularity; higher is more lopsided
	Seed            uint64        // Generator seed; zero picks one from the clock
	OutputFile      string        // Where generated ballots are written, empty to skip
	Verbose         bool          // Log every request outcome
}

func (c *Config) normalize() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url must not be empty"))
	}
	if c.RaceID <= 0 {
		errs = append(errs, errors.New("race id must be positive"))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("jwt secret must not be empty"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	if c.Users <= 0 {
		c.Users = DefaultUsers
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DuplicateSample < 0 {
		c.DuplicateSample = 0
	}
	if c.DuplicateSample > c.Users {
		c.DuplicateSample = c.Users
	}
	if c.Skew <= 1 {
		c.Skew = DefaultSkew
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return nil
}

// Player is one synthetic user and the ballot it submits.
type Player struct {
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Token    string       `json:"-"`
	Ballot   model.Ballot `json:"ballot"`
}

// Outcome classifies one submit attempt.
type Outcome string

// Submit outcomes.
const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInFlight  Outcome = "in_flight"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Stats holds run statistics.
type Stats struct {
	Generated          int
	Submitted          int
	Created            int
	Duplicate          int
	InFlight           int
	Rejected           int
	Failed             int
	Resubmitted        int
	ResubmitDuplicates int
	SlotsVerified      int
	SlotMismatches     int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

func (s *Stats) count(o Outcome) {
	s.Submitted++
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeDuplicate:
		s.Duplicate++
	case OutcomeInFlight:
		s.InFlight++
	case OutcomeRejected:
		s.Rejected++
	default:
		s.Failed++
	}
}
