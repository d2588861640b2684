// Package settlement submits the authoritative finishing order of a race and
// relays what the scoring API made of it.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

var (
	// ErrForbidden is returned for callers without an admin session.
	ErrForbidden = errors.New("admin access required")
	// ErrIncomplete is returned when any of the six names is blank.
	ErrIncomplete = errors.New("all six finishing positions are required")
	// ErrRejected is returned when the scoring API refused the result.
	ErrRejected = errors.New("settlement rejected")
	// ErrTransport is returned when the scoring API could not be reached.
	ErrTransport = errors.New("settlement request failed")
)

// MsgTransport is shown when the request never got a response.
const MsgTransport = "❌ System error: settlement request failed"

// Settler is the scoring API endpoint that settles races.
type Settler interface {
	Settle(ctx context.Context, token string, result model.RaceResult) (string, error)
}

// SessionFunc resolves the caller's session from ctx.
type SessionFunc func(ctx context.Context) (model.Session, bool)

// Outcome is the rendered result of one settlement attempt.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Trigger sends settlements. It keeps no state: every call re-submits.
type Trigger struct {
	api      Settler
	sessions SessionFunc
	log      logger.Logger
}

// New creates a trigger.
func New(api Settler, sessions SessionFunc, opts ...Option) *Trigger {
	t := &Trigger{api: api, sessions: sessions}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.Get().Named("settlement")
	}
	return t
}

// Settle validates result locally, submits it, and renders the response.
// Local validation and access failures return an error and send nothing;
// everything the server says, including refusals, comes back as an Outcome.
func (t *Trigger) Settle(ctx context.Context, result model.RaceResult) (Outcome, error) {
	var session model.Session
	var ok bool
	if t.sessions != nil {
		session, ok = t.sessions(ctx)
	}
	if !ok || !session.Authenticated() || !session.Admin {
		return Outcome{}, ErrForbidden
	}

	if result.RaceID <= 0 {
		return Outcome{}, fmt.Errorf("%w: race id", ErrIncomplete)
	}
	names := result.Names()
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
		if names[i] == "" {
			return Outcome{}, ErrIncomplete
		}
	}
	result.QualiP1, result.QualiP2, result.QualiP3 = names[0], names[1], names[2]
	result.RaceP1, result.RaceP2, result.RaceP3 = names[3], names[4], names[5]

	msg, err := t.api.Settle(ctx, session.Token, result)
	out := Render(msg, err)

	if err != nil {
		metrics.RecordSettlement("failed")
		t.log.Warn(ctx, "settlement failed",
			logger.Int64("race_id", result.RaceID),
			logger.String("admin", session.Username),
			logger.Error(err))
		return out, nil
	}
	metrics.RecordSettlement("settled")
	t.log.Info(ctx, "race settled",
		logger.Int64("race_id", result.RaceID),
		logger.String("admin", session.Username))
	return out, nil
}

type statusError interface {
	error
	StatusCode() int
	DetailText() string
}

type transportError interface {
	error
	Transport() bool
}

// Render turns the scoring API's answer into the message shown to the admin.
func Render(message string, err error) Outcome {
	if err == nil {
		return Outcome{OK: true, Message: "✅ " + message}
	}
	var te transportError
	if errors.As(err, &te) && te.Transport() {
		return Outcome{Message: MsgTransport}
	}
	var se statusError
	if errors.As(err, &se) {
		return Outcome{Message: "❌ " + se.DetailText()}
	}
	return Outcome{Message: MsgTransport}
}
