// Package submission sends a user's ballot for a race, once.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gridpick/internal/domain/inflight"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

// Predictor writes ballots. The backend behind it is the only authority on
// one-ballot-per-race.
type Predictor interface {
	SubmitPrediction(ctx context.Context, token string, b model.Ballot) (string, error)
}

// RaceLookup finds a race to check its prediction window.
type RaceLookup interface {
	Get(ctx context.Context, id int64) (model.Race, error)
}

// SessionFunc resolves the caller's session from ctx.
type SessionFunc func(ctx context.Context) (model.Session, bool)

// SuccessFunc runs after an accepted submission in place of the default
// acknowledgment.
type SuccessFunc func(ctx context.Context, b model.Ballot, serverMessage string)

// Result describes an accepted ballot.
type Result struct {
	Ballot        model.Ballot `json:"ballot"`
	Message       string       `json:"message,omitempty"`
	ServerMessage string       `json:"server_message,omitempty"`
}

// Client validates and submits ballots.
type Client struct {
	api       Predictor
	races     RaceLookup
	guard     inflight.Guard
	sessions  SessionFunc
	onSuccess SuccessFunc
	now       func() time.Time
	log       logger.Logger
}

// New creates a submission client writing through api.
func New(api Predictor, opts ...Option) *Client {
	c := &Client{
		api:      api,
		now:      time.Now,
		sessions: func(context.Context) (model.Session, bool) { return model.Session{}, false },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard == nil {
		c.guard = inflight.NewInMemoryGuard()
	}
	if c.log == nil {
		c.log = logger.Get().Named("submission")
	}
	return c
}

// Submit validates b locally and, if it passes, sends it in a single
// request. Failures are *Error values carrying a displayable message.
func (c *Client) Submit(ctx context.Context, b model.Ballot) (Result, error) {
	session, ok := c.sessions(ctx)
	if !ok || !session.Authenticated() {
		return c.fail(ctx, &Error{Kind: KindAuth, Message: MsgLogin, Err: ErrAuthRequired})
	}
	b.UserID = session.UserID
	b.ManualScore = nil
	b.LeaguePoints = nil
	b.Normalize()

	if err := c.validate(ctx, &b); err != nil {
		return c.fail(ctx, err)
	}

	key := fmt.Sprintf("%s:%d", b.UserID, b.RaceID)
	if err := c.guard.Acquire(ctx, key); err != nil {
		if errors.Is(err, inflight.ErrCapacity) {
			return c.fail(ctx, &Error{Kind: KindBusy, Message: MsgBusy, Err: errors.Join(ErrBusy, err)})
		}
		return c.fail(ctx, &Error{Kind: KindInFlight, Message: MsgInFlight, Err: errors.Join(ErrInFlight, err)})
	}
	defer c.guard.Release(ctx, key)

	msg, err := c.api.SubmitPrediction(ctx, session.Token, b)
	if err != nil {
		return c.fail(ctx, classify(err))
	}

	metrics.RecordBallotSubmission("accepted")
	c.log.Info(ctx, "ballot submitted",
		logger.String("user_id", b.UserID),
		logger.Int64("race_id", b.RaceID))

	res := Result{Ballot: b, ServerMessage: msg}
	if c.onSuccess != nil {
		c.onSuccess(ctx, b, msg)
		return res, nil
	}
	res.Message = MsgSubmitted
	return res, nil
}

func (c *Client) validate(ctx context.Context, b *model.Ballot) *Error {
	if b.RaceID <= 0 {
		return &Error{Kind: KindValidation, Message: "A race must be selected.", Err: ErrMissingRequiredPick}
	}
	if registry.IsBlank(b.QualiP1) || registry.IsBlank(b.RaceP1) {
		return &Error{Kind: KindValidation, Message: MsgRequired, Err: ErrMissingRequiredPick}
	}
	for _, slot := range model.Slots() {
		pick := b.Pick(slot)
		if registry.IsBlank(pick) {
			b.SetPick(slot, "")
			continue
		}
		if !registry.IsSelectable(pick) {
			return &Error{
				Kind:    KindValidation,
				Message: fmt.Sprintf("Unknown driver %q for %s.", pick, slot),
				Err:     ErrUnknownDriver,
			}
		}
	}

	if c.races == nil {
		return nil
	}
	race, err := c.races.Get(ctx, b.RaceID)
	if err != nil {
		// An unknown race skips the window check.
		c.log.Debug(ctx, "race lookup failed, skipping window check",
			logger.Int64("race_id", b.RaceID),
			logger.Error(err))
		return nil
	}
	if !race.IsOpen(c.now()) {
		return &Error{Kind: KindValidation, Message: MsgClosed, Err: ErrWindowClosed}
	}
	return nil
}

func (c *Client) fail(ctx context.Context, e *Error) (Result, error) {
	metrics.RecordBallotSubmission(e.Kind.String())
	if e.Kind == KindTransport || e.Kind == KindRejected || e.Kind == KindBusy {
		c.log.Warn(ctx, "ballot submission failed",
			logger.String("kind", e.Kind.String()),
			logger.Error(e.Err))
	}
	return Result{}, e
}
