package submission_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/gridpick/internal/domain/inflight"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
	"github.com/okian/gridpick/internal/domain/submission"
	"github.com/okian/gridpick/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
)

func init() {
	_ = logger.Init()
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) SubmitPrediction(ctx context.Context, token string, b model.Ballot) (string, error) {
	args := m.Called(ctx, token, b)
	return args.String(0), args.Error(1)
}

type statusErr struct {
	status int
	detail string
}

func (e *statusErr) Error() string      { return fmt.Sprintf("%d: %s", e.status, e.detail) }
func (e *statusErr) StatusCode() int    { return e.status }
func (e *statusErr) DetailText() string { return e.detail }

type netErr struct{}

func (netErr) Error() string   { return "dial tcp: connection refused" }
func (netErr) Transport() bool { return true }

type races map[int64]model.Race

func (r races) Get(_ context.Context, id int64) (model.Race, error) {
	race, ok := r[id]
	if !ok {
		return model.Race{}, errors.New("not found")
	}
	return race, nil
}

func loggedIn(ctx context.Context) (model.Session, bool) {
	return model.Session{UserID: "u-1", Username: "lights_out", Token: "tok-1"}, true
}

func validBallot() model.Ballot {
	return model.Ballot{
		RaceID:  7,
		QualiP1: "Max Verstappen",
		QualiP2: registry.Placeholder,
		RaceP1:  " Lando Norris ",
		Bonus1:  "Safety car",
	}
}

func TestSubmitValidation(t *testing.T) {
	Convey("Given a submission client", t, func() {
		ctx := context.Background()
		api := new(mockPredictor)
		now := time.Date(2026, 5, 23, 10, 0, 0, 0, time.UTC)
		quali := now.Add(4 * time.Hour)
		closed := now.Add(-time.Hour)
		client := submission.New(api,
			submission.WithSessions(loggedIn),
			submission.WithClock(func() time.Time { return now }),
			submission.WithRaces(races{
				7: {ID: 7, Qualifying: &quali, RaceTime: quali.Add(24 * time.Hour)},
				8: {ID: 8, Qualifying: &closed, RaceTime: now.Add(20 * time.Hour)},
			}),
		)

		Convey("When the user is not logged in", func() {
			anon := submission.New(api)
			_, err := anon.Submit(ctx, validBallot())

			Convey("Then it fails before any network call", func() {
				So(errors.Is(err, submission.ErrAuthRequired), ShouldBeTrue)
				So(submission.KindOf(err), ShouldEqual, submission.KindAuth)
				api.AssertNotCalled(t, "SubmitPrediction", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When qualifying P1 is blank", func() {
			b := validBallot()
			b.QualiP1 = "  "
			_, err := client.Submit(ctx, b)

			Convey("Then a required-pick validation error is returned", func() {
				So(errors.Is(err, submission.ErrMissingRequiredPick), ShouldBeTrue)
				So(err.Error(), ShouldEqual, submission.MsgRequired)
				api.AssertNotCalled(t, "SubmitPrediction", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When race P1 is the placeholder", func() {
			b := validBallot()
			b.RaceP1 = registry.Placeholder
			_, err := client.Submit(ctx, b)
			So(errors.Is(err, submission.ErrMissingRequiredPick), ShouldBeTrue)
		})

		Convey("When a pick names an unknown driver", func() {
			b := validBallot()
			b.RaceP3 = "Ayrton Senna"
			_, err := client.Submit(ctx, b)

			So(errors.Is(err, submission.ErrUnknownDriver), ShouldBeTrue)
			So(submission.KindOf(err), ShouldEqual, submission.KindValidation)
		})

		Convey("When qualifying has already started", func() {
			b := validBallot()
			b.RaceID = 8
			_, err := client.Submit(ctx, b)

			So(errors.Is(err, submission.ErrWindowClosed), ShouldBeTrue)
		})

		Convey("When the race is unknown locally", func() {
			b := validBallot()
			b.RaceID = 99
			api.On("SubmitPrediction", mock.Anything, "tok-1", mock.Anything).Return("ok", nil).Once()

			_, err := client.Submit(ctx, b)

			Convey("Then the backend decides", func() {
				So(err, ShouldBeNil)
				api.AssertExpectations(t)
			})
		})
	})
}

func TestSubmitOutcomes(t *testing.T) {
	Convey("Given a valid ballot", t, func() {
		ctx := context.Background()
		api := new(mockPredictor)
		client := submission.New(api, submission.WithSessions(loggedIn))

		Convey("When the backend accepts it", func() {
			api.On("SubmitPrediction", mock.Anything, "tok-1", mock.MatchedBy(func(b model.Ballot) bool {
				return b.UserID == "u-1" && b.RaceP1 == "Lando Norris" && b.QualiP2 == "" && b.Bonus1 == "Safety car"
			})).Return("Prediction saved", nil).Once()

			res, err := client.Submit(ctx, validBallot())

			Convey("Then the default acknowledgment is shown", func() {
				So(err, ShouldBeNil)
				So(res.Message, ShouldEqual, "✅ Predictions submitted!")
				So(res.ServerMessage, ShouldEqual, "Prediction saved")
				api.AssertExpectations(t)
			})
		})

		Convey("When a completion callback is supplied", func() {
			var called bool
			withCb := submission.New(api,
				submission.WithSessions(loggedIn),
				submission.WithOnSuccess(func(_ context.Context, b model.Ballot, _ string) { called = b.RaceID == 7 }))
			api.On("SubmitPrediction", mock.Anything, mock.Anything, mock.Anything).Return("", nil).Once()

			res, err := withCb.Submit(ctx, validBallot())

			Convey("Then it fires instead of the acknowledgment", func() {
				So(err, ShouldBeNil)
				So(called, ShouldBeTrue)
				So(res.Message, ShouldBeEmpty)
			})
		})

		Convey("When the backend reports a unique violation in the detail", func() {
			api.On("SubmitPrediction", mock.Anything, mock.Anything, mock.Anything).
				Return("", &statusErr{status: 400, detail: `duplicate key value violates unique constraint "predictions_user_id_race_id_key"`}).Once()

			_, err := client.Submit(ctx, validBallot())

			Convey("Then the distinct duplicate message is shown", func() {
				So(submission.KindOf(err), ShouldEqual, submission.KindDuplicate)
				So(err.Error(), ShouldEqual, "You have already submitted predictions for this race. Only one ballot per race is allowed.")
				So(errors.Is(err, submission.ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("When the backend answers 409", func() {
			api.On("SubmitPrediction", mock.Anything, mock.Anything, mock.Anything).
				Return("", &statusErr{status: 409, detail: "Conflict"}).Once()

			_, err := client.Submit(ctx, validBallot())
			So(submission.KindOf(err), ShouldEqual, submission.KindDuplicate)
		})

		Convey("When the backend rejects for another reason", func() {
			api.On("SubmitPrediction", mock.Anything, mock.Anything, mock.Anything).
				Return("", &statusErr{status: 422, detail: "race not found"}).Once()

			_, err := client.Submit(ctx, validBallot())

			Convey("Then the detail is surfaced", func() {
				So(submission.KindOf(err), ShouldEqual, submission.KindRejected)
				So(err.Error(), ShouldEqual, "Submission failed: race not found")
			})
		})

		Convey("When the backend cannot be reached", func() {
			api.On("SubmitPrediction", mock.Anything, mock.Anything, mock.Anything).Return("", netErr{}).Once()

			_, err := client.Submit(ctx, validBallot())

			Convey("Then the generic system error is shown", func() {
				So(submission.KindOf(err), ShouldEqual, submission.KindTransport)
				So(err.Error(), ShouldEqual, "System error: could not reach the prediction server. Please try again.")
			})
		})
	})
}

// blockingPredictor holds every call until release is closed.
type blockingPredictor struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPredictor) SubmitPrediction(ctx context.Context, _ string, _ model.Ballot) (string, error) {
	p.entered <- struct{}{}
	<-p.release
	return "ok", nil
}

func TestSubmitInFlight(t *testing.T) {
	Convey("Given a submit that is still running", t, func() {
		ctx := context.Background()
		api := &blockingPredictor{entered: make(chan struct{}, 1), release: make(chan struct{})}
		client := submission.New(api, submission.WithSessions(loggedIn), submission.WithGuard(inflight.NewInMemoryGuard()))

		done := make(chan error, 1)
		go func() {
			_, err := client.Submit(ctx, validBallot())
			done <- err
		}()
		<-api.entered

		Convey("When the same ballot is submitted again", func() {
			_, err := client.Submit(ctx, validBallot())

			Convey("Then it is refused locally", func() {
				So(errors.Is(err, submission.ErrInFlight), ShouldBeTrue)
				So(submission.KindOf(err), ShouldEqual, submission.KindInFlight)
			})

			Convey("And once the first completes the guard is released", func() {
				close(api.release)
				So(<-done, ShouldBeNil)

				go func() { <-api.entered }()
				_, err := client.Submit(ctx, validBallot())
				So(err, ShouldBeNil)
			})
		})

		Reset(func() {
			select {
			case <-api.release:
			default:
				close(api.release)
			}
		})
	})
}

func TestSubmitBusy(t *testing.T) {
	Convey("Given a guard already holding as many submissions as it allows", t, func() {
		ctx := context.Background()
		guard := inflight.NewInMemoryGuard(inflight.WithMaxSize(1))
		So(guard.Acquire(ctx, "someone-else:7"), ShouldBeNil)
		api := new(mockPredictor)
		client := submission.New(api, submission.WithSessions(loggedIn), submission.WithGuard(guard))

		Convey("When another user submits", func() {
			_, err := client.Submit(ctx, validBallot())

			Convey("Then they are told the system is busy, not that their ballot is in flight", func() {
				So(errors.Is(err, submission.ErrBusy), ShouldBeTrue)
				So(errors.Is(err, submission.ErrInFlight), ShouldBeFalse)
				So(submission.KindOf(err), ShouldEqual, submission.KindBusy)
				So(err.Error(), ShouldEqual, submission.MsgBusy)
				api.AssertNotCalled(t, "SubmitPrediction", mock.Anything, mock.Anything, mock.Anything)
			})
		})
	})
}
