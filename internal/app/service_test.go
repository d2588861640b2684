package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/adapters/recordstore"
	"github.com/okian/gridpick/internal/adapters/repository"
	"github.com/okian/gridpick/internal/adapters/scoringapi"
	"github.com/okian/gridpick/internal/domain/grading"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/internal/domain/submission"
	"github.com/okian/gridpick/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) SubmitPrediction(ctx context.Context, token string, b model.Ballot) (string, error) {
	args := m.Called(token, b.RaceID)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) Settle(ctx context.Context, token string, result model.RaceResult) (string, error) {
	args := m.Called(token, result.RaceID)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) Grade(ctx context.Context, token string, ballotID int64, score int) error {
	return m.Called(token, ballotID, score).Error(0)
}

func (m *mockAPI) AdminPredictions(ctx context.Context, token string, raceID int64) ([]model.Ballot, error) {
	args := m.Called(token, raceID)
	out, _ := args.Get(0).([]model.Ballot)
	return out, args.Error(1)
}

func (m *mockAPI) Standings(ctx context.Context) ([]model.Standing, error) {
	args := m.Called()
	out, _ := args.Get(0).([]model.Standing)
	return out, args.Error(1)
}

func (m *mockAPI) CreateLeague(ctx context.Context, token string, in scoringapi.LeagueInput) (model.League, error) {
	args := m.Called(token, in)
	return args.Get(0).(model.League), args.Error(1)
}

func (m *mockAPI) PublicLeagues(ctx context.Context) ([]model.League, error) {
	args := m.Called()
	out, _ := args.Get(0).([]model.League)
	return out, args.Error(1)
}

func (m *mockAPI) MyLeagues(ctx context.Context, token string) ([]model.League, error) {
	args := m.Called(token)
	out, _ := args.Get(0).([]model.League)
	return out, args.Error(1)
}

func (m *mockAPI) JoinLeague(ctx context.Context, token, code string) (model.League, error) {
	args := m.Called(token, code)
	return args.Get(0).(model.League), args.Error(1)
}

func (m *mockAPI) InviteToLeague(ctx context.Context, token string, id int64, username string) (string, error) {
	args := m.Called(token, id, username)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) LeaveLeague(ctx context.Context, token string, id int64) (string, error) {
	args := m.Called(token, id)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) DeleteLeague(ctx context.Context, token string, id int64) (string, error) {
	args := m.Called(token, id)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) LeagueStandings(ctx context.Context, token string, id int64) ([]model.Membership, error) {
	args := m.Called(token, id)
	out, _ := args.Get(0).([]model.Membership)
	return out, args.Error(1)
}

func (m *mockAPI) LeagueMembers(ctx context.Context, token string, id int64) ([]model.Membership, error) {
	args := m.Called(token, id)
	out, _ := args.Get(0).([]model.Membership)
	return out, args.Error(1)
}

func (m *mockAPI) LeagueGradingQueue(ctx context.Context, token string, id int64) ([]model.Ballot, error) {
	args := m.Called(token, id)
	out, _ := args.Get(0).([]model.Ballot)
	return out, args.Error(1)
}

func (m *mockAPI) LeagueActivity(ctx context.Context, token string, id int64) ([]model.LeagueActivity, error) {
	args := m.Called(token, id)
	out, _ := args.Get(0).([]model.LeagueActivity)
	return out, args.Error(1)
}

func (m *mockAPI) SyncLeaguePoints(ctx context.Context, token string, id int64) (string, error) {
	args := m.Called(token, id)
	return args.String(0), args.Error(1)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc     *service.Service
	api     *mockAPI
	clock   *clock
	store   *recordstore.MemoryStore
	ballots *recordstore.Ballots
	races   []model.Race
	notes   *notify.Service
}

var (
	alice = model.Session{UserID: "u-alice", Username: "alice", Token: "tok-alice", ExpiresAt: time.Now().Add(time.Hour)}
	bob   = model.Session{UserID: "u-bob", Username: "bob", Token: "tok-bob", ExpiresAt: time.Now().Add(time.Hour)}
	boss  = model.Session{UserID: "u-boss", Username: "boss", Token: "tok-boss", Admin: true, ExpiresAt: time.Now().Add(time.Hour)}
)

func as(s model.Session) context.Context {
	return auth.WithSession(context.Background(), s)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := recordstore.NewMemoryStore(recordstore.WithUnique(recordstore.TablePredictions, "user_id", "race_id"))
	races := recordstore.NewRaces(store)

	var seeded []model.Race
	for i, offset := range []time.Duration{-14 * 24 * time.Hour, -7 * 24 * time.Hour, 7 * 24 * time.Hour, 14 * 24 * time.Hour} {
		start := c.now.Add(offset)
		quali := start.Add(-24 * time.Hour)
		r, err := races.Create(ctx, model.Race{Name: "Round", Round: i + 1, RaceTime: start, Qualifying: &quali})
		require.NoError(t, err)
		seeded = append(seeded, r)
	}

	profiles := recordstore.NewProfiles(store)
	for _, s := range []model.Session{alice, bob, boss} {
		_, err := profiles.Create(ctx, recordstore.Profile{ID: s.UserID, Username: s.Username, IsAdmin: s.Admin})
		require.NoError(t, err)
	}

	api := &mockAPI{}
	notes := notify.New()
	ballots := recordstore.NewBallots(store)
	svc := service.New(service.Deps{
		API:       api,
		Races:     races,
		Picks:     ballots,
		Rivalries: recordstore.NewRivalries(store),
		Profiles:  profiles,
		Notes:     notes,
	},
		service.WithClock(c.Now),
		service.WithStandingsTTL(time.Minute),
		service.WithMaxStandingsLimit(10),
		service.WithGradeWorkers(2),
	)
	return &fixture{svc: svc, api: api, clock: c, store: store, ballots: ballots, races: seeded, notes: notes}
}

func TestRaces(t *testing.T) {
	Convey("Given a calendar with two past and two upcoming races", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		Convey("When listing all races", func() {
			all, err := f.svc.Races(ctx, service.WhenAll)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 4)
			So(all[0].ID, ShouldEqual, f.races[0].ID)
		})

		Convey("When listing upcoming races", func() {
			up, err := f.svc.Races(ctx, service.WhenUpcoming)
			So(err, ShouldBeNil)
			So(up, ShouldHaveLength, 2)
			So(up[0].ID, ShouldEqual, f.races[2].ID)
		})

		Convey("When listing past races they should run most recent first", func() {
			past, err := f.svc.Races(ctx, service.WhenPast)
			So(err, ShouldBeNil)
			So(past, ShouldHaveLength, 2)
			So(past[0].ID, ShouldEqual, f.races[1].ID)
		})

		Convey("When asking for the next race", func() {
			next, err := f.svc.NextRace(ctx)
			So(err, ShouldBeNil)
			So(next.ID, ShouldEqual, f.races[2].ID)

			f.clock.Advance(30 * 24 * time.Hour)
			_, err = f.svc.NextRace(ctx)
			So(errors.Is(err, service.ErrNoUpcoming), ShouldBeTrue)
		})

		Convey("When parsing filters", func() {
			w, err := service.ParseWhen("")
			So(err, ShouldBeNil)
			So(w, ShouldEqual, service.WhenAll)
			_, err = service.ParseWhen("tomorrow")
			So(errors.Is(err, service.ErrInvalidFilter), ShouldBeTrue)
		})

		Convey("When a race is missing", func() {
			_, err := f.svc.Race(ctx, 999)
			So(errors.Is(err, recordstore.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestStandings(t *testing.T) {
	Convey("Given the scoring API returns unordered standings", t, func() {
		f := newFixture(t)
		ctx := context.Background()
		f.api.On("Standings").Return([]model.Standing{
			{Username: "zoe", TotalScore: 20},
			{Username: "amy", TotalScore: 20},
			{Username: "max", TotalScore: 40},
			{Username: "ian", TotalScore: 5},
		}, nil).Once()

		top, err := f.svc.Standings(ctx, 3)
		So(err, ShouldBeNil)

		Convey("Then rows should be ordered by score then username with shared ranks", func() {
			So(top, ShouldHaveLength, 3)
			So(top[0].Username, ShouldEqual, "max")
			So(top[1].Username, ShouldEqual, "amy")
			So(top[2].Username, ShouldEqual, "zoe")
			So(top[2].Rank, ShouldEqual, 2)

			e, err := f.svc.StandingFor(ctx, "ian")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 4)
		})

		Convey("Then reads within the TTL should not refetch", func() {
			_, err := f.svc.Standings(ctx, 2)
			So(err, ShouldBeNil)
			f.api.AssertNumberOfCalls(t, "Standings", 1)
		})

		Convey("When the TTL passes and the refresh fails", func() {
			f.clock.Advance(2 * time.Minute)
			f.api.On("Standings").Return(nil, errors.New("down")).Once()
			top, err := f.svc.Standings(ctx, 1)

			Convey("Then the previous table should still be served", func() {
				So(err, ShouldBeNil)
				So(top[0].Username, ShouldEqual, "max")
				f.api.AssertNumberOfCalls(t, "Standings", 2)
			})
		})

		Convey("When the limit is out of range", func() {
			_, err := f.svc.Standings(ctx, 11)
			So(errors.Is(err, service.ErrInvalidLimit), ShouldBeTrue)
			_, err = f.svc.Standings(ctx, 0)
			So(errors.Is(err, service.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("When the user is unknown", func() {
			_, err := f.svc.StandingFor(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given the first standings fetch fails", t, func() {
		f := newFixture(t)
		f.api.On("Standings").Return(nil, errors.New("down"))
		_, err := f.svc.Standings(context.Background(), 5)
		So(err, ShouldNotBeNil)
	})
}

func TestBallots(t *testing.T) {
	Convey("Given an open race", t, func() {
		f := newFixture(t)
		race := f.races[3]

		Convey("When alice submits a ballot", func() {
			f.api.On("SubmitPrediction", "tok-alice", race.ID).Return("Prediction saved", nil).Once()
			res, err := f.svc.SubmitBallot(as(alice), model.Ballot{RaceID: race.ID, QualiP1: "Lando Norris", RaceP1: "Max Verstappen"})

			Convey("Then it should be acknowledged and announced to her", func() {
				So(err, ShouldBeNil)
				So(res.Message, ShouldEqual, submission.MsgSubmitted)
				So(res.Ballot.UserID, ShouldEqual, alice.UserID)
				So(f.notes.RecentFor(alice.UserID, 1)[0].Level, ShouldEqual, notify.LevelSuccess)
				f.api.AssertExpectations(t)
			})
		})

		Convey("When an anonymous caller submits", func() {
			_, err := f.svc.SubmitBallot(context.Background(), model.Ballot{RaceID: race.ID})
			So(submission.KindOf(err), ShouldEqual, submission.KindAuth)
		})

		Convey("When the window has closed", func() {
			_, err := f.svc.SubmitBallot(as(alice), model.Ballot{RaceID: f.races[0].ID, QualiP1: "Lando Norris", RaceP1: "Max Verstappen"})
			So(errors.Is(err, submission.ErrWindowClosed), ShouldBeTrue)
		})
	})
}

func TestConfidence(t *testing.T) {
	Convey("Given four ballots for a race", t, func() {
		f := newFixture(t)
		ctx := context.Background()
		race := f.races[3]
		for i, p1 := range []string{"Lando Norris", "Lando Norris", "Max Verstappen", ""} {
			_, err := f.ballots.Insert(ctx, model.Ballot{UserID: string(rune('a' + i)), RaceID: race.ID, RaceP1: p1})
			require.NoError(t, err)
		}

		Convey("When alice samples Norris for race P1", func() {
			res, err := f.svc.Confidence(as(alice), service.ConfidenceQuery{RaceID: race.ID, Slot: model.SlotRaceP1, Driver: "Lando Norris"})

			Convey("Then half the field should match", func() {
				So(err, ShouldBeNil)
				So(res.NoData, ShouldBeFalse)
				So(res.Sample.Matching, ShouldEqual, 2)
				So(res.Sample.Total, ShouldEqual, 4)
				So(res.Sample.Percentage, ShouldEqual, 50)
				So(res.Seq, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When an older sequence number arrives after a newer one", func() {
			_, err := f.svc.Confidence(as(alice), service.ConfidenceQuery{RaceID: race.ID, Slot: model.SlotRaceP1, Driver: "Lando Norris", Seq: 5})
			So(err, ShouldBeNil)
			_, err = f.svc.Confidence(as(alice), service.ConfidenceQuery{RaceID: race.ID, Slot: model.SlotRaceP1, Driver: "Max Verstappen", Seq: 4})
			So(errors.Is(err, service.ErrStale), ShouldBeTrue)
		})

		Convey("When no driver is selected", func() {
			res, err := f.svc.Confidence(as(alice), service.ConfidenceQuery{RaceID: race.ID, Slot: model.SlotRaceP1})
			So(err, ShouldBeNil)
			So(res.NoData, ShouldBeTrue)
		})

		Convey("When the caller is anonymous", func() {
			_, err := f.svc.Confidence(ctx, service.ConfidenceQuery{RaceID: race.ID, Slot: model.SlotRaceP1, Driver: "Lando Norris"})
			So(errors.Is(err, service.ErrAuthRequired), ShouldBeTrue)
		})
	})
}

func TestAdminFlow(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(as(boss))
		defer cancel()
		require.NoError(t, f.svc.Start(ctx))
		defer func() { _ = f.svc.Stop(context.Background()) }()

		Convey("When an admin loads and grades ballots", func() {
			five := 5
			f.api.On("AdminPredictions", "tok-boss", int64(9)).Return([]model.Ballot{{ID: 1, ManualScore: &five}, {ID: 2}}, nil)
			f.api.On("Grade", "tok-boss", int64(1), 18).Return(nil)

			list, err := f.svc.AdminBallots(ctx, 9)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)
			So(list[0].Grade.Current, ShouldEqual, 5)

			st, err := f.svc.Grade(ctx, 1, grading.AddThirteen)
			So(err, ShouldBeNil)
			So(st.Current, ShouldEqual, 18)

			Convey("Then the worker should confirm the write", func() {
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					if st, _ := f.svc.GradeState(1); st.Status == grading.StatusSynced {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				st, _ := f.svc.GradeState(1)
				So(st.Status, ShouldEqual, grading.StatusSynced)
				So(st.LastConfirmed, ShouldEqual, 18)
			})
		})

		Convey("When an admin grades a ballot before listing its race", func() {
			_, err := f.svc.Grade(ctx, 42, grading.AddFive)

			Convey("Then nothing is sent upstream", func() {
				So(errors.Is(err, grading.ErrNotLoaded), ShouldBeTrue)
				f.api.AssertNotCalled(t, "Grade", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When a non-admin lists ballots", func() {
			_, err := f.svc.AdminBallots(as(alice), 9)
			So(errors.Is(err, grading.ErrForbidden), ShouldBeTrue)
		})

		Convey("When an admin settles a race", func() {
			f.api.On("Settle", "tok-boss", int64(3)).Return("Settled", nil)
			out, err := f.svc.Settle(ctx, model.RaceResult{
				RaceID: 3, QualiP1: "A", QualiP2: "B", QualiP3: "C", RaceP1: "D", RaceP2: "E", RaceP3: "F",
			})
			So(err, ShouldBeNil)
			So(out.OK, ShouldBeTrue)
			So(out.Message, ShouldEqual, "✅ Settled")
		})

		Convey("Then stats should describe the running service", func() {
			stats := f.svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["gradeWorkers"], ShouldEqual, 2)
		})
	})
}

func TestLeagues(t *testing.T) {
	Convey("Given a signed-in user", t, func() {
		f := newFixture(t)
		ctx := as(alice)

		Convey("When fetching the league overview", func() {
			f.api.On("MyLeagues", "tok-alice").Return([]model.League{{ID: 1, Name: "Office"}}, nil)
			f.api.On("PublicLeagues").Return([]model.League{{ID: 2, Name: "Open"}, {ID: 3, Name: "Global"}}, nil)
			ov, err := f.svc.LeagueOverview(ctx)

			So(err, ShouldBeNil)
			So(ov.Mine, ShouldHaveLength, 1)
			So(ov.Public, ShouldHaveLength, 2)
		})

		Convey("When one half of the overview fails", func() {
			f.api.On("MyLeagues", "tok-alice").Return(nil, errors.New("boom"))
			f.api.On("PublicLeagues").Return([]model.League{}, nil).Maybe()
			_, err := f.svc.LeagueOverview(ctx)
			So(err, ShouldNotBeNil)
		})

		Convey("When creating a league", func() {
			in := scoringapi.LeagueInput{Name: "Office", IsPublic: false}
			f.api.On("CreateLeague", "tok-alice", in).Return(model.League{ID: 4, Name: "Office"}, nil)
			l, err := f.svc.CreateLeague(ctx, in)
			So(err, ShouldBeNil)
			So(l.ID, ShouldEqual, 4)
		})

		Convey("When calling a league endpoint anonymously", func() {
			_, err := f.svc.LeagueMembers(context.Background(), 1)
			So(errors.Is(err, service.ErrAuthRequired), ShouldBeTrue)
			f.api.AssertNotCalled(t, "LeagueMembers", mock.Anything, mock.Anything)
		})

		Convey("When leaving a league", func() {
			f.api.On("LeaveLeague", "tok-alice", int64(1)).Return("Left league", nil)
			msg, err := f.svc.LeaveLeague(ctx, 1)
			So(err, ShouldBeNil)
			So(msg, ShouldEqual, "Left league")
		})
	})
}

func TestRivalries(t *testing.T) {
	Convey("Given alice challenges bob by username", t, func() {
		f := newFixture(t)
		r, err := f.svc.Challenge(as(alice), service.ChallengeRequest{Opponent: "bob", Driver: "Lando Norris", RaceCount: 1})
		So(err, ShouldBeNil)
		So(r.OpponentID, ShouldEqual, bob.UserID)
		So(f.notes.RecentFor(bob.UserID, 1)[0].Title, ShouldEqual, "New rivalry")

		Convey("When bob accepts and a race is recorded", func() {
			_, err := f.svc.AcceptRivalry(as(bob), r.ID, "Max Verstappen")
			So(err, ShouldBeNil)
			done, err := f.svc.RecordRivalryRace(as(boss), r.ID, f.races[0].ID, 10, 13)
			So(err, ShouldBeNil)
			So(done.Status, ShouldEqual, model.RivalryCompleted)

			mine, err := f.svc.Rivalries(as(alice))
			So(err, ShouldBeNil)
			So(mine, ShouldHaveLength, 1)
		})

		Convey("When bob declines", func() {
			got, err := f.svc.DeclineRivalry(as(bob), r.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.RivalryDeclined)
		})

		Convey("When the opponent does not exist", func() {
			_, err := f.svc.Challenge(as(alice), service.ChallengeRequest{Opponent: "nobody", Driver: "Lando Norris", RaceCount: 1})
			So(errors.Is(err, recordstore.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestNotifications(t *testing.T) {
	Convey("Given notifications for two users", t, func() {
		f := newFixture(t)
		mine := f.notes.Info(context.Background(), alice.UserID, "hello alice")
		theirs := f.notes.Info(context.Background(), bob.UserID, "hello bob")

		Convey("Then each user should only see their own", func() {
			list, err := f.svc.RecentNotifications(as(alice), 10)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].ID, ShouldEqual, mine.ID)
		})

		Convey("Then a user can dismiss only their own", func() {
			ok, err := f.svc.DismissNotification(as(alice), theirs.ID)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			ok, err = f.svc.DismissNotification(as(alice), mine.ID)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})
	})
}
