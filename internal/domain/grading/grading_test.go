package grading_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gridpick/internal/adapters/mq/queue"
	"github.com/okian/gridpick/internal/adapters/mq/worker"
	"github.com/okian/gridpick/internal/domain/grading"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
)

func init() {
	_ = logger.Init()
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []model.GradeJob
	full bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, j model.GradeJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, j)
	return true
}

func (q *fakeQueue) last() model.GradeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[len(q.jobs)-1]
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, n notify.Notification) notify.Notification {
	m.Called(n.Level, n.UserID)
	return n
}

func admin(ctx context.Context) (model.Session, bool) {
	return model.Session{UserID: "admin-1", Username: "boss", Admin: true, Token: "tok"}, true
}

func member(ctx context.Context) (model.Session, bool) {
	return model.Session{UserID: "u-1", Username: "fan", Token: "tok"}, true
}

func TestParseAdjustment(t *testing.T) {
	Convey("Preset labels should parse", t, func() {
		for in, want := range map[string]grading.Adjustment{
			"+5": grading.AddFive, "10": grading.AddTen, " +13 ": grading.AddThirteen, "RESET": grading.Reset, "0": grading.Reset,
		} {
			got, err := grading.ParseAdjustment(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := grading.ParseAdjustment("+7")
		So(errors.Is(err, grading.ErrUnknownAdjustment), ShouldBeTrue)
		So(grading.Adjustments(), ShouldHaveLength, 4)
	})
}

func TestGrader(t *testing.T) {
	Convey("Given a grader with a confirmed ballot", t, func() {
		ctx := context.Background()
		q := &fakeQueue{}
		pub := &mockPublisher{}
		g := grading.New(q, admin, grading.WithNotifier(pub))
		ten := 10
		g.Load([]model.Ballot{{ID: 1}, {ID: 2, ManualScore: &ten}, {ID: 0}})

		st, ok := g.State(2)
		So(ok, ShouldBeTrue)
		So(st.Current, ShouldEqual, 10)
		So(st.Status, ShouldEqual, grading.StatusSynced)
		So(g.States(), ShouldHaveLength, 2)

		Convey("When +13 is applied to a zero score", func() {
			st, err := g.Apply(ctx, 1, grading.AddThirteen)

			Convey("Then the new score should show before the write completes", func() {
				So(err, ShouldBeNil)
				So(st.Current, ShouldEqual, 13)
				So(st.LastConfirmed, ShouldEqual, 0)
				So(st.Pending, ShouldBeTrue)
				So(st.Status, ShouldEqual, grading.StatusPending)

				job := q.last()
				So(job.BallotID, ShouldEqual, 1)
				So(job.Score, ShouldEqual, 13)
				So(job.Token, ShouldEqual, "tok")
				So(job.ID, ShouldNotBeEmpty)
			})

			Convey("And a confirmation should mark it synced", func() {
				g.Confirm(ctx, q.last())
				st, _ := g.State(1)
				So(st.Current, ShouldEqual, 13)
				So(st.LastConfirmed, ShouldEqual, 13)
				So(st.Pending, ShouldBeFalse)
				So(st.Status, ShouldEqual, grading.StatusSynced)
			})

			Convey("And a failure should revert and notify the grader", func() {
				pub.On("Publish", notify.LevelError, "admin-1").Once()
				g.Fail(ctx, q.last(), errors.New("503"))

				st, _ := g.State(1)
				So(st.Current, ShouldEqual, 0)
				So(st.Status, ShouldEqual, grading.StatusSyncFailed)
				So(st.Pending, ShouldBeFalse)
				pub.AssertExpectations(t)
			})
		})

		Convey("When two adjustments are made before the first confirms", func() {
			_, _ = g.Apply(ctx, 2, grading.AddFive)
			first := q.last()
			st, _ := g.Apply(ctx, 2, grading.AddTen)
			second := q.last()
			So(st.Current, ShouldEqual, 25)

			Convey("Then the older confirmation should not settle the ballot", func() {
				g.Confirm(ctx, first)
				st, _ := g.State(2)
				So(st.LastConfirmed, ShouldEqual, 15)
				So(st.Current, ShouldEqual, 25)
				So(st.Status, ShouldEqual, grading.StatusPending)

				g.Confirm(ctx, second)
				st, _ = g.State(2)
				So(st.LastConfirmed, ShouldEqual, 25)
				So(st.Status, ShouldEqual, grading.StatusSynced)
			})

			Convey("And a late confirmation after the newer job failed should show the server's score", func() {
				pub.On("Publish", notify.LevelError, "admin-1").Once()
				g.Fail(ctx, second, errors.New("503"))
				st, _ := g.State(2)
				So(st.Current, ShouldEqual, 10)

				g.Confirm(ctx, first)
				st, _ = g.State(2)
				So(st.LastConfirmed, ShouldEqual, 15)
				So(st.Current, ShouldEqual, 15)
				So(st.Pending, ShouldBeFalse)
			})

			Convey("And a failure of the superseded job should be ignored", func() {
				g.Fail(ctx, first, errors.New("late"))
				st, _ := g.State(2)
				So(st.Current, ShouldEqual, 25)
				So(st.Status, ShouldEqual, grading.StatusPending)
				pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
			})
		})

		Convey("When reset is applied", func() {
			st, err := g.Apply(ctx, 2, grading.Reset)
			So(err, ShouldBeNil)
			So(st.Current, ShouldEqual, 0)
		})

		Convey("When the queue is full", func() {
			q.full = true
			pub.On("Publish", notify.LevelError, "admin-1").Once()
			st, err := g.Apply(ctx, 2, grading.AddFive)

			Convey("Then the change should be reverted immediately", func() {
				So(errors.Is(err, grading.ErrQueueFull), ShouldBeTrue)
				So(st.Current, ShouldEqual, 10)
				So(st.Status, ShouldEqual, grading.StatusSyncFailed)
			})
		})

		Convey("When a reload arrives while a write is pending", func() {
			_, _ = g.Apply(ctx, 1, grading.AddFive)
			g.Load([]model.Ballot{{ID: 1}})

			Convey("Then the optimistic value should be kept", func() {
				st, _ := g.State(1)
				So(st.Current, ShouldEqual, 5)
				So(st.Pending, ShouldBeTrue)
			})
		})

		Convey("When a ballot that was never loaded is adjusted", func() {
			before := len(q.jobs)
			_, err := g.Apply(ctx, 9, grading.AddFive)

			Convey("Then it is refused instead of overwriting the server's score", func() {
				So(errors.Is(err, grading.ErrNotLoaded), ShouldBeTrue)
				So(q.jobs, ShouldHaveLength, before)
				_, tracked := g.State(9)
				So(tracked, ShouldBeFalse)
			})
		})

		Convey("When the caller is not an admin", func() {
			_, err := grading.New(q, member).Apply(ctx, 1, grading.AddFive)
			So(errors.Is(err, grading.ErrForbidden), ShouldBeTrue)
		})

		Convey("When the request is malformed", func() {
			_, err := g.Apply(ctx, 0, grading.AddFive)
			So(errors.Is(err, grading.ErrInvalidBallot), ShouldBeTrue)
			_, err = g.Apply(ctx, 1, grading.Adjustment("+99"))
			So(errors.Is(err, grading.ErrUnknownAdjustment), ShouldBeTrue)
		})
	})
}

type flakyAPI struct {
	mu    sync.Mutex
	fail  bool
	saved map[int64]int
}

func (f *flakyAPI) Grade(ctx context.Context, token string, ballotID int64, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("upstream unavailable")
	}
	f.saved[ballotID] = score
	return nil
}

func TestGraderWithWorkers(t *testing.T) {
	Convey("Given a grader wired to a worker pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		api := &flakyAPI{saved: map[int64]int{}}
		notes := notify.New()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		g := grading.New(q, admin, grading.WithNotifier(notes))
		pool := worker.NewPool(2, q, api, g)
		pool.Start(ctx)
		defer func() { _ = pool.Shutdown(context.Background()) }()
		g.Load([]model.Ballot{{ID: 3}, {ID: 4}})

		waitFor := func(id int64, want grading.Status) grading.State {
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if st, ok := g.State(id); ok && st.Status == want {
					return st
				}
				time.Sleep(5 * time.Millisecond)
			}
			st, _ := g.State(id)
			return st
		}

		Convey("When the upstream accepts the grade", func() {
			_, err := g.Apply(ctx, 3, grading.AddThirteen)
			So(err, ShouldBeNil)
			st := waitFor(3, grading.StatusSynced)

			So(st.Current, ShouldEqual, 13)
			So(st.LastConfirmed, ShouldEqual, 13)
		})

		Convey("When the upstream fails", func() {
			api.mu.Lock()
			api.fail = true
			api.mu.Unlock()
			_, err := g.Apply(ctx, 4, grading.AddTen)
			So(err, ShouldBeNil)
			st := waitFor(4, grading.StatusSyncFailed)

			So(st.Current, ShouldEqual, 0)
			recent := notes.RecentFor("admin-1", 5)
			So(recent, ShouldHaveLength, 1)
			So(recent[0].Level, ShouldEqual, notify.LevelError)
		})
	})
}
