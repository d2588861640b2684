package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gridpick/internal/adapters/mq/queue"
	"github.com/okian/gridpick/internal/adapters/mq/worker"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockPersister struct {
	mu     sync.Mutex
	scores map[int64]int
	fail   map[int64]error
	tokens []string
}

func newMockPersister() *mockPersister {
	return &mockPersister{scores: map[int64]int{}, fail: map[int64]error{}}
}

func (p *mockPersister) Grade(ctx context.Context, token string, ballotID int64, score int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
	if err, ok := p.fail[ballotID]; ok {
		return err
	}
	p.scores[ballotID] = score
	return nil
}

func (p *mockPersister) setFail(id int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[id] = err
}

func (p *mockPersister) score(id int64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scores[id]
	return s, ok
}

type outcome struct {
	job model.GradeJob
	err error
}

type recordingResolver struct {
	out chan outcome
}

func newResolver() *recordingResolver {
	return &recordingResolver{out: make(chan outcome, 10)}
}

func (r *recordingResolver) Confirm(ctx context.Context, job worker.Job) {
	r.out <- outcome{job: job}
}

func (r *recordingResolver) Fail(ctx context.Context, job worker.Job, err error) {
	r.out <- outcome{job: job, err: err}
}

func (r *recordingResolver) next() outcome {
	select {
	case o := <-r.out:
		return o
	case <-time.After(2 * time.Second):
		return outcome{err: errors.New("timed out waiting for outcome")}
	}
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker reading grade jobs", t, func() {
		q := newMockQueue()
		p := newMockPersister()
		r := newResolver()
		w := worker.NewInMemoryWorker(q, p, r, worker.WithName("test-worker"), worker.WithJobTimeout(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		Convey("When the upstream accepts the grade", func() {
			q.jobs <- model.GradeJob{ID: "j1", BallotID: 9, Score: 13, Seq: 1, Token: "tok"}
			o := r.next()

			Convey("Then the job should be confirmed", func() {
				So(o.err, ShouldBeNil)
				So(o.job.ID, ShouldEqual, "j1")
				s, ok := p.score(9)
				So(ok, ShouldBeTrue)
				So(s, ShouldEqual, 13)
			})
		})

		Convey("When the upstream rejects the grade", func() {
			boom := errors.New("boom")
			p.setFail(10, boom)
			q.jobs <- model.GradeJob{ID: "j2", BallotID: 10, Score: 5, Seq: 1}
			o := r.next()

			Convey("Then the job should fail with the upstream error", func() {
				So(o.job.ID, ShouldEqual, "j2")
				So(errors.Is(o.err, boom), ShouldBeTrue)
			})
		})

		Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			Convey("Then it should stop cleanly and tolerate a second call", func() {
				So(err, ShouldBeNil)
				So(w.Shutdown(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		p := newMockPersister()
		r := &recordingResolver{out: make(chan outcome, 100)}
		pool := worker.NewPool(3, q, p, r)
		So(pool.Size(), ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		Convey("When jobs are enqueued and the pool shuts down", func() {
			for i := int64(1); i <= 20; i++ {
				So(q.Enqueue(ctx, model.GradeJob{BallotID: i, Score: int(i), Seq: 1}), ShouldBeTrue)
			}
			seen := map[int64]bool{}
			for i := 0; i < 20; i++ {
				o := r.next()
				So(o.err, ShouldBeNil)
				seen[o.job.BallotID] = true
			}
			err := pool.Shutdown(context.Background())

			Convey("Then every job should be persisted once", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldHaveLength, 20)
				s, _ := p.score(20)
				So(s, ShouldEqual, 20)
				So(q.IsClosed(), ShouldBeTrue)
			})
		})

		Convey("When a pool is created with no workers requested", func() {
			So(worker.NewPool(0, queue.NewInMemoryQueue(), p, r).Size(), ShouldBeGreaterThan, 0)
		})
	})
}
