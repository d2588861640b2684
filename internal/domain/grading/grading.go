// Package grading applies manual score adjustments to ballots. Changes show
// up locally at once and are persisted in the background; a failed write
// rolls the ballot back to the last value the server accepted.
package grading

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

// Adjustment is one of the grading presets.
type Adjustment string

// Grading presets.
const (
	AddFive     Adjustment = "+5"
	AddTen      Adjustment = "+10"
	AddThirteen Adjustment = "+13"
	Reset       Adjustment = "reset"
)

// Adjustments lists the presets in display order.
func Adjustments() []Adjustment {
	return []Adjustment{AddFive, AddTen, AddThirteen, Reset}
}

// ParseAdjustment accepts a preset by its label. "5", "+5" and "0" style
// inputs are all understood.
func ParseAdjustment(s string) (Adjustment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+5", "5":
		return AddFive, nil
	case "+10", "10":
		return AddTen, nil
	case "+13", "13":
		return AddThirteen, nil
	case "reset", "0":
		return Reset, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAdjustment, s)
}

// apply returns the score after adjusting current.
func (a Adjustment) apply(current int) (int, bool) {
	switch a {
	case AddFive:
		return current + 5, true
	case AddTen:
		return current + 10, true
	case AddThirteen:
		return current + 13, true
	case Reset:
		return 0, true
	}
	return current, false
}

// Status is the persistence state of a ballot's score.
type Status string

// Sync states.
const (
	StatusSynced     Status = "synced"
	StatusPending    Status = "pending"
	StatusSyncFailed Status = "sync_failed"
)

// State is what the grading view shows for one ballot.
type State struct {
	BallotID      int64  `json:"ballot_id"`
	Current       int    `json:"current"`
	LastConfirmed int    `json:"last_confirmed"`
	Pending       bool   `json:"pending"`
	Status        Status `json:"status"`
}

// Enqueuer accepts persistence jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, j model.GradeJob) bool
}

// Publisher delivers user notifications.
type Publisher interface {
	Publish(ctx context.Context, n notify.Notification) notify.Notification
}

// SessionFunc resolves the caller's session from ctx.
type SessionFunc func(ctx context.Context) (model.Session, bool)

type entry struct {
	State
	seq          uint64
	confirmedSeq uint64
}

// Grader tracks optimistic grading state per ballot.
type Grader struct {
	mu       sync.Mutex
	entries  map[int64]*entry
	queue    Enqueuer
	sessions SessionFunc
	notes    Publisher
	now      func() time.Time
	log      logger.Logger
}

// New creates a grader that sends persistence jobs to q.
func New(q Enqueuer, sessions SessionFunc, opts ...Option) *Grader {
	g := &Grader{
		entries:  make(map[int64]*entry),
		queue:    q,
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("grading")
	}
	return g
}

// Load seeds confirmed scores, usually from the admin ballot listing.
// Ballots with a write in flight keep their optimistic value.
func (g *Grader) Load(ballots []model.Ballot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range ballots {
		b := &ballots[i]
		if b.ID <= 0 {
			continue
		}
		e, ok := g.entries[b.ID]
		if !ok {
			e = &entry{State: State{BallotID: b.ID}}
			g.entries[b.ID] = e
		}
		if e.Pending {
			continue
		}
		e.Current = b.Score()
		e.LastConfirmed = e.Current
		e.Status = StatusSynced
	}
}

// Apply adjusts a ballot's score and returns the new local state straight
// away. The write happens later; watch State for the outcome. The ballot
// must have been loaded first, since adjustments are relative to the score
// the server holds.
func (g *Grader) Apply(ctx context.Context, ballotID int64, adj Adjustment) (State, error) {
	var session model.Session
	var ok bool
	if g.sessions != nil {
		session, ok = g.sessions(ctx)
	}
	if !ok || !session.Authenticated() || !session.Admin {
		return State{}, ErrForbidden
	}
	if ballotID <= 0 {
		return State{}, ErrInvalidBallot
	}

	g.mu.Lock()
	e, exists := g.entries[ballotID]
	if !exists {
		g.mu.Unlock()
		return State{}, fmt.Errorf("%w: ballot %d", ErrNotLoaded, ballotID)
	}
	next, valid := adj.apply(e.Current)
	if !valid {
		g.mu.Unlock()
		return State{}, fmt.Errorf("%w: %q", ErrUnknownAdjustment, string(adj))
	}
	e.seq++
	e.Current = next
	e.Pending = true
	e.Status = StatusPending
	job := model.GradeJob{
		ID:         uuid.NewString(),
		BallotID:   ballotID,
		Score:      next,
		Seq:        e.seq,
		Token:      session.Token,
		UserID:     session.UserID,
		EnqueuedAt: g.now(),
	}
	optimistic := e.State
	g.mu.Unlock()

	if !g.queue.Enqueue(ctx, job) {
		g.Fail(ctx, job, ErrQueueFull)
		st, _ := g.State(ballotID)
		return st, ErrQueueFull
	}
	metrics.RecordGradeJob("queued")
	g.log.Debug(ctx, "grade queued",
		logger.Int64("ballot_id", ballotID),
		logger.Int("score", next),
		logger.String("adjustment", string(adj)),
	)
	return optimistic, nil
}

// Confirm records that job was persisted. A superseded job only moves the
// confirmed value while a newer job is pending. If the newer job already
// failed, the ballot shows what the server now holds.
func (g *Grader) Confirm(ctx context.Context, job model.GradeJob) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[job.BallotID]
	if !ok {
		return
	}
	if job.Seq > e.confirmedSeq {
		e.confirmedSeq = job.Seq
		e.LastConfirmed = job.Score
	}
	if job.Seq != e.seq {
		metrics.RecordGradeJob("superseded")
		if !e.Pending {
			e.Current = e.LastConfirmed
		}
		return
	}
	e.Pending = false
	e.Status = StatusSynced
	metrics.RecordGradeJob("confirmed")
}

// Fail rolls a ballot back to its last confirmed score and tells the grader.
// Failures of superseded jobs are ignored; the newer job decides.
func (g *Grader) Fail(ctx context.Context, job model.GradeJob, err error) {
	g.mu.Lock()
	e, ok := g.entries[job.BallotID]
	if !ok || job.Seq != e.seq {
		g.mu.Unlock()
		metrics.RecordGradeJob("superseded")
		return
	}
	e.Current = e.LastConfirmed
	e.Pending = false
	e.Status = StatusSyncFailed
	reverted := e.Current
	g.mu.Unlock()

	metrics.RecordGradeJob("reverted")
	g.log.Warn(ctx, "grade sync failed",
		logger.Int64("ballot_id", job.BallotID),
		logger.Int("attempted", job.Score),
		logger.Int("reverted_to", reverted),
		logger.Error(err),
	)
	if g.notes != nil {
		g.notes.Publish(ctx, notify.Notification{
			Level:   notify.LevelError,
			Title:   "Sync failed",
			Message: fmt.Sprintf("Grade for ballot %d was not saved; reverted to %d", job.BallotID, reverted),
			UserID:  job.UserID,
		})
	}
}

// State returns the current state of one ballot.
func (g *Grader) State(ballotID int64) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[ballotID]
	if !ok {
		return State{}, false
	}
	return e.State, true
}

// States returns every tracked ballot ordered by id.
func (g *Grader) States() []State {
	g.mu.Lock()
	out := make([]State, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.State)
	}
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].BallotID < out[j].BallotID })
	return out
}
