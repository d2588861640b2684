package service

import (
	"context"
	"fmt"

	"github.com/okian/gridpick/internal/domain/confidence"
	"github.com/okian/gridpick/internal/domain/grading"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/settlement"
	"github.com/okian/gridpick/internal/domain/submission"
)

// ConfidenceQuery asks how popular a driver is for one slot. Seq orders a
// caller's requests for the same slot; zero lets the server assign one.
type ConfidenceQuery struct {
	RaceID int64
	Slot   model.Slot
	Driver string
	Seq    uint64
}

// ConfidenceResult is a sample, or NoData when there is nothing to show.
type ConfidenceResult struct {
	Sample *confidence.Sample `json:"sample,omitempty"`
	NoData bool               `json:"no_data"`
	Seq    uint64             `json:"seq"`
}

// Confidence samples the community picks for q. A request overtaken by a
// newer one for the same caller and slot returns ErrStale.
func (s *Service) Confidence(ctx context.Context, q ConfidenceQuery) (ConfidenceResult, error) {
	sess, err := session(ctx)
	if err != nil {
		return ConfidenceResult{}, err
	}

	tracker := s.aggregator.Track(fmt.Sprintf("%s:%d:%s", sess.UserID, q.RaceID, q.Slot))
	token := q.Seq
	if token == 0 {
		token = tracker.Next()
	} else if !tracker.Claim(token) {
		return ConfidenceResult{}, ErrStale
	}

	sample, ok, err := tracker.Resolve(ctx, token, q.RaceID, q.Slot, q.Driver)
	if err != nil {
		return ConfidenceResult{}, ErrStale
	}
	if !ok {
		return ConfidenceResult{NoData: true, Seq: token}, nil
	}
	return ConfidenceResult{Sample: &sample, Seq: token}, nil
}

// SubmitBallot submits the caller's ballot and announces success to them.
func (s *Service) SubmitBallot(ctx context.Context, b model.Ballot) (submission.Result, error) {
	res, err := s.submitter.Submit(ctx, b)
	if err != nil {
		return res, err
	}
	s.notes.Success(ctx, res.Ballot.UserID, res.Message)
	return res, nil
}

// Settle submits a race result. Upstream refusals come back as an Outcome
// with OK false.
func (s *Service) Settle(ctx context.Context, result model.RaceResult) (settlement.Outcome, error) {
	out, err := s.settler.Settle(ctx, result)
	if err != nil {
		return out, err
	}
	if sess, serr := session(ctx); serr == nil && out.OK {
		s.notes.Success(ctx, sess.UserID, out.Message)
	}
	return out, nil
}

// AdminBallot is a ballot together with its grading state.
type AdminBallot struct {
	model.Ballot
	Grade grading.State `json:"grade"`
}

// AdminBallots lists every ballot for a race and seeds the grader with
// their confirmed scores.
func (s *Service) AdminBallots(ctx context.Context, raceID int64) ([]AdminBallot, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Admin {
		return nil, grading.ErrForbidden
	}
	ballots, err := s.api.AdminPredictions(ctx, sess.Token, raceID)
	if err != nil {
		return nil, err
	}
	s.grader.Load(ballots)

	out := make([]AdminBallot, len(ballots))
	for i, b := range ballots {
		out[i] = AdminBallot{Ballot: b}
		if st, ok := s.grader.State(b.ID); ok {
			out[i].Grade = st
		}
	}
	return out, nil
}

// Grade applies a preset adjustment to a ballot. The returned state is
// optimistic; persistence happens on the grade workers.
func (s *Service) Grade(ctx context.Context, ballotID int64, adj grading.Adjustment) (grading.State, error) {
	return s.grader.Apply(ctx, ballotID, adj)
}

// GradeState returns the grading state of one ballot.
func (s *Service) GradeState(ballotID int64) (grading.State, bool) {
	return s.grader.State(ballotID)
}
