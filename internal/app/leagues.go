package service

import (
	"context"

	"github.com/okian/gridpick/internal/adapters/scoringapi"
	"github.com/okian/gridpick/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// LeagueOverview is the caller's leagues alongside the public directory.
type LeagueOverview struct {
	Mine   []model.League `json:"mine"`
	Public []model.League `json:"public"`
}

// PublicLeagues lists public leagues. No session is needed.
func (s *Service) PublicLeagues(ctx context.Context) ([]model.League, error) {
	return s.api.PublicLeagues(ctx)
}

// LeagueOverview fetches the caller's leagues and the public list together.
func (s *Service) LeagueOverview(ctx context.Context) (LeagueOverview, error) {
	sess, err := session(ctx)
	if err != nil {
		return LeagueOverview{}, err
	}

	var out LeagueOverview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mine, err := s.api.MyLeagues(gctx, sess.Token)
		out.Mine = mine
		return err
	})
	g.Go(func() error {
		public, err := s.api.PublicLeagues(gctx)
		out.Public = public
		return err
	})
	if err := g.Wait(); err != nil {
		return LeagueOverview{}, err
	}
	return out, nil
}

// MyLeagues lists the leagues the caller belongs to.
func (s *Service) MyLeagues(ctx context.Context) ([]model.League, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.MyLeagues(ctx, sess.Token)
}

// CreateLeague creates a league owned by the caller.
func (s *Service) CreateLeague(ctx context.Context, in scoringapi.LeagueInput) (model.League, error) {
	sess, err := session(ctx)
	if err != nil {
		return model.League{}, err
	}
	l, err := s.api.CreateLeague(ctx, sess.Token, in)
	if err != nil {
		return model.League{}, err
	}
	s.notes.Success(ctx, sess.UserID, "League "+l.Name+" created")
	return l, nil
}

// JoinLeague joins a league by invite code.
func (s *Service) JoinLeague(ctx context.Context, code string) (model.League, error) {
	sess, err := session(ctx)
	if err != nil {
		return model.League{}, err
	}
	return s.api.JoinLeague(ctx, sess.Token, code)
}

// InviteToLeague invites username to a league.
func (s *Service) InviteToLeague(ctx context.Context, leagueID int64, username string) (string, error) {
	return withToken(ctx, func(token string) (string, error) {
		return s.api.InviteToLeague(ctx, token, leagueID, username)
	})
}

// LeaveLeague removes the caller from a league.
func (s *Service) LeaveLeague(ctx context.Context, leagueID int64) (string, error) {
	return withToken(ctx, func(token string) (string, error) {
		return s.api.LeaveLeague(ctx, token, leagueID)
	})
}

// DeleteLeague deletes a league the caller owns.
func (s *Service) DeleteLeague(ctx context.Context, leagueID int64) (string, error) {
	return withToken(ctx, func(token string) (string, error) {
		return s.api.DeleteLeague(ctx, token, leagueID)
	})
}

// SyncLeaguePoints asks the scoring API to recompute league points.
func (s *Service) SyncLeaguePoints(ctx context.Context, leagueID int64) (string, error) {
	return withToken(ctx, func(token string) (string, error) {
		return s.api.SyncLeaguePoints(ctx, token, leagueID)
	})
}

// LeagueStandings returns a league's table.
func (s *Service) LeagueStandings(ctx context.Context, leagueID int64) ([]model.Membership, error) {
	return withToken(ctx, func(token string) ([]model.Membership, error) {
		return s.api.LeagueStandings(ctx, token, leagueID)
	})
}

// LeagueMembers lists a league's members with their roles.
func (s *Service) LeagueMembers(ctx context.Context, leagueID int64) ([]model.Membership, error) {
	return withToken(ctx, func(token string) ([]model.Membership, error) {
		return s.api.LeagueMembers(ctx, token, leagueID)
	})
}

// LeagueGradingQueue lists ballots awaiting a league grader.
func (s *Service) LeagueGradingQueue(ctx context.Context, leagueID int64) ([]model.Ballot, error) {
	return withToken(ctx, func(token string) ([]model.Ballot, error) {
		return s.api.LeagueGradingQueue(ctx, token, leagueID)
	})
}

// LeagueActivity returns a league's activity feed.
func (s *Service) LeagueActivity(ctx context.Context, leagueID int64) ([]model.LeagueActivity, error) {
	return withToken(ctx, func(token string) ([]model.LeagueActivity, error) {
		return s.api.LeagueActivity(ctx, token, leagueID)
	})
}

func withToken[T any](ctx context.Context, fn func(token string) (T, error)) (T, error) {
	sess, err := session(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(sess.Token)
}
