package service

import (
	"context"
	"sort"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/types"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

// SortStandings orders rows by total score descending, then username
// ascending, so that the same data always yields the same order.
func SortStandings(rows []model.Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].Username < rows[j].Username
	})
}

// MaxStandingsLimit is the largest page Standings accepts.
func (s *Service) MaxStandingsLimit() int { return s.maxLimit }

// Standings returns the top limit rows of the global standings.
func (s *Service) Standings(ctx context.Context, limit int) ([]types.Entry, error) {
	if limit < 1 || limit > s.maxLimit {
		return nil, ErrInvalidLimit
	}
	if err := s.ensureStandings(ctx); err != nil {
		return nil, err
	}
	return s.standings.TopN(ctx, limit)
}

// StandingFor returns one user's row and rank.
func (s *Service) StandingFor(ctx context.Context, username string) (types.Entry, error) {
	if err := s.ensureStandings(ctx); err != nil {
		return types.Entry{}, err
	}
	return s.standings.Rank(ctx, username)
}

// ensureStandings refreshes the ranked store when it is older than the TTL.
// Concurrent callers share one upstream fetch. A failed refresh keeps
// serving the previous table if there is one.
func (s *Service) ensureStandings(ctx context.Context) error {
	s.mu.RLock()
	fresh := !s.standingsAt.IsZero() && s.now().Sub(s.standingsAt) < s.standingsTTL
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	_, err, _ := s.refresh.Do("standings", func() (any, error) {
		rows, err := s.api.Standings(ctx)
		if err != nil {
			metrics.RecordStandingsRefresh("error")
			return nil, err
		}
		SortStandings(rows)
		if err := s.standings.Replace(ctx, rows); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.standingsAt = s.now()
		s.mu.Unlock()
		metrics.RecordStandingsRefresh("ok")
		return nil, nil
	})
	if err == nil {
		return nil
	}
	if s.standings.Count(ctx) > 0 {
		s.logger.Warn(ctx, "standings refresh failed, serving previous table", logger.Error(err))
		return nil
	}
	return err
}
