package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/internal/domain/rivalry"
)

// ChallengeRequest opens a rivalry against another user by username.
type ChallengeRequest struct {
	Opponent  string `json:"opponent"`
	Driver    string `json:"driver"`
	RaceCount int    `json:"race_count"`
}

// Rivalries lists the caller's rivalries, newest first.
func (s *Service) Rivalries(ctx context.Context) ([]model.Rivalry, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return s.rivals.ForUser(ctx, sess.UserID)
}

// Rivalry returns one of the caller's rivalries.
func (s *Service) Rivalry(ctx context.Context, id string) (model.Rivalry, error) {
	sess, err := session(ctx)
	if err != nil {
		return model.Rivalry{}, err
	}
	return s.rivals.Get(ctx, id, sess.UserID)
}

// Challenge opens a rivalry from the caller. The opponent is looked up by
// username when a profile directory is configured, otherwise it is taken
// as a user id.
func (s *Service) Challenge(ctx context.Context, req ChallengeRequest) (model.Rivalry, error) {
	sess, err := session(ctx)
	if err != nil {
		return model.Rivalry{}, err
	}
	opponentID := strings.TrimSpace(req.Opponent)
	if s.profiles != nil && opponentID != "" {
		p, err := s.profiles.ByUsername(ctx, opponentID)
		if err != nil {
			return model.Rivalry{}, err
		}
		opponentID = p.ID
	}
	r, err := s.rivals.Challenge(ctx, sess.UserID, rivalry.Challenge{
		OpponentID: opponentID,
		Driver:     req.Driver,
		RaceCount:  req.RaceCount,
	})
	if err != nil {
		return model.Rivalry{}, err
	}
	s.notes.Publish(ctx, notify.Notification{
		Level:   notify.LevelInfo,
		Title:   "New rivalry",
		Message: sess.Username + " challenged you over " + plural(r.RaceCount, "race"),
		UserID:  r.OpponentID,
	})
	return r, nil
}

// AcceptRivalry accepts a pending challenge, backing driver.
func (s *Service) AcceptRivalry(ctx context.Context, id, driver string) (model.Rivalry, error) {
	sess, err := session(ctx)
	if err != nil {
		return model.Rivalry{}, err
	}
	r, err := s.rivals.Accept(ctx, id, sess.UserID, driver)
	if err != nil {
		return model.Rivalry{}, err
	}
	s.notes.Info(ctx, r.ChallengerID, sess.Username+" accepted your rivalry")
	return r, nil
}

// DeclineRivalry declines a pending challenge.
func (s *Service) DeclineRivalry(ctx context.Context, id string) (model.Rivalry, error) {
	sess, err := session(ctx)
	if err != nil {
		return model.Rivalry{}, err
	}
	r, err := s.rivals.Decline(ctx, id, sess.UserID)
	if err != nil {
		return model.Rivalry{}, err
	}
	s.notes.Info(ctx, r.ChallengerID, sess.Username+" declined your rivalry")
	return r, nil
}

// RecordRivalryRace adds one race's points to a rivalry.
func (s *Service) RecordRivalryRace(ctx context.Context, id string, raceID int64, challengerPts, opponentPts int) (model.Rivalry, error) {
	return s.rivals.RecordRace(ctx, id, raceID, challengerPts, opponentPts)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
