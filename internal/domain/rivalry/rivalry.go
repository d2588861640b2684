// Package rivalry runs head-to-head challenges between two users: one
// challenges, the other accepts or declines, and points accumulate race by
// race until the agreed number of races is in.
package rivalry

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
)

// Limits on the length of a rivalry.
const (
	MinRaces = 1
	MaxRaces = 24
)

// Challenge describes a new rivalry from the challenger's side.
type Challenge struct {
	OpponentID string `json:"opponent_id"`
	Driver     string `json:"driver"`
	RaceCount  int    `json:"race_count"`
}

// Open builds a pending rivalry from c.
func Open(challengerID string, c Challenge, now time.Time) (model.Rivalry, error) {
	c.OpponentID = strings.TrimSpace(c.OpponentID)
	c.Driver = strings.TrimSpace(c.Driver)
	switch {
	case challengerID == "":
		return model.Rivalry{}, fmt.Errorf("%w: challenger required", ErrInvalidChallenge)
	case c.OpponentID == "":
		return model.Rivalry{}, fmt.Errorf("%w: opponent required", ErrInvalidChallenge)
	case c.OpponentID == challengerID:
		return model.Rivalry{}, fmt.Errorf("%w: cannot challenge yourself", ErrInvalidChallenge)
	case c.RaceCount < MinRaces || c.RaceCount > MaxRaces:
		return model.Rivalry{}, fmt.Errorf("%w: race count must be between %d and %d", ErrInvalidChallenge, MinRaces, MaxRaces)
	case !registry.IsSelectable(c.Driver):
		return model.Rivalry{}, fmt.Errorf("%w: unknown driver %q", ErrInvalidChallenge, c.Driver)
	}
	return model.Rivalry{
		ChallengerID:     challengerID,
		OpponentID:       c.OpponentID,
		ChallengerDriver: c.Driver,
		RaceCount:        c.RaceCount,
		RacesRecorded:    []int64{},
		Status:           model.RivalryPending,
		CreatedAt:        now,
	}, nil
}

// Accept activates a pending rivalry. Only the opponent may accept, and
// they name their own champion driver.
func Accept(r *model.Rivalry, userID, driver string, now time.Time) error {
	if userID == "" || r.OpponentID != userID {
		return ErrNotParticipant
	}
	if r.Status != model.RivalryPending {
		return fmt.Errorf("%w: cannot accept a %s rivalry", ErrInvalidTransition, r.Status)
	}
	driver = strings.TrimSpace(driver)
	if !registry.IsSelectable(driver) {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidChallenge, driver)
	}
	r.OpponentDriver = driver
	r.Status = model.RivalryActive
	r.RespondedAt = &now
	return nil
}

// Decline closes a pending rivalry. Only the opponent may decline.
func Decline(r *model.Rivalry, userID string, now time.Time) error {
	if userID == "" || r.OpponentID != userID {
		return ErrNotParticipant
	}
	if r.Status != model.RivalryPending {
		return fmt.Errorf("%w: cannot decline a %s rivalry", ErrInvalidTransition, r.Status)
	}
	r.Status = model.RivalryDeclined
	r.RespondedAt = &now
	return nil
}

// RecordRace adds one race's points. A race already counted is ignored and
// reports false. The rivalry completes once RaceCount races are in.
func RecordRace(r *model.Rivalry, raceID int64, challengerPts, opponentPts int, now time.Time) (bool, error) {
	if r.Status != model.RivalryActive {
		return false, fmt.Errorf("%w: cannot record a race on a %s rivalry", ErrInvalidTransition, r.Status)
	}
	if raceID <= 0 {
		return false, fmt.Errorf("%w: race id", ErrInvalidChallenge)
	}
	if r.HasRace(raceID) {
		return false, nil
	}
	r.RacesRecorded = append(r.RacesRecorded, raceID)
	r.ChallengerPoints += challengerPts
	r.OpponentPoints += opponentPts
	if len(r.RacesRecorded) >= r.RaceCount {
		r.Status = model.RivalryCompleted
		r.CompletedAt = &now
	}
	return true, nil
}

// Result is the outcome of a rivalry.
type Result struct {
	Decided  bool   `json:"decided"`
	Draw     bool   `json:"draw"`
	WinnerID string `json:"winner_id,omitempty"`
}

// Winner reports the leader of a completed rivalry, or a draw when the
// points are level. Rivalries still in progress are undecided.
func Winner(r model.Rivalry) Result {
	if r.Status != model.RivalryCompleted {
		return Result{}
	}
	switch {
	case r.ChallengerPoints > r.OpponentPoints:
		return Result{Decided: true, WinnerID: r.ChallengerID}
	case r.OpponentPoints > r.ChallengerPoints:
		return Result{Decided: true, WinnerID: r.OpponentID}
	}
	return Result{Decided: true, Draw: true}
}
