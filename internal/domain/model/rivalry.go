package model

import "time"

// RivalryStatus is the lifecycle state of a rivalry.
type RivalryStatus string

// Rivalry states.
const (
	RivalryPending   RivalryStatus = "pending"
	RivalryActive    RivalryStatus = "active"
	RivalryDeclined  RivalryStatus = "declined"
	RivalryCompleted RivalryStatus = "completed"
)

// Rivalry is a head-to-head challenge between two users over a fixed number
// of races. Each side backs a champion driver.
type Rivalry struct {
	ID               string        `json:"id"`
	ChallengerID     string        `json:"challenger_id"`
	OpponentID       string        `json:"opponent_id"`
	ChallengerDriver string        `json:"challenger_driver"`
	OpponentDriver   string        `json:"opponent_driver"`
	RaceCount        int           `json:"race_count"`
	ChallengerPoints int           `json:"challenger_points"`
	OpponentPoints   int           `json:"opponent_points"`
	RacesRecorded    []int64       `json:"races_recorded"`
	Status           RivalryStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	RespondedAt      *time.Time    `json:"responded_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// Involves reports whether userID is either side of the rivalry.
func (r *Rivalry) Involves(userID string) bool {
	return userID != "" && (r.ChallengerID == userID || r.OpponentID == userID)
}

// HasRace reports whether raceID has already been counted.
func (r *Rivalry) HasRace(raceID int64) bool {
	for _, id := range r.RacesRecorded {
		if id == raceID {
			return true
		}
	}
	return false
}
