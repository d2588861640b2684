// Package types contains common types used across the application
package types

import "github.com/okian/gridpick/internal/domain/model"

// Entry represents a ranked standings row.
type Entry struct {
	Rank       int              `json:"rank"`
	Username   string           `json:"username"`
	TotalScore int              `json:"total_score"`
	LastRaces  []model.RaceForm `json:"last_races,omitempty"`
}
