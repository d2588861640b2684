package model

import "time"

// Driver is static reference data for the season.
type Driver struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Number int    `json:"number"`
	Team   string `json:"team"`
}

// Team is a constructor with its livery colour.
type Team struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// RaceForm is one race's contribution in a user's recent form.
type RaceForm struct {
	Code   string `json:"code"`
	Points int    `json:"points"`
}

// Standing is one row of the global standings.
type Standing struct {
	Username   string     `json:"username"`
	TotalScore int        `json:"total_score"`
	LastRaces  []RaceForm `json:"last_races"`
}

// Role is a league membership role.
type Role string

// League roles, most privileged first.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleGrader Role = "grader"
	RoleMember Role = "member"
)

// CanGrade reports whether the role may adjust league ballots.
func (r Role) CanGrade() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleGrader
}

// League is a named group with its own standings.
type League struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	InviteCode  string    `json:"invite_code,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	IsPublic    bool      `json:"is_public"`
	MemberCount int       `json:"member_count,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Membership ties a user to a league.
type Membership struct {
	LeagueID     int64  `json:"league_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username,omitempty"`
	Role         Role   `json:"role"`
	SeasonPoints int    `json:"season_points"`
}

// LeagueActivity is one entry of a league's activity feed.
type LeagueActivity struct {
	ID        int64     `json:"id"`
	LeagueID  int64     `json:"league_id"`
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
