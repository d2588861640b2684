package model

import (
	"time"
)

// Race is a published race weekend. Immutable except for the admin intel
// fields and the settled result.
type Race struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Circuit string `json:"circuit"`
	Country string `json:"country,omitempty"`
	Round   int    `json:"round,omitempty"`

	FP1              *time.Time `json:"fp1_time,omitempty"`
	FP2              *time.Time `json:"fp2_time,omitempty"`
	FP3              *time.Time `json:"fp3_time,omitempty"`
	SprintQualifying *time.Time `json:"sprint_quali_time,omitempty"`
	Sprint           *time.Time `json:"sprint_time,omitempty"`
	Qualifying       *time.Time `json:"quali_time,omitempty"`
	RaceTime         time.Time  `json:"race_time"`
	IsSprint         bool       `json:"is_sprint"`

	// Admin-supplied intel.
	PreviousWinner string `json:"previous_winner,omitempty"`
	TrackCondition string `json:"track_condition,omitempty"`
	Forecast       string `json:"forecast,omitempty"`

	Result *RaceResult `json:"result,omitempty"`
}

// RaceResult is the authoritative finishing order submitted at settlement.
type RaceResult struct {
	RaceID  int64  `json:"race_id"`
	QualiP1 string `json:"quali_p1_driver"`
	QualiP2 string `json:"quali_p2_driver"`
	QualiP3 string `json:"quali_p3_driver"`
	RaceP1  string `json:"race_p1_driver"`
	RaceP2  string `json:"race_p2_driver"`
	RaceP3  string `json:"race_p3_driver"`
}

// Names returns the six result names in slot order.
func (r RaceResult) Names() [6]string {
	return [6]string{r.QualiP1, r.QualiP2, r.QualiP3, r.RaceP1, r.RaceP2, r.RaceP3}
}

// PredictionsClose is when the ballot window shuts: the start of qualifying,
// or the race itself when no qualifying time is published.
func (r Race) PredictionsClose() time.Time {
	if r.Qualifying != nil && !r.Qualifying.IsZero() {
		return *r.Qualifying
	}
	return r.RaceTime
}

// IsOpen reports whether ballots may still be submitted at now.
func (r Race) IsOpen(now time.Time) bool {
	return now.Before(r.PredictionsClose())
}

// IsSettled reports whether an authoritative result has been recorded.
func (r Race) IsSettled() bool { return r.Result != nil }

// IsPast reports whether the race start is before now.
func (r Race) IsPast(now time.Time) bool { return !r.RaceTime.After(now) }
