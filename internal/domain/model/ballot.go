package model

import (
	"strings"
	"time"
)

// BonusCount is the number of free-text bonus predictions on a ballot.
const BonusCount = 3

// Ballot is a user's complete set of predictions for one race. The backend
// enforces one ballot per (user, race); nothing here checks it.
type Ballot struct {
	ID      int64  `json:"id,omitempty"`
	UserID  string `json:"user_id"`
	RaceID  int64  `json:"race_id"`
	QualiP1 string `json:"quali_p1_driver"`
	QualiP2 string `json:"quali_p2_driver"`
	QualiP3 string `json:"quali_p3_driver"`
	RaceP1  string `json:"race_p1_driver"`
	RaceP2  string `json:"race_p2_driver"`
	RaceP3  string `json:"race_p3_driver"`
	Bonus1  string `json:"bonus_1"`
	Bonus2  string `json:"bonus_2"`
	Bonus3  string `json:"bonus_3"`

	// ManualScore is assigned by graders; nil until graded.
	ManualScore *int `json:"manual_score,omitempty"`
	// LeaguePoints is the per-league breakdown written by league graders.
	LeaguePoints map[string]int `json:"league_points,omitempty"`

	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (b *Ballot) slotField(s Slot) *string {
	switch s {
	case SlotQualiP1:
		return &b.QualiP1
	case SlotQualiP2:
		return &b.QualiP2
	case SlotQualiP3:
		return &b.QualiP3
	case SlotRaceP1:
		return &b.RaceP1
	case SlotRaceP2:
		return &b.RaceP2
	case SlotRaceP3:
		return &b.RaceP3
	}
	return nil
}

// Pick returns the driver chosen for slot, or "" if the slot is unknown.
func (b *Ballot) Pick(s Slot) string {
	if p := b.slotField(s); p != nil {
		return *p
	}
	return ""
}

// SetPick sets the driver for slot. Unknown slots are ignored.
func (b *Ballot) SetPick(s Slot, driver string) {
	if p := b.slotField(s); p != nil {
		*p = driver
	}
}

// Picks returns the six picks in slot order.
func (b *Ballot) Picks() [6]string {
	var out [6]string
	for _, s := range allSlots {
		out[s.index()] = b.Pick(s)
	}
	return out
}

// Bonuses returns the three free-text predictions.
func (b *Ballot) Bonuses() [BonusCount]string {
	return [BonusCount]string{b.Bonus1, b.Bonus2, b.Bonus3}
}

// Normalize trims whitespace from every pick and bonus field.
func (b *Ballot) Normalize() {
	for _, s := range allSlots {
		b.SetPick(s, strings.TrimSpace(b.Pick(s)))
	}
	b.Bonus1 = strings.TrimSpace(b.Bonus1)
	b.Bonus2 = strings.TrimSpace(b.Bonus2)
	b.Bonus3 = strings.TrimSpace(b.Bonus3)
}

// Score returns the manual score or zero.
func (b *Ballot) Score() int {
	if b.ManualScore == nil {
		return 0
	}
	return *b.ManualScore
}
