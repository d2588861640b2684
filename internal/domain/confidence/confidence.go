// Package confidence computes community-pick percentages: how much of the
// field chose the same driver for a slot as the current selection.
package confidence

import (
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
)

// Tier is a display bucket for a percentage.
type Tier string

// Confidence tiers, from most to least common.
const (
	TierPopular    Tier = "popular"
	TierCommon     Tier = "common"
	TierModerate   Tier = "moderate"
	TierContrarian Tier = "contrarian"
)

// Tier thresholds. A percentage equal to a threshold belongs to the higher tier.
const (
	popularMin  = 50
	commonMin   = 30
	moderateMin = 15
)

// Sample is the reduced view of one slot's picks for a candidate driver.
type Sample struct {
	RaceID     int64      `json:"race_id"`
	Slot       model.Slot `json:"slot"`
	Driver     string     `json:"driver"`
	Matching   int        `json:"matching"`
	Total      int        `json:"total"`
	Percentage int        `json:"percentage"`
	Tier       Tier       `json:"tier"`
	Seq        uint64     `json:"seq,omitempty"`
}

// Compute reduces every submitted pick for a slot against candidate.
// It reports false when there is nothing to show: no candidate selected or
// no ballots at all.
func Compute(picks []string, candidate string) (Sample, bool) {
	if registry.IsBlank(candidate) || len(picks) == 0 {
		return Sample{}, false
	}
	matching := 0
	for _, p := range picks {
		if p == candidate {
			matching++
		}
	}
	pct := Percent(matching, len(picks))
	return Sample{
		Driver:     candidate,
		Matching:   matching,
		Total:      len(picks),
		Percentage: pct,
		Tier:       Classify(pct),
	}, true
}

// Percent returns matching/total as a whole percentage, rounding halves up.
// Exact for halves: 29/200 is 15.
func Percent(matching, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*matching + total) / (2 * total)
}

// Classify maps a percentage to its tier.
func Classify(pct int) Tier {
	switch {
	case pct >= popularMin:
		return TierPopular
	case pct >= commonMin:
		return TierCommon
	case pct >= moderateMin:
		return TierModerate
	default:
		return TierContrarian
	}
}
