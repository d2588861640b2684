package ballotsim

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/gridpick/internal/domain/confidence"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/logger"
)

// ErrMismatch is wrapped by every verification failure.
var ErrMismatch = errors.New("confidence mismatch")

// SlotCheck is the expectation for one slot: the most picked driver and the
// sample the server should report for it.
type SlotCheck struct {
	Slot     model.Slot
	Driver   string
	Expected confidence.Sample
}

// Expectations computes, for every slot, the sample a server holding exactly
// players' ballots would serve for that slot's favourite.
func Expectations(players []Player) []SlotCheck {
	if len(players) == 0 {
		return nil
	}
	checks := make([]SlotCheck, 0, len(model.Slots()))
	for _, slot := range model.Slots() {
		picks := make([]string, len(players))
		for i := range players {
			picks[i] = players[i].Ballot.Pick(slot)
		}
		driver := favourite(picks)
		s, _ := confidence.Compute(picks, driver)
		checks = append(checks, SlotCheck{Slot: slot, Driver: driver, Expected: s})
	}
	return checks
}

// favourite returns the most frequent pick, ties broken by name.
func favourite(picks []string) string {
	counts := make(map[string]int, len(picks))
	for _, p := range picks {
		counts[p]++
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names[0]
}

// Compare checks a served sample against the expectation.
func Compare(check SlotCheck, got confidence.Sample, ok bool) error {
	want := check.Expected
	switch {
	case !ok:
		return fmt.Errorf("%w: %s: server reported no sample for %s", ErrMismatch, check.Slot, check.Driver)
	case got.Total > want.Total:
		return fmt.Errorf("%w: %s: server counts %d ballots, simulation submitted %d; the race was not empty",
			ErrMismatch, check.Slot, got.Total, want.Total)
	case got.Matching != want.Matching || got.Total != want.Total:
		return fmt.Errorf("%w: %s: %s picked %d/%d, want %d/%d",
			ErrMismatch, check.Slot, check.Driver, got.Matching, got.Total, want.Matching, want.Total)
	case got.Percentage != want.Percentage:
		return fmt.Errorf("%w: %s: %s at %d%%, want %d%%",
			ErrMismatch, check.Slot, check.Driver, got.Percentage, want.Percentage)
	case got.Tier != want.Tier:
		return fmt.Errorf("%w: %s: tier %s, want %s", ErrMismatch, check.Slot, got.Tier, want.Tier)
	}
	return nil
}

// verifyConfidence queries every slot as viewer and compares the answers
// with what the accepted ballots imply.
func verifyConfidence(ctx context.Context, client *Client, viewer Player, accepted []Player, stats *Stats) error {
	checks := Expectations(accepted)
	if len(checks) == 0 {
		return fmt.Errorf("%w: no accepted ballots to verify", ErrMismatch)
	}

	var errs []error
	for i, check := range checks {
		got, ok, err := client.Confidence(ctx, viewer.Token, viewer.Ballot.RaceID, check.Slot, check.Driver, uint64(i+1))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stats.SlotsVerified++
		if err := Compare(check, got, ok); err != nil {
			stats.SlotMismatches++
			errs = append(errs, err)
			continue
		}
		logger.Get().Info(ctx, "slot verified",
			logger.String("slot", string(check.Slot)),
			logger.String("driver", check.Driver),
			logger.Int("percentage", got.Percentage),
			logger.String("tier", string(got.Tier)))
	}
	return errors.Join(errs...)
}
