package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/gridpick/internal/domain/model"
)

// When selects which part of the calendar to list.
type When string

// Race filters.
const (
	WhenAll      When = "all"
	WhenUpcoming When = "upcoming"
	WhenPast     When = "past"
)

// ParseWhen accepts a filter name; empty means all.
func ParseWhen(s string) (When, error) {
	switch w := When(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WhenAll, nil
	case WhenAll, WhenUpcoming, WhenPast:
		return w, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Races lists races. All and upcoming run by start time ascending; past runs
// most recent first. Ties fall back to id.
func (s *Service) Races(ctx context.Context, when When) ([]model.Race, error) {
	all, err := s.races.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	out := make([]model.Race, 0, len(all))
	for _, r := range all {
		switch when {
		case WhenUpcoming:
			if r.IsPast(now) {
				continue
			}
		case WhenPast:
			if !r.IsPast(now) {
				continue
			}
		case WhenAll:
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, string(when))
		}
		out = append(out, r)
	}

	desc := when == WhenPast
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.RaceTime.Equal(b.RaceTime) {
			if desc {
				return a.RaceTime.After(b.RaceTime)
			}
			return a.RaceTime.Before(b.RaceTime)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Race returns one race with its result when settled.
func (s *Service) Race(ctx context.Context, id int64) (model.Race, error) {
	return s.races.Get(ctx, id)
}

// NextRace returns the first race that has not started yet.
func (s *Service) NextRace(ctx context.Context) (model.Race, error) {
	upcoming, err := s.Races(ctx, WhenUpcoming)
	if err != nil {
		return model.Race{}, err
	}
	if len(upcoming) == 0 {
		return model.Race{}, ErrNoUpcoming
	}
	return upcoming[0], nil
}
