package recordstore

import (
	"context"
	"errors"

	"github.com/okian/gridpick/internal/domain/model"
)

// Races reads published races and their settled results.
type Races struct {
	store Store
}

// NewRaces wraps store.
func NewRaces(store Store) *Races { return &Races{store: store} }

// List returns every race ordered by start time, then id.
func (r *Races) List(ctx context.Context) ([]model.Race, error) {
	recs, err := r.store.Select(ctx, Query{
		Table: TableRaces,
		Order: []Order{{Column: "race_time"}, {Column: "id"}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Race](recs)
}

// Get returns one race with its result, if settled.
func (r *Races) Get(ctx context.Context, id int64) (model.Race, error) {
	recs, err := r.store.Select(ctx, Query{
		Table:   TableRaces,
		Filters: []Filter{Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return model.Race{}, err
	}
	if len(recs) == 0 {
		return model.Race{}, ErrNotFound
	}
	var race model.Race
	if err := decodeRecord(recs[0], &race); err != nil {
		return model.Race{}, err
	}
	res, err := r.Result(ctx, id)
	switch {
	case err == nil:
		race.Result = &res
	case !errors.Is(err, ErrNotFound):
		return model.Race{}, err
	}
	return race, nil
}

// Result returns the settled result of a race.
func (r *Races) Result(ctx context.Context, raceID int64) (model.RaceResult, error) {
	recs, err := r.store.Select(ctx, Query{
		Table:   TableResults,
		Filters: []Filter{Eq("race_id", raceID)},
		Limit:   1,
	})
	if err != nil {
		return model.RaceResult{}, err
	}
	if len(recs) == 0 {
		return model.RaceResult{}, ErrNotFound
	}
	var res model.RaceResult
	err = decodeRecord(recs[0], &res)
	return res, err
}

// Create inserts a race. Races normally come from an external data-entry
// process; this exists for seeding.
func (r *Races) Create(ctx context.Context, race model.Race) (model.Race, error) {
	rec, err := encodeRecord(race)
	if err != nil {
		return model.Race{}, err
	}
	if race.ID == 0 {
		delete(rec, "id")
	}
	delete(rec, "result")
	stored, err := r.store.Insert(ctx, TableRaces, rec)
	if err != nil {
		return model.Race{}, err
	}
	var out model.Race
	err = decodeRecord(stored, &out)
	return out, err
}
