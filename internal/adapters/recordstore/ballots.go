package recordstore

import (
	"context"
	"fmt"

	"github.com/okian/gridpick/internal/domain/model"
)

// DefaultPageSize is the number of rows SlotPicks asks for per request.
const DefaultPageSize = 1000

// Ballots reads submitted predictions. Writes go through the scoring API.
type Ballots struct {
	store    Store
	pageSize int
}

// NewBallots wraps store.
func NewBallots(store Store, opts ...BallotsOption) *Ballots {
	b := &Ballots{store: store, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SlotPicks returns the pick every ballot for raceID made in slot. Ballots
// that left the slot empty contribute "".
//
// Rows are read in id order, page by page, until a page comes back empty.
// A backend that caps rows per response (PostgREST max-rows) then cannot
// shorten the total.
func (b *Ballots) SlotPicks(ctx context.Context, raceID int64, slot model.Slot) ([]string, error) {
	col := slot.Column()
	var picks []string
	for offset := 0; ; {
		recs, err := b.store.Select(ctx, Query{
			Table:   TablePredictions,
			Columns: []string{col},
			Filters: []Filter{Eq("race_id", raceID)},
			Order:   []Order{{Column: "id"}},
			Limit:   b.pageSize,
			Offset:  offset,
		})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			break
		}
		for _, rec := range recs {
			pick := ""
			if v, ok := rec[col]; ok && v != nil {
				pick = fmt.Sprint(v)
			}
			picks = append(picks, pick)
		}
		offset += len(recs)
	}
	if picks == nil {
		picks = []string{}
	}
	return picks, nil
}

// ForRace returns every ballot for a race, oldest first.
func (b *Ballots) ForRace(ctx context.Context, raceID int64) ([]model.Ballot, error) {
	recs, err := b.store.Select(ctx, Query{
		Table:   TablePredictions,
		Filters: []Filter{Eq("race_id", raceID)},
		Order:   []Order{{Column: "created_at"}, {Column: "id"}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Ballot](recs)
}

// ForUser returns the user's ballot for a race.
func (b *Ballots) ForUser(ctx context.Context, userID string, raceID int64) (model.Ballot, error) {
	recs, err := b.store.Select(ctx, Query{
		Table:   TablePredictions,
		Filters: []Filter{Eq("user_id", userID), Eq("race_id", raceID)},
		Limit:   1,
	})
	if err != nil {
		return model.Ballot{}, err
	}
	if len(recs) == 0 {
		return model.Ballot{}, ErrNotFound
	}
	var out model.Ballot
	err = decodeRecord(recs[0], &out)
	return out, err
}

// Insert stores a ballot directly. Only used to seed stores that have no
// scoring API in front of them.
func (b *Ballots) Insert(ctx context.Context, ballot model.Ballot) (model.Ballot, error) {
	rec, err := encodeRecord(ballot)
	if err != nil {
		return model.Ballot{}, err
	}
	if ballot.ID == 0 {
		delete(rec, "id")
	}
	if ballot.CreatedAt.IsZero() {
		delete(rec, "created_at")
	}
	delete(rec, "username")
	stored, err := b.store.Insert(ctx, TablePredictions, rec)
	if err != nil {
		return model.Ballot{}, err
	}
	var out model.Ballot
	err = decodeRecord(stored, &out)
	return out, err
}
