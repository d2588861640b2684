package recordstore

import (
	"context"
	"sort"

	"github.com/okian/gridpick/internal/domain/model"
)

// Rivalries persists rivalry state in the rivalries table.
type Rivalries struct {
	store Store
}

// NewRivalries wraps store.
func NewRivalries(store Store) *Rivalries { return &Rivalries{store: store} }

// Create inserts a new rivalry.
func (r *Rivalries) Create(ctx context.Context, rv model.Rivalry) (model.Rivalry, error) {
	rec, err := encodeRecord(rv)
	if err != nil {
		return model.Rivalry{}, err
	}
	stored, err := r.store.Insert(ctx, TableRivalries, rec)
	if err != nil {
		return model.Rivalry{}, err
	}
	var out model.Rivalry
	err = decodeRecord(stored, &out)
	return out, err
}

// Get loads one rivalry.
func (r *Rivalries) Get(ctx context.Context, id string) (model.Rivalry, error) {
	recs, err := r.store.Select(ctx, Query{
		Table:   TableRivalries,
		Filters: []Filter{Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return model.Rivalry{}, err
	}
	if len(recs) == 0 {
		return model.Rivalry{}, ErrNotFound
	}
	var out model.Rivalry
	err = decodeRecord(recs[0], &out)
	return out, err
}

// ForUser returns rivalries where userID is either side, newest first.
func (r *Rivalries) ForUser(ctx context.Context, userID string) ([]model.Rivalry, error) {
	var all []model.Rivalry
	for _, col := range []string{"challenger_id", "opponent_id"} {
		recs, err := r.store.Select(ctx, Query{
			Table:   TableRivalries,
			Filters: []Filter{Eq(col, userID)},
		})
		if err != nil {
			return nil, err
		}
		side, err := decodeAll[model.Rivalry](recs)
		if err != nil {
			return nil, err
		}
		all = append(all, side...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// Save writes the mutable fields of rv.
func (r *Rivalries) Save(ctx context.Context, rv model.Rivalry) error {
	patch := Record{
		"status":            string(rv.Status),
		"challenger_points": rv.ChallengerPoints,
		"opponent_points":   rv.OpponentPoints,
		"races_recorded":    rv.RacesRecorded,
		"responded_at":      rv.RespondedAt,
		"completed_at":      rv.CompletedAt,
	}
	return r.store.Update(ctx, TableRivalries, Eq("id", rv.ID), patch)
}
