package recordstore

import "context"

// Profile is the public part of a user account.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Profiles reads user profiles.
type Profiles struct {
	store Store
}

// NewProfiles wraps store.
func NewProfiles(store Store) *Profiles { return &Profiles{store: store} }

// Get loads a profile by user id.
func (p *Profiles) Get(ctx context.Context, id string) (Profile, error) {
	return p.one(ctx, Eq("id", id))
}

// ByUsername loads a profile by username.
func (p *Profiles) ByUsername(ctx context.Context, username string) (Profile, error) {
	return p.one(ctx, Eq("username", username))
}

func (p *Profiles) one(ctx context.Context, f Filter) (Profile, error) {
	recs, err := p.store.Select(ctx, Query{
		Table:   TableProfiles,
		Columns: []string{"id", "username", "is_admin"},
		Filters: []Filter{f},
		Limit:   1,
	})
	if err != nil {
		return Profile{}, err
	}
	if len(recs) == 0 {
		return Profile{}, ErrNotFound
	}
	var out Profile
	err = decodeRecord(recs[0], &out)
	return out, err
}

// Create inserts a profile.
func (p *Profiles) Create(ctx context.Context, prof Profile) (Profile, error) {
	rec, err := encodeRecord(prof)
	if err != nil {
		return Profile{}, err
	}
	stored, err := p.store.Insert(ctx, TableProfiles, rec)
	if err != nil {
		return Profile{}, err
	}
	var out Profile
	err = decodeRecord(stored, &out)
	return out, err
}
