package rivalry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/logger"
)

// Store persists rivalries.
type Store interface {
	Create(ctx context.Context, r model.Rivalry) (model.Rivalry, error)
	Get(ctx context.Context, id string) (model.Rivalry, error)
	ForUser(ctx context.Context, userID string) ([]model.Rivalry, error)
	Save(ctx context.Context, r model.Rivalry) error
}

// Service applies rivalry transitions and persists them.
type Service struct {
	store Store
	now   func() time.Time
	log   logger.Logger
}

// NewService creates a rivalry service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("rivalry")
	}
	return s
}

// Challenge opens a rivalry from challengerID.
func (s *Service) Challenge(ctx context.Context, challengerID string, c Challenge) (model.Rivalry, error) {
	r, err := Open(challengerID, c, s.now().UTC())
	if err != nil {
		return model.Rivalry{}, err
	}
	r.ID = uuid.NewString()
	created, err := s.store.Create(ctx, r)
	if err != nil {
		return model.Rivalry{}, err
	}
	s.log.Info(ctx, "rivalry opened",
		logger.String("rivalry_id", created.ID),
		logger.String("challenger", challengerID),
		logger.String("opponent", created.OpponentID),
		logger.Int("races", created.RaceCount),
	)
	return created, nil
}

// Accept activates rivalry id on behalf of userID.
func (s *Service) Accept(ctx context.Context, id, userID, driver string) (model.Rivalry, error) {
	return s.mutate(ctx, id, func(r *model.Rivalry) error {
		return Accept(r, userID, driver, s.now().UTC())
	})
}

// Decline refuses rivalry id on behalf of userID.
func (s *Service) Decline(ctx context.Context, id, userID string) (model.Rivalry, error) {
	return s.mutate(ctx, id, func(r *model.Rivalry) error {
		return Decline(r, userID, s.now().UTC())
	})
}

// RecordRace adds one race's points to rivalry id. Recording the same race
// twice leaves the rivalry unchanged.
func (s *Service) RecordRace(ctx context.Context, id string, raceID int64, challengerPts, opponentPts int) (model.Rivalry, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Rivalry{}, err
	}
	changed, err := RecordRace(&r, raceID, challengerPts, opponentPts, s.now().UTC())
	if err != nil || !changed {
		return r, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return model.Rivalry{}, err
	}
	if r.Status == model.RivalryCompleted {
		res := Winner(r)
		s.log.Info(ctx, "rivalry completed",
			logger.String("rivalry_id", r.ID),
			logger.String("winner", res.WinnerID),
			logger.Bool("draw", res.Draw),
		)
	}
	return r, nil
}

// Get returns rivalry id if userID takes part in it.
func (s *Service) Get(ctx context.Context, id, userID string) (model.Rivalry, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Rivalry{}, err
	}
	if !r.Involves(userID) {
		return model.Rivalry{}, ErrNotParticipant
	}
	return r, nil
}

// ForUser lists userID's rivalries, newest first.
func (s *Service) ForUser(ctx context.Context, userID string) ([]model.Rivalry, error) {
	return s.store.ForUser(ctx, userID)
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*model.Rivalry) error) (model.Rivalry, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Rivalry{}, err
	}
	if err := fn(&r); err != nil {
		return model.Rivalry{}, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return model.Rivalry{}, err
	}
	return r, nil
}
