// Package service wires the domain components and external collaborators
// into the operations the HTTP API exposes.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/adapters/mq/queue"
	"github.com/okian/gridpick/internal/adapters/mq/worker"
	"github.com/okian/gridpick/internal/adapters/recordstore"
	"github.com/okian/gridpick/internal/adapters/repository"
	"github.com/okian/gridpick/internal/adapters/scoringapi"
	"github.com/okian/gridpick/internal/domain/confidence"
	"github.com/okian/gridpick/internal/domain/grading"
	"github.com/okian/gridpick/internal/domain/inflight"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/internal/domain/rivalry"
	"github.com/okian/gridpick/internal/domain/settlement"
	"github.com/okian/gridpick/internal/domain/submission"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// ScoringAPI is every scoring API call the service makes.
type ScoringAPI interface {
	SubmitPrediction(ctx context.Context, token string, b model.Ballot) (string, error)
	Settle(ctx context.Context, token string, result model.RaceResult) (string, error)
	Grade(ctx context.Context, token string, ballotID int64, score int) error
	AdminPredictions(ctx context.Context, token string, raceID int64) ([]model.Ballot, error)
	Standings(ctx context.Context) ([]model.Standing, error)

	CreateLeague(ctx context.Context, token string, in scoringapi.LeagueInput) (model.League, error)
	PublicLeagues(ctx context.Context) ([]model.League, error)
	MyLeagues(ctx context.Context, token string) ([]model.League, error)
	JoinLeague(ctx context.Context, token, inviteCode string) (model.League, error)
	InviteToLeague(ctx context.Context, token string, leagueID int64, username string) (string, error)
	LeaveLeague(ctx context.Context, token string, leagueID int64) (string, error)
	DeleteLeague(ctx context.Context, token string, leagueID int64) (string, error)
	LeagueStandings(ctx context.Context, token string, leagueID int64) ([]model.Membership, error)
	LeagueMembers(ctx context.Context, token string, leagueID int64) ([]model.Membership, error)
	LeagueGradingQueue(ctx context.Context, token string, leagueID int64) ([]model.Ballot, error)
	LeagueActivity(ctx context.Context, token string, leagueID int64) ([]model.LeagueActivity, error)
	SyncLeaguePoints(ctx context.Context, token string, leagueID int64) (string, error)
}

// RaceStore reads the race calendar.
type RaceStore interface {
	List(ctx context.Context) ([]model.Race, error)
	Get(ctx context.Context, id int64) (model.Race, error)
}

// ProfileLookup resolves usernames to user ids.
type ProfileLookup interface {
	ByUsername(ctx context.Context, username string) (recordstore.Profile, error)
}

// Deps are the collaborators the service is built from.
type Deps struct {
	API       ScoringAPI
	Races     RaceStore
	Picks     confidence.PickSource
	Rivalries rivalry.Store
	Profiles  ProfileLookup
	Notes     *notify.Service
}

// Service implements the API dependencies for the prediction game.
type Service struct {
	mu sync.RWMutex

	api      ScoringAPI
	races    RaceStore
	profiles ProfileLookup
	notes    *notify.Service

	aggregator *confidence.Aggregator
	submitter  *submission.Client
	settler    *settlement.Trigger
	grader     *grading.Grader
	rivals     *rivalry.Service
	standings  repository.Store
	guard      inflight.Guard

	gradeQueue *queue.InMemoryQueue
	pool       *worker.Pool

	refresh     singleflight.Group
	standingsAt time.Time

	gradeWorkers   int
	gradeQueueSize int
	standingsTTL   time.Duration
	maxLimit       int

	started bool
	now     func() time.Time
	logger  logger.Logger
}

// New constructs a Service. Start must be called before grades are
// persisted.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		api:            deps.API,
		races:          deps.Races,
		profiles:       deps.Profiles,
		notes:          deps.Notes,
		gradeWorkers:   4,
		gradeQueueSize: 1024,
		standingsTTL:   30 * time.Second,
		maxLimit:       100,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.notes == nil {
		s.notes = notify.New()
	}

	s.guard = inflight.NewInMemoryGuard()
	s.aggregator = confidence.NewAggregator(deps.Picks, confidence.WithClock(s.now))
	s.submitter = submission.New(s.api,
		submission.WithRaces(s.races),
		submission.WithGuard(s.guard),
		submission.WithSessions(auth.FromContext),
		submission.WithClock(s.now),
	)
	s.settler = settlement.New(s.api, auth.FromContext)
	s.gradeQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.gradeQueueSize))
	s.grader = grading.New(s.gradeQueue, auth.FromContext,
		grading.WithNotifier(s.notes),
		grading.WithClock(s.now),
	)
	s.pool = worker.NewPool(s.gradeWorkers, s.gradeQueue, s.api, s.grader)
	s.rivals = rivalry.NewService(deps.Rivalries, rivalry.WithClock(s.now))
	s.standings = repository.NewTreapStore()
	return s
}

// Start launches the grade workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.pool.Start(ctx)
	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("grade_workers", s.pool.Size()),
		logger.Int("grade_queue", s.gradeQueueSize),
		logger.Duration("standings_ttl", s.standingsTTL),
	)
	return nil
}

// Stop drains queued grade jobs and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "service stopped")
	return err
}

// Notifications returns the notification service.
func (s *Service) Notifications() *notify.Service { return s.notes }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	started := s.started
	standingsAt := s.standingsAt
	s.mu.RUnlock()

	ctx := context.Background()
	queueLen := s.gradeQueue.Len(ctx)
	stats := map[string]any{
		"started":            started,
		"gradeWorkers":       s.pool.Size(),
		"gradeQueueCapacity": s.gradeQueueSize,
		"gradeQueueLength":   queueLen,
		"ballotsInFlight":    s.guard.Size(),
		"standingsEntries":   s.standings.Count(ctx),
		"subscribers":        s.notes.Subscribers(),
		"confidenceTrackers": s.aggregator.Trackers(),
	}
	if !standingsAt.IsZero() {
		stats["standingsRefreshedAt"] = standingsAt.UTC().Format(time.RFC3339)
	}
	metrics.UpdateQueueSize(queueLen)
	return stats
}

// session returns the caller's session or ErrAuthRequired.
func session(ctx context.Context) (model.Session, error) {
	sess, ok := auth.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		return model.Session{}, ErrAuthRequired
	}
	return sess, nil
}
