package confidence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// PickSource returns every submitted ballot's pick for one slot of a race.
// Blank picks are included so that they count towards the total.
type PickSource interface {
	SlotPicks(ctx context.Context, raceID int64, slot model.Slot) ([]string, error)
}

// Default tuning.
const (
	DefaultTrackerTTL   = 30 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
)

// Aggregator samples the community picks for a slot. Concurrent requests for
// the same (race, slot) share one fetch.
type Aggregator struct {
	source       PickSource
	group        singleflight.Group
	log          logger.Logger
	fetchTimeout time.Duration
	trackerTTL   time.Duration
	now          func() time.Time

	mu        sync.Mutex
	trackers  map[string]*Tracker
	lastSweep time.Time
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source PickSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:       source,
		fetchTimeout: DefaultFetchTimeout,
		trackerTTL:   DefaultTrackerTTL,
		now:          time.Now,
		trackers:     make(map[string]*Tracker),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("confidence")
	}
	a.lastSweep = a.now()
	return a
}

// Sample reports the share of ballots that picked candidate for slot.
// The second result is false when there is nothing to display, including
// when the picks could not be fetched.
func (a *Aggregator) Sample(ctx context.Context, raceID int64, slot model.Slot, candidate string) (Sample, bool) {
	if _, ok := Compute([]string{candidate}, candidate); !ok {
		metrics.RecordConfidenceSample("no_data")
		return Sample{}, false
	}

	picks, err := a.fetch(ctx, raceID, slot)
	if err != nil {
		a.log.Warn(ctx, "confidence fetch failed",
			logger.Int64("race_id", raceID),
			logger.String("slot", string(slot)),
			logger.Error(err))
		metrics.RecordConfidenceSample("error")
		metrics.RecordErrorByComponent("confidence", "fetch")
		return Sample{}, false
	}

	s, ok := Compute(picks, candidate)
	if !ok {
		metrics.RecordConfidenceSample("no_data")
		return Sample{}, false
	}
	s.RaceID = raceID
	s.Slot = slot
	metrics.RecordConfidenceSample("served")
	return s, true
}

// fetch runs one shared SlotPicks call per (race, slot). The shared call is
// detached from every caller's cancellation; each caller stops waiting when
// its own ctx ends.
func (a *Aggregator) fetch(ctx context.Context, raceID int64, slot model.Slot) ([]string, error) {
	key := fmt.Sprintf("%d:%s", raceID, slot)
	ch := a.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.fetchTimeout)
		defer cancel()
		return a.source.SlotPicks(fctx, raceID, slot)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

// Track returns the tracker for a watcher, typically one user's view of one
// slot. The same key yields the same tracker until it has been idle for the
// tracker TTL, after which it is dropped and a fresh one starts at zero.
func (a *Aggregator) Track(key string) *Tracker {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Sub(a.lastSweep) >= a.trackerTTL {
		a.sweepLocked(now)
	}
	t, ok := a.trackers[key]
	if !ok {
		t = &Tracker{agg: a}
		a.trackers[key] = t
	}
	t.lastUsed = now
	return t
}

// Sweep drops every tracker idle for longer than the tracker TTL and
// returns how many were removed. Track sweeps on its own at most once per
// TTL.
func (a *Aggregator) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked(a.now())
}

func (a *Aggregator) sweepLocked(now time.Time) int {
	a.lastSweep = now
	removed := 0
	for key, t := range a.trackers {
		if now.Sub(t.lastUsed) >= a.trackerTTL {
			delete(a.trackers, key)
			removed++
		}
	}
	if removed > 0 {
		a.log.Debug(context.Background(), "idle confidence trackers dropped",
			logger.Int("removed", removed),
			logger.Int("remaining", len(a.trackers)))
	}
	return removed
}

// Trackers returns the number of live trackers.
func (a *Aggregator) Trackers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.trackers)
}

// Forget drops a watcher's tracker.
func (a *Aggregator) Forget(key string) {
	a.mu.Lock()
	delete(a.trackers, key)
	a.mu.Unlock()
}

// Tracker sequences the requests of one watcher so that only the response to
// the most recent request is delivered.
type Tracker struct {
	agg      *Aggregator
	lastUsed time.Time // guarded by agg.mu

	mu     sync.Mutex
	latest uint64
}

// Next issues a new token, superseding every earlier one.
func (t *Tracker) Next() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest++
	return t.latest
}

// Claim registers a caller-chosen token. It fails if a token at least as new
// was already issued or claimed.
func (t *Tracker) Claim(token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token <= t.latest {
		return false
	}
	t.latest = token
	return true
}

// Latest returns the newest token.
func (t *Tracker) Latest() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// IsLatest reports whether token is still the newest.
func (t *Tracker) IsLatest(token uint64) bool {
	return t.Latest() == token
}

// Resolve samples on behalf of the request holding token. It returns
// ErrStale if a newer token exists when the sample is ready.
func (t *Tracker) Resolve(ctx context.Context, token uint64, raceID int64, slot model.Slot, candidate string) (Sample, bool, error) {
	if !t.IsLatest(token) {
		metrics.RecordConfidenceSample("stale")
		return Sample{}, false, ErrStale
	}
	s, ok := t.agg.Sample(ctx, raceID, slot, candidate)
	if !t.IsLatest(token) {
		metrics.RecordConfidenceSample("stale")
		return Sample{}, false, ErrStale
	}
	s.Seq = token
	return s, ok, nil
}
