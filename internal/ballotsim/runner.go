package ballotsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
	percentage          = 100
)

// ErrDuplicateNotReported is returned when a re-submitted ballot is not
// answered with a duplicate error.
var ErrDuplicateNotReported = errors.New("re-submitted ballot was not reported as duplicate")

// ErrNothingAccepted is returned when the BFF created none of the ballots.
var ErrNothingAccepted = errors.New("no ballot was accepted")

// Run executes the complete simulation.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting ballot simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int64("raceID", cfg.RaceID),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Float64("skew", cfg.Skew),
		logger.Int64("seed", int64(cfg.Seed)))

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate players
	verifier := auth.NewVerifier(cfg.Secret, cfg.Issuer)
	players, err := NewGenerator(cfg.Seed, cfg.Skew).Players(ctx, cfg.Users, cfg.RaceID, verifier)
	if err != nil {
		return stats, fmt.Errorf("player generation failed: %w", err)
	}
	stats.Generated = len(players)

	// Step 3: Submit ballots concurrently
	accepted, err := submitAll(ctx, cfg, client, players, stats)
	if err != nil {
		return stats, fmt.Errorf("ballot submission failed: %w", err)
	}
	if len(accepted) == 0 {
		return stats, fmt.Errorf("%w: %d rejected, %d failed", ErrNothingAccepted, stats.Rejected, stats.Failed)
	}

	// Step 4: Re-submit a sample; every one must come back as a duplicate
	if err := resubmit(ctx, cfg, client, accepted, stats); err != nil {
		return stats, err
	}

	// Step 5: Verify confidence figures
	if err := verifyConfidence(ctx, client, accepted[0], accepted, stats); err != nil {
		return stats, fmt.Errorf("confidence verification failed: %w", err)
	}

	// Step 6: Save players to file
	if cfg.OutputFile != "" {
		if err := savePlayers(cfg.OutputFile, players); err != nil {
			log.Warn(ctx, "failed to save ballots to file", logger.Error(err))
		} else {
			log.Info(ctx, "ballots saved to file", logger.String("filename", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// submitAll posts every player's ballot with at most cfg.Workers requests
// in flight and returns the players whose ballot was created.
func submitAll(ctx context.Context, cfg *Config, client *Client, players []Player, stats *Stats) ([]Player, error) {
	log := logger.Get()
	log.Info(ctx, "submitting ballots", logger.Int("count", len(players)), logger.Int("workers", cfg.Workers))

	outcomes := make([]Outcome, len(players))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range players {
		g.Go(func() error {
			o, msg, err := client.Submit(gctx, players[i])
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = o
			if cfg.Verbose || (o != OutcomeCreated && err == nil) {
				log.Debug(gctx, "ballot submitted",
					logger.String("username", players[i].Username),
					logger.String("outcome", string(o)),
					logger.String("message", msg),
					logger.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	accepted := make([]Player, 0, len(players))
	for i, o := range outcomes {
		stats.count(o)
		if o == OutcomeCreated {
			accepted = append(accepted, players[i])
		}
	}
	log.Info(ctx, "ballot submission completed",
		logger.Int("created", stats.Created),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("inFlight", stats.InFlight),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))
	return accepted, nil
}

// resubmit posts the first cfg.DuplicateSample accepted ballots again.
func resubmit(ctx context.Context, cfg *Config, client *Client, accepted []Player, stats *Stats) error {
	n := min(cfg.DuplicateSample, len(accepted))
	if n == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range accepted[:n] {
		g.Go(func() error {
			o, msg, err := client.Submit(gctx, p)
			mu.Lock()
			defer mu.Unlock()
			stats.Resubmitted++
			switch {
			case err != nil:
				errs = append(errs, err)
			case o == OutcomeDuplicate:
				stats.ResubmitDuplicates++
			default:
				errs = append(errs, fmt.Errorf("%w: %s got %s %q", ErrDuplicateNotReported, p.Username, o, msg))
			}
			return nil
		})
	}
	_ = g.Wait()
	logger.Get().Info(ctx, "duplicate check completed",
		logger.Int("resubmitted", stats.Resubmitted),
		logger.Int("duplicates", stats.ResubmitDuplicates))
	return errors.Join(errs...)
}

// savePlayers writes the generated players as a JSON array.
func savePlayers(filename string, players []Player) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(players, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ballots: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, ballotsPerSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Created) / float64(stats.Submitted) * percentage
	}
	if stats.Duration > 0 {
		ballotsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("resubmitted", stats.Resubmitted),
		logger.Int("resubmitDuplicates", stats.ResubmitDuplicates),
		logger.Int("slotsVerified", stats.SlotsVerified),
		logger.Int("slotMismatches", stats.SlotMismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("ballotsPerSecond", ballotsPerSecond))
}
