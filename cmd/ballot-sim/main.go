package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/gridpick/internal/ballotsim"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the BFF")
		raceID  = flag.Int64("race", 0, "Race to enter ballots for")
		users   = flag.Int("users", ballotsim.DefaultUsers, "Number of synthetic players")
		workers = flag.Int("workers", ballotsim.DefaultWorkers, "Concurrent submitters")
		secret  = flag.String("secret", os.Getenv("GRIDPICK_JWT_SECRET"), "JWT secret shared with the BFF")
		issuer  = flag.String("issuer", os.Getenv("GRIDPICK_JWT_ISSUER"), "JWT issuer")
		dupes   = flag.Int("dupes", ballotsim.DefaultDuplicateSample, "Ballots re-submitted for the duplicate check")
		skew    = flag.Float64("skew", ballotsim.DefaultSkew, "Driver popularity skew, above 1")
		seed    = flag.Uint64("seed", 0, "Generator seed, 0 for random")
		timeout = flag.Duration("timeout", ballotsim.DefaultTimeout, "HTTP request timeout")
		output  = flag.String("output", "", "Write generated ballots to this JSON file")
		logFile = flag.String("log", "", "Also write log lines to this file")
		verbose = flag.Bool("verbose", false, "Log every submission")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		ballotsim.ShowHelp()
		return
	}

	closeLog, err := ballotsim.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)

	_, err = ballotsim.Run(ctx, &ballotsim.Config{
		BaseURL:         *baseURL,
		RaceID:          *raceID,
		Users:           *users,
		Workers:         *workers,
		Timeout:         *timeout,
		Secret:          *secret,
		Issuer:          *issuer,
		DuplicateSample: *dupes,
		Skew:            *skew,
		Seed:            *seed,
		OutputFile:      *output,
		Verbose:         *verbose,
	})
	cancel()
	stop()
	closeLog()
	if err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
