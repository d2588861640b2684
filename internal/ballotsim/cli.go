package ballotsim

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/gridpick/pkg/logger"
)

// SetupLogging sends log lines to stdout and, when logFile is set, to that
// file as well. The returned function closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	var (
		out     io.Writer = os.Stdout
		closeFn           = func() {}
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return closeFn, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = func() { _ = file.Close() }
	}
	if err := logger.Init(logger.WithOutput(out)); err != nil {
		closeFn()
		return func() {}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the ballot simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Gridpick Ballot Simulator
=========================

Submits ballots for synthetic players against a running BFF, checks that
repeat submissions are reported as duplicates and verifies the confidence
figures served for every slot.

Usage:
  go run ./cmd/ballot-sim -race 42 -secret $GRIDPICK_JWT_SECRET [options]

Options:
  -url string        Base URL of the BFF (default "http://localhost:9080")
  -race int          Race to enter ballots for (required)
  -users int         Number of synthetic players (default 200)
  -workers int       Concurrent submitters (default 16)
  -secret string     JWT secret shared with the BFF (default $GRIDPICK_JWT_SECRET)
  -issuer string     JWT issuer (default $GRIDPICK_JWT_ISSUER)
  -dupes int         Ballots re-submitted for the duplicate check (default 10)
  -skew float        Driver popularity skew, above 1 (default 1.2)
  -seed uint         Generator seed, 0 for random
  -timeout duration  HTTP request timeout (default 10s)
  -output string     Write generated ballots to this JSON file
  -log string        Also write log lines to this file
  -verbose           Log every submission
  -help              Show this help message

The race should have no ballots yet; confidence checks compare the server's
figures with the simulated ballots only.
`)
}
