package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/bananas/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the global logger on stdout and, when logFile is
// set, on that file too. It returns a closer for the file.
func SetupLogging(logFile, format string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	if err := logger.InitWith(w, format); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closer, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Bananas Load Tool
=================

Submits concurrent increments to a running bananas service, then reads every
user back and checks that user totals, leaderboard scores and the global
counter agree with what was applied.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -actions int
        Number of increment actions to submit (default 10000)
  -users int
        Number of distinct users (default 100)
  -max-amount int
        Amounts are drawn from 1..max-amount (default 5)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -retries int
        Retries per action with the same Idempotency-Key (default 2)
  -top int
        Leaderboard rows to fetch for verification (default 100)
  -check-global
        Verify the global counter delta; only valid when nothing else writes (default true)
  -seed uint
        Seed for amounts and spellings; 0 is random
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the generated actions to this JSON file
  -log string
        Also write logs to this file
  -log-format string
        text or json (default "text")
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run ./cmd/loadgen

  # A shared service: skip the global check
  go run ./cmd/loadgen -actions 50000 -users 500 -check-global=false
`)
}
