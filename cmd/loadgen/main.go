package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/bananas/internal/loadgen"
	"github.com/okian/bananas/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumActions  = 10000
	defaultNumUsers    = 100
	defaultMaxAmount   = 5
	defaultTopN        = 100
	defaultRetries     = 2
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numActions  = flag.Int("actions", defaultNumActions, "Number of increment actions to submit")
		numUsers    = flag.Int("users", defaultNumUsers, "Number of distinct users")
		maxAmount   = flag.Int("max-amount", defaultMaxAmount, "Amounts are drawn from 1..max-amount")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		retries     = flag.Int("retries", defaultRetries, "Retries per action with the same Idempotency-Key")
		topN        = flag.Int("top", defaultTopN, "Leaderboard rows to fetch for verification")
		checkGlobal = flag.Bool("check-global", true, "Verify the global counter delta")
		seed        = flag.Uint64("seed", 0, "Seed for amounts and spellings; 0 is random")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Write the generated actions to this JSON file")
		logFile     = flag.String("log", "", "Also write logs to this file")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp(os.Stdout)
		return
	}

	closer, err := loadgen.SetupLogging(*logFile, *logFormat, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &loadgen.Config{
		BaseURL:     *baseURL,
		NumActions:  *numActions,
		NumUsers:    *numUsers,
		MaxAmount:   *maxAmount,
		Workers:     *workers,
		Timeout:     *timeout,
		Retries:     *retries,
		LeaderLimit: *topN,
		CheckGlobal: *checkGlobal,
		Seed:        *seed,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
