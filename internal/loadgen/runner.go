package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/bananas/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
	percentMultiplier   = 100
)

// Run executes a complete load run: submit, read back, verify.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	log.Info(ctx, "starting bananas load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("actions", cfg.NumActions),
		logger.Int("users", cfg.NumUsers),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("checkGlobal", cfg.CheckGlobal))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	users := generateUsers(cfg.NumUsers)

	// Step 2: Baseline global total. Stats without a userId answer zeros,
	// so ask for a user that has not eaten yet.
	baseline, err := readStats(ctx, client, users[0])
	if err != nil {
		return nil, fmt.Errorf("baseline stats failed: %w", err)
	}

	// Step 3: Generate and submit actions
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	actions := generateActions(ctx, cfg, users, rng)
	stats.ActionsGenerated = len(actions)

	applied := submitActions(ctx, cfg, client, actions, stats)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("run cancelled: %w", err)
	}

	// Step 4: Read back every user and the leaderboard
	userTotals, err := readUserTotals(ctx, cfg, client, users)
	if err != nil {
		return stats, fmt.Errorf("reading user totals failed: %w", err)
	}
	stats.UsersChecked = len(userTotals)

	final, err := readStats(ctx, client, users[0])
	if err != nil {
		return stats, fmt.Errorf("final stats failed: %w", err)
	}

	var board leaderboardResponse
	query := url.Values{"limit": {strconv.Itoa(cfg.LeaderLimit)}}
	if err := client.getJSON(ctx, "/leaderboard", query, &board); err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardRows = len(board.Rows)

	// Step 5: Save actions before verifying so failures can be replayed
	if cfg.OutputFile != "" {
		if err := saveActionsToFile(ctx, cfg.OutputFile, actions); err != nil {
			log.Warn(ctx, "failed to save actions to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	// Step 6: Verify results
	snap := Snapshot{
		BaselineTotal: baseline.Total,
		FinalTotal:    final.Total,
		UserTotals:    userTotals,
		Leaderboard:   board.Rows,
	}
	if err := verify(ctx, applied, stats.AmountApplied, snap, cfg.CheckGlobal); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	log.Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service and its store answer.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := client.getJSON(ctx, "/healthz", nil, &health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return fmt.Errorf("service reports status %q", health.Status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

func readStats(ctx context.Context, client *HTTPClient, user string) (statsResponse, error) {
	var st statsResponse
	err := client.getJSON(ctx, "/stats", url.Values{"userId": {user}}, &st)
	return st, err
}

// readUserTotals fetches GET /stats for every user with at most cfg.Workers
// requests in flight.
func readUserTotals(ctx context.Context, cfg *Config, client *HTTPClient, users []string) (map[string]int64, error) {
	var mu sync.Mutex
	totals := make(map[string]int64, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, u := range users {
		g.Go(func() error {
			st, err := readStats(gctx, client, u)
			if err != nil {
				return fmt.Errorf("stats for %s: %w", u, err)
			}
			mu.Lock()
			totals[u] = st.UserTotal
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}

// saveActionsToFile writes the generated actions as a JSON array.
func saveActionsToFile(ctx context.Context, filename string, actions []Action) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	type savedAction struct {
		Action
		User           string `json:"user"`
		IdempotencyKey string `json:"idempotencyKey"`
	}
	out := make([]savedAction, len(actions))
	for i, a := range actions {
		out[i] = savedAction{Action: a, User: a.User, IdempotencyKey: a.IdempotencyKey}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "actions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, actionsPerSecond float64

	if stats.ActionsSubmitted > 0 {
		successRate = float64(stats.ActionsApplied+stats.ActionsReplayed) / float64(stats.ActionsSubmitted) * percentMultiplier
	}
	if stats.Duration > 0 {
		actionsPerSecond = float64(stats.ActionsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("actionsGenerated", stats.ActionsGenerated),
		logger.Int("actionsSubmitted", stats.ActionsSubmitted),
		logger.Int("actionsApplied", stats.ActionsApplied),
		logger.Int("actionsReplayed", stats.ActionsReplayed),
		logger.Int("actionsFailed", stats.ActionsFailed),
		logger.Int64("amountApplied", stats.AmountApplied),
		logger.Int("usersChecked", stats.UsersChecked),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("actionsPerSecond", actionsPerSecond))
}
