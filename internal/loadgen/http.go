package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/bananas/pkg/logger"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	progressInterval     = time.Second
	retryBackoff         = 50 * time.Millisecond
)

// submit outcomes.
const (
	outcomeApplied = iota
	outcomeReplayed
	outcomeFailed
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// getJSON performs a GET request and decodes a 200 response into out.
func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// postIncr submits one action. It reports whether the service replayed a
// previous result for the action's key.
func (c *HTTPClient) postIncr(ctx context.Context, a Action) (bool, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/incr", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyKeyHeader, a.IdempotencyKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("POST /incr: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	replayed, _ := strconv.ParseBool(resp.Header.Get(replayedHeader))
	return replayed, nil
}

// submitSingleAction posts an action, retrying transport failures and
// in-flight conflicts with the same idempotency key.
func submitSingleAction(ctx context.Context, client *HTTPClient, a Action, retries int) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return outcomeFailed, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		replayed, err := client.postIncr(ctx, a)
		if err == nil {
			if replayed {
				return outcomeReplayed, nil
			}
			return outcomeApplied, nil
		}
		lastErr = err
	}
	return outcomeFailed, lastErr
}

// submitActions submits actions concurrently using a worker pool. It returns
// the amount applied per normalized user.
func submitActions(ctx context.Context, cfg *Config, client *HTTPClient, actions []Action, stats *Stats) map[string]int64 {
	log := logger.Get()
	log.Info(ctx, "submitting actions", logger.Int("actions", len(actions)), logger.Int("workers", cfg.Workers))

	var (
		submitted int64
		applied   int64
		replayed  int64
		failed    int64
		amount    int64

		mu         sync.Mutex
		perUser    = make(map[string]int64)
		lastReport atomic.Int64
	)
	lastReport.Store(time.Now().UnixNano())

	actionChan := make(chan Action, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for a := range actionChan {
				outcome, err := submitSingleAction(ctx, client, a, cfg.Retries)

				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeApplied, outcomeReplayed:
					if outcome == outcomeApplied {
						atomic.AddInt64(&applied, 1)
					} else {
						atomic.AddInt64(&replayed, 1)
					}
					// A replay means an earlier attempt of this key was applied.
					atomic.AddInt64(&amount, a.Amount)
					mu.Lock()
					perUser[a.User] += a.Amount
					mu.Unlock()
				default:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "action failed", logger.String("userId", a.UserID), logger.Error(err))
					}
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if time.Duration(now-last) >= progressInterval && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int64("submitted", atomic.LoadInt64(&submitted)),
						logger.Int("total", len(actions)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	// Send actions to workers
	go func() {
		defer close(actionChan)
		for _, a := range actions {
			select {
			case <-ctx.Done():
				return
			case actionChan <- a:
			}
		}
	}()

	wg.Wait()

	stats.ActionsSubmitted = int(submitted)
	stats.ActionsApplied = int(applied)
	stats.ActionsReplayed = int(replayed)
	stats.ActionsFailed = int(failed)
	stats.AmountApplied = amount

	log.Info(ctx, "action submission completed",
		logger.Int("applied", stats.ActionsApplied),
		logger.Int("replayed", stats.ActionsReplayed),
		logger.Int("failed", stats.ActionsFailed))
	return perUser
}
