package loadgen

import (
	"errors"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumActions  int           // Number of increment actions to submit
	NumUsers    int           // Number of distinct users the actions are spread over
	MaxAmount   int           // Amounts are drawn from 1..MaxAmount
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	Retries     int           // Retries per action on transport errors, same Idempotency-Key
	LeaderLimit int           // Leaderboard rows to fetch for verification
	CheckGlobal bool          // Verify the global counter delta; requires exclusive use of the service
	Seed        uint64        // Seed for amounts and spellings; 0 picks a random seed
	OutputFile  string        // Optional JSON file receiving the generated actions
	Verbose     bool          // Enable verbose logging
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url must not be empty")
	case c.NumActions < 1:
		return errors.New("actions must be positive")
	case c.NumUsers < 1:
		return errors.New("users must be positive")
	case c.MaxAmount < 1:
		return errors.New("max amount must be positive")
	case c.Workers < 1:
		return errors.New("workers must be positive")
	case c.LeaderLimit < 1:
		return errors.New("leaderboard limit must be positive")
	case c.Retries < 0:
		return errors.New("retries must not be negative")
	}
	return nil
}

// Action is one POST /incr request. UserID carries the spelling sent on the
// wire; User is the normalized id the service is expected to count under.
type Action struct {
	User           string `json:"-"`
	UserID         string `json:"userId"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"-"`
}

// Entry represents a leaderboard row.
type Entry struct {
	UserID string `json:"userId"`
	Score  int64  `json:"score"`
}

// leaderboardResponse mirrors GET /leaderboard.
type leaderboardResponse struct {
	Rows []Entry `json:"rows"`
}

// statsResponse mirrors GET /stats.
type statsResponse struct {
	Total     int64 `json:"total"`
	UserTotal int64 `json:"userTotal"`
}

// Stats holds run statistics.
type Stats struct {
	ActionsGenerated int
	ActionsSubmitted int
	ActionsApplied   int
	ActionsReplayed  int
	ActionsFailed    int
	AmountApplied    int64
	UsersChecked     int
	LeaderboardRows  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
