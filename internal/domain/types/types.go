// Package types contains common types used across the application
package types

// Entry represents a leaderboard row.
type Entry struct {
	UserID string `json:"userId"`
	Score  int64  `json:"score"`
}

// IncrementResult carries the post-increment values the store returned for
// the global counter, the user counter and the user's leaderboard entry.
type IncrementResult struct {
	Total     int64 `json:"total"`
	UserTotal int64 `json:"userTotal"`
	NewScore  int64 `json:"newScore"`
}

// Stats is the pair of tallies shown to a single user.
type Stats struct {
	Total     int64 `json:"total"`
	UserTotal int64 `json:"userTotal"`
}
