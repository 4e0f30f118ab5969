package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/bananas/pkg/logger"
)

// maxReportedMismatches bounds the errors collected per check.
const maxReportedMismatches = 10

// Snapshot is what the service reported once all actions settled.
type Snapshot struct {
	BaselineTotal int64            // global total before the run
	FinalTotal    int64            // global total after the run
	UserTotals    map[string]int64 // GET /stats userTotal per normalized user
	Leaderboard   []Entry          // GET /leaderboard rows
}

// verify checks the service state against what the run applied:
//   - every user total equals the sum of its applied amounts,
//   - leaderboard scores equal user totals and user ids are normalized,
//   - leaderboard rows are ordered by score descending,
//   - with checkGlobal, the global delta equals the applied amount.
func verify(ctx context.Context, applied map[string]int64, amount int64, snap Snapshot, checkGlobal bool) error {
	var errs []error
	add := func(count *int, err error) {
		if *count < maxReportedMismatches {
			errs = append(errs, err)
		}
		*count++
	}

	users := make([]string, 0, len(applied))
	for u := range applied {
		users = append(users, u)
	}
	sort.Strings(users)

	var userMismatches int
	for _, u := range users {
		got, ok := snap.UserTotals[u]
		if !ok {
			add(&userMismatches, fmt.Errorf("user %s: total not read", u))
			continue
		}
		if got != applied[u] {
			add(&userMismatches, fmt.Errorf("user %s: total %d, applied %d", u, got, applied[u]))
		}
	}

	var boardMismatches int
	seen := make(map[string]bool, len(snap.Leaderboard))
	for i, row := range snap.Leaderboard {
		if row.UserID != strings.ToLower(strings.TrimSpace(row.UserID)) {
			add(&boardMismatches, fmt.Errorf("leaderboard row %d: user id %q is not normalized", i, row.UserID))
		}
		if seen[row.UserID] {
			add(&boardMismatches, fmt.Errorf("leaderboard row %d: user %s listed twice", i, row.UserID))
		}
		seen[row.UserID] = true

		if i > 0 && row.Score > snap.Leaderboard[i-1].Score {
			add(&boardMismatches, fmt.Errorf("leaderboard row %d: score %d above previous %d", i, row.Score, snap.Leaderboard[i-1].Score))
		}
		if total, ok := snap.UserTotals[row.UserID]; ok && total != row.Score {
			add(&boardMismatches, fmt.Errorf("leaderboard user %s: score %d, user total %d", row.UserID, row.Score, total))
		}
	}

	if checkGlobal {
		if delta := snap.FinalTotal - snap.BaselineTotal; delta != amount {
			errs = append(errs, fmt.Errorf("global total grew by %d, applied %d", delta, amount))
		}
	}

	if userMismatches > maxReportedMismatches || boardMismatches > maxReportedMismatches {
		errs = append(errs, fmt.Errorf("%d user and %d leaderboard mismatches in total", userMismatches, boardMismatches))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Get().Info(ctx, "verification passed",
		logger.Int("users", len(users)),
		logger.Int("leaderboardRows", len(snap.Leaderboard)),
		logger.Bool("globalChecked", checkGlobal))
	return nil
}
