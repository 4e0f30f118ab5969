package loadgen

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/bananas/pkg/logger"
)

// spelling variants applied to user ids so the service's normalization is
// exercised on every run.
const (
	spellAsIs = iota
	spellUpper
	spellPadded
	spellTitle
	spellCount
)

// generateUsers returns n distinct normalized user ids.
func generateUsers(n int) []string {
	users := make([]string, n)
	for i := range users {
		users[i] = "eater-" + uuid.NewString()[:13]
	}
	return users
}

// generateActions spreads cfg.NumActions increments over users.
func generateActions(ctx context.Context, cfg *Config, users []string, rng *rand.Rand) []Action {
	actions := make([]Action, cfg.NumActions)
	touched := make(map[string]struct{}, len(users))

	for i := range actions {
		user := users[rng.IntN(len(users))]
		amount := int64(rng.IntN(cfg.MaxAmount) + 1)
		actions[i] = Action{
			User:           user,
			UserID:         respell(user, rng.IntN(spellCount)),
			Amount:         amount,
			IdempotencyKey: uuid.NewString(),
		}
		touched[user] = struct{}{}
	}

	logger.Get().Info(ctx, "generated actions",
		logger.Int("actions", len(actions)),
		logger.Int("users", len(touched)))
	return actions
}

// respell returns a spelling of id that normalizes back to id.
func respell(id string, variant int) string {
	switch variant {
	case spellUpper:
		return strings.ToUpper(id)
	case spellPadded:
		return "  " + id + "\t"
	case spellTitle:
		return strings.ToUpper(id[:1]) + id[1:] + " "
	default:
		return id
	}
}
