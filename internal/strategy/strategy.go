// Package strategy contains the trading heuristics investors run each step.
package strategy

import (
	"math/rand"
	"strings"

	"github.com/MelonMars/ABMMarket/internal/market"
	"github.com/MelonMars/ABMMarket/internal/portfolio"
)

// Action enumerates what a strategy wants to do with one security.
type Action string

const (
	// Buy opens or adds to a holding.
	Buy Action = "buy"
	// Sell reduces a holding.
	Sell Action = "sell"
	// Hold does nothing this step.
	Hold Action = "hold"
)

// Decision pairs an action with a share count. Shares only matters for
// buys and sells; a non-positive count means no order goes out.
type Decision struct {
	Action Action
	Shares int64
}

// Observation is the standardized payload a strategy decides from.
// Equity is the account marked at current prices across the whole board.
type Observation struct {
	Security *market.Security
	Account  *portfolio.Account
	Equity   float64
}

// Strategy defines behaviour shared by the investor heuristics.
type Strategy interface {
	Decide(obs Observation) Decision
	// Mutate derives a child with jittered parameters and fresh
	// learned state.
	Mutate(rng *rand.Rand) Strategy
	Name() string
	String() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	TrendLookback int
	LearningRate  float64
	Discount      float64
	Exploration   float64
	RLLookback    int
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params, rng *rand.Rand) Strategy {
	switch normalize(mode) {
	case "q", "rl", "qlearn", "qlearner":
		return NewQLearner(params.LearningRate, params.Discount, params.Exploration, params.RLLookback, rng)
	case "", "trend", "trend_follow", "trend_follower":
		return NewTrendFollower(params.TrendLookback)
	default:
		return NewTrendFollower(params.TrendLookback)
	}
}

// Random seeds a fresh investor the way the market starts them: trend
// followers draw their lookback uniformly from [3,7], q-learners take
// the configured parameters. The mode is picked uniformly from modes.
func Random(modes []string, params Params, rng *rand.Rand) Strategy {
	mode := "trend"
	if len(modes) > 0 {
		mode = modes[rng.Intn(len(modes))]
	}
	switch normalize(mode) {
	case "q", "rl", "qlearn", "qlearner":
		return NewQLearner(params.LearningRate, params.Discount, params.Exploration, params.RLLookback, rng)
	default:
		return NewTrendFollower(3 + rng.Intn(5))
	}
}

func normalize(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}
