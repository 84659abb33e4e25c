package strategy

import (
	"fmt"
	"math/rand"
)

const defaultTrendLookback = 5

// TrendFollower chases momentum over a lookback window: a rising
// window buys a tenth of free cash, a falling one halves the holding.
type TrendFollower struct {
	lookback int
}

// NewTrendFollower builds a trend follower, defaulting the lookback
// when the supplied value is non-positive.
func NewTrendFollower(lookback int) *TrendFollower {
	if lookback <= 0 {
		lookback = defaultTrendLookback
	}
	return &TrendFollower{lookback: lookback}
}

// Name returns the identifier used in logs and leaderboards.
func (t *TrendFollower) Name() string { return "TrendFollower" }

func (t *TrendFollower) String() string {
	return fmt.Sprintf("TrendFollower(lookback=%d)", t.lookback)
}

// Lookback exposes the window size, mostly for tests and listings.
func (t *TrendFollower) Lookback() int { return t.lookback }

// Decide holds until the history covers the window plus the listing
// price, then compares the ends of the window.
func (t *TrendFollower) Decide(obs Observation) Decision {
	sec, acct := obs.Security, obs.Account
	if len(sec.History) < t.lookback+1 {
		return Decision{Action: Hold}
	}

	window := sec.Tail(t.lookback)
	first, last := window[0], window[len(window)-1]
	switch {
	case last > first:
		shares := int64(acct.Cash() / sec.Price * 0.1)
		return Decision{Action: Buy, Shares: shares}
	case last < first:
		return Decision{Action: Sell, Shares: acct.Position(sec.Symbol) / 2}
	default:
		return Decision{Action: Hold}
	}
}

// Mutate jitters the lookback by one step, floored at 1.
func (t *TrendFollower) Mutate(rng *rand.Rand) Strategy {
	lookback := t.lookback + rng.Intn(3) - 1
	if lookback < 1 {
		lookback = 1
	}
	return NewTrendFollower(lookback)
}
