package strategy

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	defaultLearningRate = 0.1
	defaultDiscount     = 0.95
	defaultExploration  = 0.1
	defaultRLLookback   = 5
)

const (
	actionBuy = iota
	actionSell
	actionHold
	actionCount
)

// qState discretizes what a learner can react to: the momentum sign
// over its lookback window and whether it already holds the security.
// Six states per symbol keeps the table small enough to revisit, which
// is what lets the values converge at all.
type qState struct {
	Symbol  string
	Trend   int // -1 falling, 0 flat, +1 rising
	Holding bool
}

type pendingDecision struct {
	state  qState
	action int
	equity float64
}

// QLearner is a tabular epsilon-greedy learner. It goes all in on
// buys and dumps the whole holding on sells; the reward for a decision
// is the equity change observed by the time the next decision on the
// same security comes around.
type QLearner struct {
	learningRate float64
	discount     float64
	exploration  float64
	lookback     int

	rng   *rand.Rand
	table map[qState][actionCount]float64
	last  map[string]pendingDecision
}

// NewQLearner builds a learner, defaulting non-positive parameters.
// A nil rng gets a clock-seeded one; callers wanting reproducibility
// supply their own.
func NewQLearner(learningRate, discount, exploration float64, lookback int, rng *rand.Rand) *QLearner {
	if learningRate <= 0 {
		learningRate = defaultLearningRate
	}
	if discount <= 0 {
		discount = defaultDiscount
	}
	if exploration <= 0 {
		exploration = defaultExploration
	}
	if lookback <= 0 {
		lookback = defaultRLLookback
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &QLearner{
		learningRate: learningRate,
		discount:     discount,
		exploration:  exploration,
		lookback:     lookback,
		rng:          rng,
		table:        make(map[qState][actionCount]float64),
		last:         make(map[string]pendingDecision),
	}
}

// Name returns the identifier used in logs and leaderboards.
func (q *QLearner) Name() string { return "QLearner" }

func (q *QLearner) String() string {
	return fmt.Sprintf("QLearner(lr=%.2f,discount=%.2f,eps=%.2f,lookback=%d)",
		q.learningRate, q.discount, q.exploration, q.lookback)
}

// States reports how many distinct states the table has visited.
func (q *QLearner) States() int { return len(q.table) }

// LearningRate exposes the step size knob.
func (q *QLearner) LearningRate() float64 { return q.learningRate }

// Discount exposes the future-reward weight.
func (q *QLearner) Discount() float64 { return q.discount }

// Exploration exposes the epsilon knob.
func (q *QLearner) Exploration() float64 { return q.exploration }

// Lookback exposes the momentum window size.
func (q *QLearner) Lookback() int { return q.lookback }

// Decide settles the previous decision on this security against the
// equity change since, then picks the next action epsilon-greedily.
func (q *QLearner) Decide(obs Observation) Decision {
	sec, acct := obs.Security, obs.Account
	state := qState{
		Symbol:  sec.Symbol,
		Trend:   windowTrend(sec.Tail(q.lookback)),
		Holding: acct.Position(sec.Symbol) > 0,
	}

	if prev, ok := q.last[sec.Symbol]; ok {
		reward := obs.Equity - prev.equity
		cell := q.table[prev.state]
		best := maxValue(q.table[state])
		cell[prev.action] += q.learningRate * (reward + q.discount*best - cell[prev.action])
		q.table[prev.state] = cell
	}

	var action int
	if q.rng.Float64() < q.exploration {
		action = q.rng.Intn(actionCount)
	} else {
		action = argmax(q.table[state])
	}
	q.last[sec.Symbol] = pendingDecision{state: state, action: action, equity: obs.Equity}

	switch action {
	case actionBuy:
		return Decision{Action: Buy, Shares: int64(acct.Cash() / sec.Price)}
	case actionSell:
		return Decision{Action: Sell, Shares: acct.Position(sec.Symbol)}
	default:
		return Decision{Action: Hold}
	}
}

// Mutate jitters every hyperparameter by one notch within its bounds
// and starts the child with an empty table.
func (q *QLearner) Mutate(rng *rand.Rand) Strategy {
	learningRate := math.Max(0.01, q.learningRate+notch(rng))
	discount := clamp(q.discount+notch(rng), 0.8, 1.0)
	exploration := clamp(q.exploration+notch(rng), 0.01, 1.0)
	lookback := q.lookback + rng.Intn(3) - 1
	if lookback < 1 {
		lookback = 1
	}
	return NewQLearner(learningRate, discount, exploration, lookback, rng)
}

func notch(rng *rand.Rand) float64 {
	return float64(rng.Intn(3)-1) * 0.01
}

func windowTrend(window []float64) int {
	if len(window) < 2 {
		return 0
	}
	first, last := window[0], window[len(window)-1]
	switch {
	case last > first:
		return 1
	case last < first:
		return -1
	default:
		return 0
	}
}

func maxValue(cell [actionCount]float64) float64 {
	best := cell[0]
	for _, v := range cell[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// argmax breaks ties toward the lowest index, so equal values resolve
// in buy, sell, hold order deterministically.
func argmax(cell [actionCount]float64) int {
	best := 0
	for i := 1; i < actionCount; i++ {
		if cell[i] > cell[best] {
			best = i
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
