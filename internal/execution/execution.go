// Package execution applies investor orders against accounts at board prices.
package execution

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/MelonMars/ABMMarket/internal/metrics"
	"github.com/MelonMars/ABMMarket/internal/risk"
)

// ErrRiskLimit marks orders blocked by the notional cap.
var ErrRiskLimit = errors.New("order exceeds risk limit")

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a reduction of an existing holding.
	Sell Side = "SELL"
)

// Order represents a placement request produced by a strategy decision.
type Order struct {
	Investor int
	Symbol   string
	Side     Side
	Shares   int64
}

// Fill records a settled order.
type Fill struct {
	Step     int       `json:"step"`
	Investor int       `json:"investor"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Shares   int64     `json:"shares"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	Ts       time.Time `json:"ts"`
}

// Account is the balance sheet an order settles against.
type Account interface {
	MarketFill(symbol string, side Side, shares int64, price float64) error
}

// Recorder captures fills for later inspection.
type Recorder interface {
	Record(Fill)
}

// Executor settles orders instantly at the prevailing price. There is
// no book and no counterparty; an investor order only fails when the
// account cannot honor it or a risk limit blocks it. Rejections are
// part of normal stepping, not faults.
type Executor struct {
	log    zerolog.Logger
	limits risk.Limits
	recs   []Recorder
}

// NewExecutor builds an executor with optional fill recorders.
func NewExecutor(log zerolog.Logger, limits risk.Limits, recs ...Recorder) *Executor {
	return &Executor{log: log, limits: limits, recs: recs}
}

// Apply settles one order for the given account at price. The returned
// error describes why a rejected order did not settle.
func (e *Executor) Apply(step int, order Order, price float64, acct Account) (Fill, error) {
	notional := float64(order.Shares) * price
	if !e.limits.Allow(notional) {
		metrics.OrdersRejected.WithLabelValues(order.Symbol, "risk").Inc()
		e.log.Debug().Int("investor", order.Investor).Str("sym", order.Symbol).Float64("notional", notional).Msg("order blocked by risk limit")
		return Fill{}, ErrRiskLimit
	}
	if err := acct.MarketFill(order.Symbol, order.Side, order.Shares, price); err != nil {
		metrics.OrdersRejected.WithLabelValues(order.Symbol, "account").Inc()
		e.log.Debug().Int("investor", order.Investor).Str("sym", order.Symbol).Str("side", string(order.Side)).Int64("shares", order.Shares).Err(err).Msg("order rejected")
		return Fill{}, err
	}

	fill := Fill{
		Step:     step,
		Investor: order.Investor,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Shares:   order.Shares,
		Price:    price,
		Notional: notional,
		Ts:       time.Now().UTC(),
	}
	metrics.TradesTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	e.log.Debug().Int("investor", order.Investor).Str("sym", order.Symbol).Str("side", string(order.Side)).Int64("shares", order.Shares).Float64("px", price).Msg("order filled")
	for _, rec := range e.recs {
		rec.Record(fill)
	}
	return fill, nil
}
