// Package portfolio tracks investor cash, holdings, and realized PnL.
package portfolio

import (
	"errors"
	"sync"

	"github.com/MelonMars/ABMMarket/internal/execution"
)

const epsilon = 1e-9

type positionState struct {
	Shares  int64
	AvgCost float64
}

// Account is one investor's balance sheet. Shares trade in whole lots;
// cash and PnL are floats guarded by an epsilon on comparisons.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	positions    map[string]positionState
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Shares      int64   `json:"shares"`
	AvgCost     float64 `json:"avg_cost"`
	MarketValue float64 `json:"market_value"`
	Unrealized  float64 `json:"unrealized"`
}

// Snapshot is a point-in-time copy of the account marked to the
// supplied prices.
type Snapshot struct {
	Cash        float64                     `json:"cash"`
	RealizedPnL float64                     `json:"realized_pnl"`
	Equity      float64                     `json:"equity"`
	Positions   map[string]PositionSnapshot `json:"positions"`
}

// NewAccount constructs an account holding only starting cash.
func NewAccount(startingCash float64) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]positionState),
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill settles an order at the provided price, mutating balances
// if the account can honor it. Positions that reach zero are removed.
func (a *Account) MarketFill(symbol string, side execution.Side, shares int64, price float64) error {
	if shares <= 0 {
		return errors.New("share count must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	notional := float64(shares) * price

	switch side {
	case execution.Buy:
		if notional > a.cash+epsilon {
			return errors.New("insufficient cash for buy")
		}
		newShares := state.Shares + shares
		newAvg := ((state.AvgCost * float64(state.Shares)) + notional) / float64(newShares)
		a.cash -= notional
		a.positions[symbol] = positionState{Shares: newShares, AvgCost: newAvg}

	case execution.Sell:
		if state.Shares < shares {
			return errors.New("insufficient shares to sell")
		}
		a.realizedPnL += (price - state.AvgCost) * float64(shares)
		a.cash += notional
		if remaining := state.Shares - shares; remaining == 0 {
			delete(a.positions, symbol)
		} else {
			a.positions[symbol] = positionState{Shares: remaining, AvgCost: state.AvgCost}
		}

	default:
		return errors.New("unknown order side")
	}
	return nil
}

// Equity values the account at the supplied marks: cash plus the sum
// of shares times mark. Symbols without a mark contribute nothing.
func (a *Account) Equity(marks map[string]float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	equity := a.cash
	for sym, pos := range a.positions {
		equity += float64(pos.Shares) * marks[sym]
	}
	return equity
}

// Snapshot returns a copy of balances marked using the supplied prices.
func (a *Account) Snapshot(marks map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		mark := marks[sym]
		marketValue := float64(pos.Shares) * mark
		unrealized := (mark - pos.AvgCost) * float64(pos.Shares)
		if mark == 0 {
			marketValue = 0
			unrealized = 0
		}
		positions[sym] = PositionSnapshot{
			Shares:      pos.Shares,
			AvgCost:     pos.AvgCost,
			MarketValue: marketValue,
			Unrealized:  unrealized,
		}
		equity += marketValue
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Positions:   positions,
	}
}

// Cash reports free cash that can be deployed into new buys.
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the share count held for the supplied symbol.
func (a *Account) Position(symbol string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Shares
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
