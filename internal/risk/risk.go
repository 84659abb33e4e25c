// Package risk bounds how much notional a single order may move.
package risk

// Limits caps per-order notional. The zero value allows everything,
// which is what the stock configuration runs with.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether an order of the given notional fits the limits.
func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}
