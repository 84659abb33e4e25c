// Package market models the security board and the price processes that drive it.
package market

import (
	"fmt"
	"strings"
)

// Security is one tradable listing. History is append-only and starts
// with the listing price, so len(History) is always at least one.
type Security struct {
	Symbol            string
	Name              string
	SharesOutstanding int64
	Price             float64
	History           []float64
}

// NewSecurity lists a security at the given price.
func NewSecurity(symbol, name string, price float64, sharesOutstanding int64) *Security {
	return &Security{
		Symbol:            symbol,
		Name:              name,
		SharesOutstanding: sharesOutstanding,
		Price:             price,
		History:           []float64{price},
	}
}

// MarketCap is price times shares outstanding.
func (s *Security) MarketCap() float64 {
	return s.Price * float64(s.SharesOutstanding)
}

// Tail returns a copy of the last n recorded prices, or all of them
// when fewer have been recorded.
func (s *Security) Tail(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	out := make([]float64, n)
	copy(out, s.History[len(s.History)-n:])
	return out
}

func (s *Security) record(price float64) {
	s.Price = price
	s.History = append(s.History, price)
}

// Quote is the read-only shape shared between the engine, the dashboard
// and the stores.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
}

// Board is the ordered set of securities in play. Iteration order is
// the listing order, which keeps runs deterministic.
type Board struct {
	secs  []*Security
	index map[string]*Security
}

// NewBoard assembles a board from listed securities.
func NewBoard(secs ...*Security) (*Board, error) {
	if len(secs) == 0 {
		return nil, fmt.Errorf("empty board")
	}
	b := &Board{index: make(map[string]*Security, len(secs))}
	for _, sec := range secs {
		sym := strings.TrimSpace(sec.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("security %q missing symbol", sec.Name)
		}
		if _, dup := b.index[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", sym)
		}
		b.secs = append(b.secs, sec)
		b.index[sym] = sec
	}
	return b, nil
}

// Securities returns the listings in board order.
func (b *Board) Securities() []*Security {
	return b.secs
}

// Lookup finds a listing by symbol.
func (b *Board) Lookup(symbol string) (*Security, bool) {
	sec, ok := b.index[symbol]
	return sec, ok
}

// Marks snapshots current prices by symbol, for equity valuation.
func (b *Board) Marks() map[string]float64 {
	marks := make(map[string]float64, len(b.secs))
	for _, sec := range b.secs {
		marks[sec.Symbol] = sec.Price
	}
	return marks
}

// Quotes snapshots the board for transport.
func (b *Board) Quotes() []Quote {
	quotes := make([]Quote, 0, len(b.secs))
	for _, sec := range b.secs {
		quotes = append(quotes, Quote{
			Symbol:    sec.Symbol,
			Name:      sec.Name,
			Price:     sec.Price,
			MarketCap: sec.MarketCap(),
		})
	}
	return quotes
}
