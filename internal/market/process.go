package market

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// ProcessWalk is the gaussian random walk every live run uses.
	ProcessWalk = "walk"
	// ProcessReplay steps through pre-recorded series (tests, demos).
	ProcessReplay = "replay"
)

const (
	defaultSigma    = 0.02
	defaultMinPrice = 0.01
)

// Process advances every listing on a board by one step.
type Process interface {
	Advance(b *Board, rng *rand.Rand)
	Name() string
}

// Walk moves each price by N(0, sigma) of itself, floored at MinPrice.
type Walk struct {
	Sigma    float64
	MinPrice float64
}

// NewWalk builds a walk process, substituting defaults for
// non-positive parameters.
func NewWalk(sigma, minPrice float64) *Walk {
	if sigma <= 0 {
		sigma = defaultSigma
	}
	if minPrice <= 0 {
		minPrice = defaultMinPrice
	}
	return &Walk{Sigma: sigma, MinPrice: minPrice}
}

func (w *Walk) Name() string { return ProcessWalk }

func (w *Walk) Advance(b *Board, rng *rand.Rand) {
	for _, sec := range b.Securities() {
		delta := rng.NormFloat64() * w.Sigma * sec.Price
		price := sec.Price + delta
		if price < w.MinPrice {
			price = w.MinPrice
		}
		sec.record(price)
	}
}

// Replay feeds recorded prices back to the board. A symbol that runs
// out of data holds its last price.
type Replay struct {
	series map[string][]float64
	cursor map[string]int
}

// NewReplay builds a replay process over recorded series keyed by symbol.
func NewReplay(series map[string][]float64) *Replay {
	return &Replay{series: series, cursor: make(map[string]int, len(series))}
}

func (r *Replay) Name() string { return ProcessReplay }

func (r *Replay) Advance(b *Board, _ *rand.Rand) {
	for _, sec := range b.Securities() {
		recorded, ok := r.series[sec.Symbol]
		if !ok || r.cursor[sec.Symbol] >= len(recorded) {
			sec.record(sec.Price)
			continue
		}
		sec.record(recorded[r.cursor[sec.Symbol]])
		r.cursor[sec.Symbol]++
	}
}

// LoadReplay reads a JSON file mapping symbol to price series.
func LoadReplay(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	series := make(map[string][]float64)
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("replay file %s holds no series", path)
	}
	return series, nil
}

// NewProcess constructs the requested price process. Unknown names fall
// back to the walk so a typo never kills a run.
func NewProcess(name string, sigma, minPrice float64, replayPath string, log zerolog.Logger) (Process, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProcessReplay:
		series, err := LoadReplay(replayPath)
		if err != nil {
			return nil, err
		}
		return NewReplay(series), nil
	case ProcessWalk, "":
		return NewWalk(sigma, minPrice), nil
	default:
		log.Warn().Str("process", name).Msg("unknown price process, using walk")
		return NewWalk(sigma, minPrice), nil
	}
}
