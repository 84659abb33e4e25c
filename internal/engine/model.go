// Package engine runs the market model: a board of securities, a
// population of investor agents stepping in random order, and the
// periodic evolution pass that breeds the winners.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MelonMars/ABMMarket/internal/config"
	"github.com/MelonMars/ABMMarket/internal/execution"
	"github.com/MelonMars/ABMMarket/internal/grid"
	"github.com/MelonMars/ABMMarket/internal/market"
	"github.com/MelonMars/ABMMarket/internal/metrics"
	"github.com/MelonMars/ABMMarket/internal/portfolio"
	"github.com/MelonMars/ABMMarket/internal/risk"
	"github.com/MelonMars/ABMMarket/internal/strategy"
	"github.com/MelonMars/ABMMarket/internal/util"
)

// TotalEquitySeries names the population-wide equity model series.
const TotalEquitySeries = "total equity"

// CapSeries names the market-cap model series for one symbol.
func CapSeries(symbol string) string {
	return fmt.Sprintf("%s market cap", symbol)
}

// Investor is one agent: a strategy, a bankroll, and a spot on the grid.
type Investor struct {
	ID       int
	Strategy strategy.Strategy
	Account  *portfolio.Account
	Cell     grid.Cell
}

// Portrayal is the per-agent shape the dashboard draws.
type Portrayal struct {
	ID       int     `json:"id"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Strategy string  `json:"strategy"`
	Cash     float64 `json:"cash"`
	Equity   float64 `json:"equity"`
}

// State is one rendered frame of the model, safe to serialize.
type State struct {
	Step        int                  `json:"step"`
	Generation  int                  `json:"generation"`
	Seed        int64                `json:"seed"`
	TotalEquity float64              `json:"total_equity"`
	Securities  []market.Quote       `json:"securities"`
	Agents      []Portrayal          `json:"agents"`
	Series      map[string][]float64 `json:"series"`
}

// LeaderboardEntry ranks one investor by final equity.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	Investor int     `json:"investor"`
	Strategy string  `json:"strategy"`
	Equity   float64 `json:"equity"`
}

// stateTail bounds how much series history rides along in each State.
const stateTail = 60

// Model owns the whole simulation. All mutation happens under one
// mutex, so the dashboard and a stepping loop can share it; stepping
// itself is single-threaded, agents activate one at a time.
type Model struct {
	mu sync.Mutex

	cfg *config.Config
	log zerolog.Logger

	seed int64
	rng  *rand.Rand

	board     *market.Board
	process   market.Process
	grid      *grid.Grid
	exec      *execution.Executor
	collector *Collector

	investors  []*Investor
	nextID     int
	step       int
	generation int
}

// New builds a model from config. A zero seed draws one from the
// clock; the drawn value is kept so a run can be replayed later.
// Recorders receive every fill the executor produces.
func New(cfg *config.Config, log zerolog.Logger, recorders ...execution.Recorder) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	secs := make([]*market.Security, 0, len(cfg.Market.Securities))
	for _, sc := range cfg.Market.Securities {
		secs = append(secs, market.NewSecurity(sc.Symbol, sc.Name, sc.Price, sc.SharesOutstanding))
	}
	board, err := market.NewBoard(secs...)
	if err != nil {
		return nil, fmt.Errorf("build board: %w", err)
	}

	process, err := market.NewProcess(cfg.Market.Process, cfg.Market.Sigma, cfg.Market.MinPrice, cfg.Market.ReplayPath, log)
	if err != nil {
		return nil, fmt.Errorf("build price process: %w", err)
	}

	g, err := grid.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}

	names := make([]string, 0, len(secs)+1)
	for _, sec := range secs {
		names = append(names, CapSeries(sec.Symbol))
	}
	names = append(names, TotalEquitySeries)

	m := &Model{
		cfg:       cfg,
		log:       util.Component(log, "engine"),
		seed:      seed,
		rng:       rand.New(rand.NewSource(seed)),
		board:     board,
		process:   process,
		grid:      g,
		exec:      execution.NewExecutor(util.Component(log, "exec"), risk.Limits{MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade}, recorders...),
		collector: NewCollector(names),
	}

	params := strategyParams(cfg)
	for i := 0; i < cfg.Sim.Investors; i++ {
		m.spawn(strategy.Random(cfg.Strategy.Modes, params, m.rng))
	}
	metrics.Investors.Set(float64(len(m.investors)))

	m.log.Info().Int64("seed", seed).Int("investors", len(m.investors)).
		Int("securities", len(secs)).Str("process", process.Name()).Msg("model built")
	return m, nil
}

func strategyParams(cfg *config.Config) strategy.Params {
	p := cfg.Strategy.Params
	return strategy.Params{
		TrendLookback: p.TrendLookback,
		LearningRate:  p.LearningRate,
		Discount:      p.Discount,
		Exploration:   p.Exploration,
		RLLookback:    p.RLLookback,
	}
}

// spawn places a fresh investor with starting cash on a random cell.
func (m *Model) spawn(strat strategy.Strategy) *Investor {
	inv := &Investor{
		ID:       m.nextID,
		Strategy: strat,
		Account:  portfolio.NewAccount(m.cfg.Sim.StartingCash),
	}
	m.nextID++
	cell := m.grid.RandomCell(m.rng)
	inv.Cell = m.grid.Place(inv.ID, cell.X, cell.Y)
	m.investors = append(m.investors, inv)
	return inv
}

// Seed reports the seed the model actually runs with.
func (m *Model) Seed() int64 { return m.seed }

// StepCount reports how many steps have run.
func (m *Model) StepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Generation reports how many evolution passes have run.
func (m *Model) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// InvestorCount reports the live population size.
func (m *Model) InvestorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.investors)
}

// Step advances the model once and returns the resulting frame.
func (m *Model) Step() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepLocked()
	return m.stateLocked()
}

// State renders the current frame without advancing.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Run steps the model n times, stopping early when ctx is cancelled.
// It returns how many steps actually ran.
func (m *Model) Run(ctx context.Context, steps int) (int, error) {
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		default:
		}
		m.Step()
	}
	return steps, nil
}

// stepLocked is one scheduler tick: prices move, every investor acts
// once in a fresh random order, the collector records the step, and on
// the evolution cadence the population turns over.
func (m *Model) stepLocked() {
	m.step++
	m.process.Advance(m.board, m.rng)

	order := make([]*Investor, len(m.investors))
	copy(order, m.investors)
	m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	marks := m.board.Marks()
	for _, inv := range order {
		m.activate(inv, marks)
	}

	m.collectLocked(marks)

	if m.step%m.cfg.Sim.EvolveEvery == 0 {
		m.evolveLocked(marks)
	}

	metrics.StepsTotal.Inc()
	for _, sec := range m.board.Securities() {
		metrics.MarketCap.WithLabelValues(sec.Symbol).Set(sec.MarketCap())
	}
	m.log.Debug().Int("step", m.step).Int("investors", len(m.investors)).Msg("step complete")
}

// activate lets one investor consider every security in board order.
// Equity is computed once: a fill at the mark moves value between cash
// and shares without changing it.
func (m *Model) activate(inv *Investor, marks map[string]float64) {
	equity := inv.Account.Equity(marks)
	for _, sec := range m.board.Securities() {
		decision := inv.Strategy.Decide(strategy.Observation{
			Security: sec,
			Account:  inv.Account,
			Equity:   equity,
		})
		if decision.Shares <= 0 {
			continue
		}

		var side execution.Side
		switch decision.Action {
		case strategy.Buy:
			side = execution.Buy
		case strategy.Sell:
			side = execution.Sell
		default:
			continue
		}

		order := execution.Order{Investor: inv.ID, Symbol: sec.Symbol, Side: side, Shares: decision.Shares}
		// Rejections (insufficient cash or shares, risk caps) are part
		// of normal stepping; the executor already counted and logged.
		_, _ = m.exec.Apply(m.step, order, sec.Price, inv.Account)
	}
}

func (m *Model) collectLocked(marks map[string]float64) {
	values := make(map[string]float64, len(m.board.Securities())+1)
	total := 0.0
	equities := make(map[int]float64, len(m.investors))
	for _, inv := range m.investors {
		equity := inv.Account.Equity(marks)
		equities[inv.ID] = equity
		total += equity
	}
	for _, sec := range m.board.Securities() {
		values[CapSeries(sec.Symbol)] = sec.MarketCap()
	}
	values[TotalEquitySeries] = total
	m.collector.Collect(m.step, values, equities)
}

// evolveLocked ranks investors by equity, breeds a mutated child from
// each of the top half, and culls the bottom half. Children start
// with fresh cash, an empty book, and a random cell.
func (m *Model) evolveLocked(marks map[string]float64) {
	ranked := make([]*Investor, len(m.investors))
	copy(ranked, m.investors)
	sort.SliceStable(ranked, func(i, j int) bool {
		ei, ej := ranked[i].Account.Equity(marks), ranked[j].Account.Equity(marks)
		if ei != ej {
			return ei > ej
		}
		return ranked[i].ID < ranked[j].ID
	})

	parents := ranked[:len(ranked)/2]
	culled := ranked[len(ranked)/2:]
	for _, inv := range culled {
		m.grid.Remove(inv.ID)
	}

	next := make([]*Investor, 0, 2*len(parents))
	next = append(next, parents...)
	m.investors = next
	for _, parent := range parents {
		m.spawn(parent.Strategy.Mutate(m.rng))
	}

	m.generation++
	metrics.GenerationsTotal.Inc()
	metrics.Investors.Set(float64(len(m.investors)))
	m.log.Info().Int("generation", m.generation).Int("step", m.step).
		Int("parents", len(parents)).Int("culled", len(culled)).Msg("evolution pass")
}

func (m *Model) stateLocked() State {
	marks := m.board.Marks()
	agents := make([]Portrayal, 0, len(m.investors))
	total := 0.0
	for _, inv := range m.investors {
		equity := inv.Account.Equity(marks)
		total += equity
		agents = append(agents, Portrayal{
			ID:       inv.ID,
			X:        inv.Cell.X,
			Y:        inv.Cell.Y,
			Strategy: inv.Strategy.String(),
			Cash:     inv.Account.Cash(),
			Equity:   equity,
		})
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	return State{
		Step:        m.step,
		Generation:  m.generation,
		Seed:        m.seed,
		TotalEquity: total,
		Securities:  m.board.Quotes(),
		Agents:      agents,
		Series:      m.collector.Tail(stateTail),
	}
}

// Frame copies the collected series out for stores and exporters.
func (m *Model) Frame() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collector.Frame()
}

// Leaderboard ranks the live population by equity at current prices.
func (m *Model) Leaderboard() []LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	marks := m.board.Marks()
	entries := make([]LeaderboardEntry, 0, len(m.investors))
	for _, inv := range m.investors {
		entries = append(entries, LeaderboardEntry{
			Investor: inv.ID,
			Strategy: inv.Strategy.String(),
			Equity:   inv.Account.Equity(marks),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Equity != entries[j].Equity {
			return entries[i].Equity > entries[j].Equity
		}
		return entries[i].Investor < entries[j].Investor
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// InvestorView is the API shape for one live investor.
type InvestorView struct {
	ID       int                `json:"id"`
	Strategy string             `json:"strategy"`
	Cell     grid.Cell          `json:"cell"`
	Account  portfolio.Snapshot `json:"account"`
}

// Investors snapshots the live population in ID order.
func (m *Model) Investors() []InvestorView {
	m.mu.Lock()
	defer m.mu.Unlock()

	marks := m.board.Marks()
	views := make([]InvestorView, 0, len(m.investors))
	for _, inv := range m.investors {
		views = append(views, InvestorView{
			ID:       inv.ID,
			Strategy: inv.Strategy.String(),
			Cell:     inv.Cell,
			Account:  inv.Account.Snapshot(marks),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Quotes snapshots the board.
func (m *Model) Quotes() []market.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board.Quotes()
}
