package engine

import "sort"

// AgentPoint is one collected equity observation for one investor.
type AgentPoint struct {
	Step   int     `json:"step"`
	Equity float64 `json:"equity"`
}

// Frame is a copied-out view of everything a collector gathered,
// shaped for stores and exporters.
type Frame struct {
	Steps  []int
	Names  []string
	Series map[string][]float64
	Agents map[int][]AgentPoint
}

// Collector accumulates per-step model series and per-agent equity.
// Model series are columnar: one value per collected step, in step
// order, under a stable list of names.
type Collector struct {
	names  []string
	steps  []int
	series map[string][]float64
	agents map[int][]AgentPoint
}

// NewCollector prepares storage for the named model series.
func NewCollector(names []string) *Collector {
	c := &Collector{
		names:  append([]string(nil), names...),
		series: make(map[string][]float64, len(names)),
		agents: make(map[int][]AgentPoint),
	}
	for _, name := range names {
		c.series[name] = nil
	}
	return c
}

// Collect appends one row. Values for unknown names are dropped;
// missing values record as zero so columns stay aligned with steps.
func (c *Collector) Collect(step int, values map[string]float64, equities map[int]float64) {
	c.steps = append(c.steps, step)
	for _, name := range c.names {
		c.series[name] = append(c.series[name], values[name])
	}
	for id, equity := range equities {
		c.agents[id] = append(c.agents[id], AgentPoint{Step: step, Equity: equity})
	}
}

// Names returns the model series names in collection order.
func (c *Collector) Names() []string {
	return append([]string(nil), c.names...)
}

// Len reports how many steps have been collected.
func (c *Collector) Len() int { return len(c.steps) }

// Series returns a copy of one model series in step order.
func (c *Collector) Series(name string) []float64 {
	return append([]float64(nil), c.series[name]...)
}

// Tail returns the last n values of every model series, keyed by name.
func (c *Collector) Tail(n int) map[string][]float64 {
	out := make(map[string][]float64, len(c.names))
	for _, name := range c.names {
		col := c.series[name]
		if n > 0 && n < len(col) {
			col = col[len(col)-n:]
		}
		out[name] = append([]float64(nil), col...)
	}
	return out
}

// Frame copies the full collected state out.
func (c *Collector) Frame() Frame {
	f := Frame{
		Steps:  append([]int(nil), c.steps...),
		Names:  c.Names(),
		Series: make(map[string][]float64, len(c.names)),
		Agents: make(map[int][]AgentPoint, len(c.agents)),
	}
	for _, name := range c.names {
		f.Series[name] = append([]float64(nil), c.series[name]...)
	}
	for id, points := range c.agents {
		f.Agents[id] = append([]AgentPoint(nil), points...)
	}
	return f
}

// InvestorIDs lists every investor that ever reported equity, ascending.
func (c *Collector) InvestorIDs() []int {
	ids := make([]int, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
