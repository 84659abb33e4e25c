// Package grid places agents on a torus with multi-occupancy cells.
package grid

import (
	"fmt"
	"math/rand"
	"sort"
)

// Cell is one grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid wraps coordinates on both axes and lets any number of agents
// share a cell. Callers serialize access through the model; the grid
// itself is not goroutine safe.
type Grid struct {
	width  int
	height int
	pos    map[int]Cell
}

// New builds an empty grid.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid needs positive dimensions, got %dx%d", width, height)
	}
	return &Grid{width: width, height: height, pos: make(map[int]Cell)}, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Cap is the cell count, the most agents a placement policy of one
// agent per cell could hold.
func (g *Grid) Cap() int { return g.width * g.height }

// Count reports how many agents are placed.
func (g *Grid) Count() int { return len(g.pos) }

// Wrap maps any coordinate pair onto the torus.
func (g *Grid) Wrap(x, y int) Cell {
	x %= g.width
	if x < 0 {
		x += g.width
	}
	y %= g.height
	if y < 0 {
		y += g.height
	}
	return Cell{X: x, Y: y}
}

// Place puts an agent at the wrapped coordinates, moving it if it was
// already on the grid.
func (g *Grid) Place(id, x, y int) Cell {
	cell := g.Wrap(x, y)
	g.pos[id] = cell
	return cell
}

// Remove takes an agent off the grid. Unknown ids are a no-op.
func (g *Grid) Remove(id int) {
	delete(g.pos, id)
}

// Position reports where an agent sits.
func (g *Grid) Position(id int) (Cell, bool) {
	cell, ok := g.pos[id]
	return cell, ok
}

// Positions returns a copy of every agent placement.
func (g *Grid) Positions() map[int]Cell {
	out := make(map[int]Cell, len(g.pos))
	for id, cell := range g.pos {
		out[id] = cell
	}
	return out
}

// At lists the agents sharing a cell, in ascending id order.
func (g *Grid) At(x, y int) []int {
	cell := g.Wrap(x, y)
	var ids []int
	for id, c := range g.pos {
		if c == cell {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// RandomCell draws a uniform cell, column first the way agents have
// always been scattered.
func (g *Grid) RandomCell(rng *rand.Rand) Cell {
	return Cell{X: rng.Intn(g.width), Y: rng.Intn(g.height)}
}
