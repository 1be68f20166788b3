// Package geo partitions a geographic bounding box into a fixed grid of cells
// and defines the traversal order the crawler walks them in.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Cell addresses one grid cell. X is the longitude column, Y the latitude row.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Grid divides Bound into Columns x Rows equal cells.
type Grid struct {
	Bound   orb.Bound
	Columns int
	Rows    int
}

// NewBound builds a bound from its corners in (lng, lat) order.
func NewBound(minLng, minLat, maxLng, maxLat float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}
}

// Validate rejects degenerate grids.
func (g Grid) Validate() error {
	if g.Columns < 1 {
		return fmt.Errorf("grid columns must be >= 1, got %d", g.Columns)
	}
	if g.Rows < 1 {
		return fmt.Errorf("grid rows must be >= 1, got %d", g.Rows)
	}
	if g.Bound.Min.Lon() >= g.Bound.Max.Lon() {
		return fmt.Errorf("grid min longitude %v must be < max longitude %v", g.Bound.Min.Lon(), g.Bound.Max.Lon())
	}
	if g.Bound.Min.Lat() >= g.Bound.Max.Lat() {
		return fmt.Errorf("grid min latitude %v must be < max latitude %v", g.Bound.Min.Lat(), g.Bound.Max.Lat())
	}
	return nil
}

// CellBound returns the bounding box of cell (x, y) within global when it is
// split into columns x rows cells. Adjacent cells share their edge exactly:
// the max of cell i and the min of cell i+1 are computed by the same expression.
func CellBound(global orb.Bound, columns, rows, x, y int) orb.Bound {
	lngStep := (global.Max.Lon() - global.Min.Lon()) / float64(columns)
	latStep := (global.Max.Lat() - global.Min.Lat()) / float64(rows)
	return orb.Bound{
		Min: orb.Point{
			global.Min.Lon() + float64(x)*lngStep,
			global.Min.Lat() + float64(y)*latStep,
		},
		Max: orb.Point{
			global.Min.Lon() + float64(x+1)*lngStep,
			global.Min.Lat() + float64(y+1)*latStep,
		},
	}
}

// CellBound returns the bound of c within the grid.
func (g Grid) CellBound(c Cell) orb.Bound {
	return CellBound(g.Bound, g.Columns, g.Rows, c.X, c.Y)
}

// Total is the number of cells in the grid.
func (g Grid) Total() int {
	return g.Columns * g.Rows
}

// Contains reports whether c addresses a cell inside the grid.
func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.X < g.Columns && c.Y >= 0 && c.Y < g.Rows
}

// Index is the position of c in traversal order: every row of column 0,
// then every row of column 1, and so on.
func (g Grid) Index(c Cell) int {
	return c.X*g.Rows + c.Y
}

// CellAt is the inverse of Index.
func (g Grid) CellAt(index int) Cell {
	return Cell{X: index / g.Rows, Y: index % g.Rows}
}

// Last is the final cell in traversal order.
func (g Grid) Last() Cell {
	return Cell{X: g.Columns - 1, Y: g.Rows - 1}
}

// CellsFrom lists the cells from start (inclusive) to the end of the grid in
// traversal order. The remainder of start's column comes first, then all
// later columns from row 0.
func (g Grid) CellsFrom(start Cell) []Cell {
	if !g.Contains(start) {
		return nil
	}
	first := g.Index(start)
	cells := make([]Cell, 0, g.Total()-first)
	for i := first; i < g.Total(); i++ {
		cells = append(cells, g.CellAt(i))
	}
	return cells
}

// FormatBBox renders b as "minLng,minLat,maxLng,maxLat", the query form the
// upstream search endpoint expects.
func FormatBBox(b orb.Bound) string {
	parts := []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	out := make([]string, len(parts))
	for i, v := range parts {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(out, ",")
}
