package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usGrid() Grid {
	return Grid{
		Bound:   NewBound(-125.0, 24.3963, -66.9346, 49.3844),
		Columns: 20,
		Rows:    25,
	}
}

func TestCellBoundTilesGlobalBound(t *testing.T) {
	t.Parallel()

	g := usGrid()
	require.NoError(t, g.Validate())

	var area float64
	for x := 0; x < g.Columns; x++ {
		for y := 0; y < g.Rows; y++ {
			b := g.CellBound(Cell{X: x, Y: y})
			require.Less(t, b.Min.Lon(), b.Max.Lon())
			require.Less(t, b.Min.Lat(), b.Max.Lat())
			area += (b.Max.Lon() - b.Min.Lon()) * (b.Max.Lat() - b.Min.Lat())

			if x+1 < g.Columns {
				right := g.CellBound(Cell{X: x + 1, Y: y})
				assert.Equal(t, b.Max.Lon(), right.Min.Lon(), "shared column edge must match exactly")
			}
			if y+1 < g.Rows {
				above := g.CellBound(Cell{X: x, Y: y + 1})
				assert.Equal(t, b.Max.Lat(), above.Min.Lat(), "shared row edge must match exactly")
			}
		}
	}

	global := (g.Bound.Max.Lon() - g.Bound.Min.Lon()) * (g.Bound.Max.Lat() - g.Bound.Min.Lat())
	assert.InDelta(t, global, area, 1e-9)

	first := g.CellBound(Cell{})
	assert.Equal(t, g.Bound.Min, first.Min)
	last := g.CellBound(g.Last())
	assert.InDelta(t, g.Bound.Max.Lon(), last.Max.Lon(), 1e-9)
	assert.InDelta(t, g.Bound.Max.Lat(), last.Max.Lat(), 1e-9)
}

func TestCellBoundSingleCell(t *testing.T) {
	t.Parallel()

	global := NewBound(-10, -5, 10, 5)
	assert.Equal(t, global, CellBound(global, 1, 1, 0, 0))
}

func TestCellsFromTraversalOrder(t *testing.T) {
	t.Parallel()

	g := Grid{Bound: NewBound(0, 0, 3, 2), Columns: 3, Rows: 2}

	assert.Equal(t, []Cell{
		{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1},
	}, g.CellsFrom(Cell{}))

	assert.Equal(t, []Cell{{1, 1}, {2, 0}, {2, 1}}, g.CellsFrom(Cell{X: 1, Y: 1}))
	assert.Equal(t, []Cell{{2, 1}}, g.CellsFrom(g.Last()))
	assert.Nil(t, g.CellsFrom(Cell{X: 3, Y: 0}))
}

func TestIndexRoundTrip(t *testing.T) {
	t.Parallel()

	g := usGrid()
	for i := 0; i < g.Total(); i++ {
		c := g.CellAt(i)
		require.True(t, g.Contains(c))
		require.Equal(t, i, g.Index(c))
	}
	assert.Equal(t, 500, g.Total())
	assert.Equal(t, Cell{X: 19, Y: 24}, g.Last())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]Grid{
		"zero columns":   {Bound: NewBound(0, 0, 1, 1), Columns: 0, Rows: 1},
		"zero rows":      {Bound: NewBound(0, 0, 1, 1), Columns: 1, Rows: 0},
		"inverted lng":   {Bound: NewBound(1, 0, 0, 1), Columns: 1, Rows: 1},
		"degenerate lat": {Bound: NewBound(0, 1, 1, 1), Columns: 1, Rows: 1},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, g.Validate())
		})
	}
}

func TestFormatBBox(t *testing.T) {
	t.Parallel()

	b := NewBound(-125, 24.3963, -122.09673, 25.39582)
	assert.Equal(t, "-125,24.3963,-122.09673,25.39582", FormatBBox(b))
	assert.Equal(t, "0,0,3.141592653589793,1", FormatBBox(NewBound(0, 0, math.Pi, 1)))
}
