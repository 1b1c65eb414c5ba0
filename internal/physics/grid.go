package physics

import "math"

// spatialGrid is a uniform, non-wrapping grid for broad-phase circle pairs.
// Cell size must be >= the largest sum of radii of two circles plus
// ContactSlop so that every touching pair is found within the 3x3
// neighborhood. See CellSizeFor.
type spatialGrid struct {
	cellSize    float64
	invCellSize float64
	cols        int
	rows        int
	cells       [][]int
}

func newSpatialGrid(worldW, worldH, cellSize float64) *spatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(math.Ceil(worldW / cellSize))
	rows := int(math.Ceil(worldH / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &spatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]int, cols*rows),
	}
}

// clear empties every cell and keeps the backing arrays.
func (g *spatialGrid) clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *spatialGrid) insert(p Vec2, index int) {
	col, row := g.posToCell(p)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], index)
}

// queryAround calls fn for each index in the 3x3 neighborhood around p.
// Positions outside the grid are clamped onto the border cells.
func (g *spatialGrid) queryAround(p Vec2, fn func(index int)) {
	col, row := g.posToCell(p)
	for r := row - 1; r <= row+1; r++ {
		if r < 0 || r >= g.rows {
			continue
		}
		for c := col - 1; c <= col+1; c++ {
			if c < 0 || c >= g.cols {
				continue
			}
			for _, idx := range g.cells[r*g.cols+c] {
				fn(idx)
			}
		}
	}
}

func (g *spatialGrid) posToCell(p Vec2) (int, int) {
	col := int(p.X * g.invCellSize)
	row := int(p.Y * g.invCellSize)
	if p.X < 0 {
		col = 0
	}
	if p.Y < 0 {
		row = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}
