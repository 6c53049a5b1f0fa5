package geom

// Grid maps the (x, y, z) coordinates of cells in a box of Dims cells onto
// a flat index, with x varying fastest.
type Grid struct {
	Dims                 [3]int
	Length, Area, Volume int
}

// NewGrid returns a Grid over a box with the given dimensions.
func NewGrid(dims [3]int) *Grid {
	g := &Grid{}
	g.Init(dims)
	return g
}

// Init sets the dimensions of a Grid.
func (g *Grid) Init(dims [3]int) {
	g.Dims = dims
	g.Length = dims[0]
	g.Area = dims[0] * dims[1]
	g.Volume = g.Area * dims[2]
}

// Idx returns the flat index of a cell. The coordinates are not checked.
func (g *Grid) Idx(x, y, z int) int { return x + y*g.Length + z*g.Area }

// IdxCheck returns the flat index of a cell and true, or false if the cell
// lies outside the box.
func (g *Grid) IdxCheck(x, y, z int) (idx int, ok bool) {
	if !g.Contains(x, y, z) { return -1, false }
	return g.Idx(x, y, z), true
}

// Contains returns true if a cell lies inside the box.
func (g *Grid) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 &&
		x < g.Dims[0] && y < g.Dims[1] && z < g.Dims[2]
}

// Coords inverts Idx.
func (g *Grid) Coords(idx int) (x, y, z int) {
	return idx % g.Length, (idx % g.Area) / g.Length, idx / g.Area
}
