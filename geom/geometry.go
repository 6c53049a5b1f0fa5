package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// CellId is an opaque handle to a single cell of a Geometry. Tracks store a
// CellId instead of a pointer to any geometry object.
type CellId int32

// Outside is the CellId of everything which isn't in the world.
const Outside CellId = -1

// Valid returns true if the cell is inside the world.
func (c CellId) Valid() bool { return c >= 0 }

// Geometry is a world made of a regular grid of cubic cells. Each cell is
// filled with a single material and may be flagged as a detector.
//
// A Geometry is immutable after construction and may be shared between
// streams without locking.
type Geometry struct {
	grid      Grid
	origin    mgl64.Vec3
	cellWidth float64
	materials []int
	detectors []bool
}

// NewGeometry creates a world whose lowermost corner is at origin, which
// has the given number of cells along each axis, and whose cells are cubes
// with side length cellWidth. materials gives the material index of each cell
// in grid order (x fastest). A single material fills the whole world.
func NewGeometry(
	origin mgl64.Vec3, cells [3]int, cellWidth float64, materials []int,
) (*Geometry, error) {
	for i := 0; i < 3; i++ {
		if cells[i] <= 0 {
			return nil, fmt.Errorf(
				"Geometry needs a positive number of cells along axis %d, "+
					"but got %d.", i, cells[i],
			)
		}
	}
	if !(cellWidth > 0) {
		return nil, fmt.Errorf(
			"Geometry needs a positive cell width, but got %g.", cellWidth,
		)
	}

	g := &Geometry{origin: origin, cellWidth: cellWidth}
	g.grid.Init(cells)

	switch len(materials) {
	case 1:
		g.materials = make([]int, g.grid.Volume)
		for i := range g.materials { g.materials[i] = materials[0] }
	case g.grid.Volume:
		g.materials = append([]int(nil), materials...)
	default:
		return nil, fmt.Errorf(
			"Geometry has %d cells, but %d materials were given.",
			g.grid.Volume, len(materials),
		)
	}
	for i, m := range g.materials {
		if m < 0 {
			return nil, fmt.Errorf("Cell %d has negative material %d.", i, m)
		}
	}
	g.detectors = make([]bool, g.grid.Volume)

	return g, nil
}

// SetDetector flags a cell as sensitive. It may only be called during setup.
func (g *Geometry) SetDetector(cell CellId) {
	g.detectors[cell] = true
}

// NumCells returns the number of cells in the world.
func (g *Geometry) NumCells() int { return g.grid.Volume }

// Cells returns the number of cells along each axis.
func (g *Geometry) Cells() [3]int { return g.grid.Dims }

// CellWidth returns the side length of a cell.
func (g *Geometry) CellWidth() float64 { return g.cellWidth }

// Material returns the material index filling a cell.
func (g *Geometry) Material(cell CellId) int { return g.materials[cell] }

// NumMaterials returns one more than the largest material index.
func (g *Geometry) NumMaterials() int {
	max := -1
	for _, m := range g.materials {
		if m > max { max = m }
	}
	return max + 1
}

// Detector returns true if the cell is sensitive.
func (g *Geometry) Detector(cell CellId) bool { return g.detectors[cell] }

// Bounds returns the lower and upper corners of the world.
func (g *Geometry) Bounds() (lo, hi mgl64.Vec3) {
	hi = g.origin
	for i := 0; i < 3; i++ {
		hi[i] += float64(g.grid.Dims[i]) * g.cellWidth
	}
	return g.origin, hi
}

// Inside returns true if pos is within the world.
func (g *Geometry) Inside(pos mgl64.Vec3) bool {
	return g.Locate(pos).Valid()
}

// Locate returns the cell containing pos or Outside.
func (g *Geometry) Locate(pos mgl64.Vec3) CellId {
	var idx [3]int
	for i := 0; i < 3; i++ {
		u := (pos[i] - g.origin[i]) / g.cellWidth
		if u < 0 || math.IsNaN(u) { return Outside }
		idx[i] = int(u)
	}
	i, ok := g.grid.IdxCheck(idx[0], idx[1], idx[2])
	if !ok { return Outside }
	return CellId(i)
}

// Cell returns the cell at the given grid coordinates or Outside.
func (g *Geometry) Cell(x, y, z int) CellId {
	i, ok := g.grid.IdxCheck(x, y, z)
	if !ok { return Outside }
	return CellId(i)
}

// DistanceToBoundary returns the distance along dir from pos to the surface of
// cell, along with the cell on the other side of that surface (which may be
// Outside). pos is assumed to be inside cell, or on its surface.
func (g *Geometry) DistanceToBoundary(
	pos, dir mgl64.Vec3, cell CellId,
) (dist float64, next CellId) {
	x, y, z := g.grid.Coords(int(cell))
	coords := [3]int{x, y, z}

	dist = math.Inf(1)
	axis, step := -1, 0
	for i := 0; i < 3; i++ {
		if dir[i] == 0 { continue }

		plane := coords[i]
		s := -1
		if dir[i] > 0 {
			plane++
			s = +1
		}
		edge := g.origin[i] + float64(plane)*g.cellWidth
		d := (edge - pos[i]) / dir[i]
		if d < 0 { d = 0 }
		if d < dist {
			dist, axis, step = d, i, s
		}
	}

	if axis < 0 { return dist, Outside }

	coords[axis] += step
	return dist, g.Cell(coords[0], coords[1], coords[2])
}
