package phys

import (
	"fmt"
	"math"
)

// LogGrid is a linear interpolator over values tabulated on a grid which is
// uniformly spaced in log(energy).
//
// Lookups are O(1). Energies outside the grid are clamped to its edges.
type LogGrid struct {
	logE0, dLogE float64
	vals         []float64
}

// NewLogGrid creates a LogGrid which spans [eMin, eMax] with len(vals)
// points.
func NewLogGrid(eMin, eMax float64, vals []float64) *LogGrid {
	if len(vals) < 2 {
		panic(fmt.Sprintf("LogGrid needs 2 or more values, got %d.", len(vals)))
	} else if !(eMin > 0 && eMax > eMin) {
		panic(fmt.Sprintf("Invalid LogGrid range [%g, %g].", eMin, eMax))
	}

	g := &LogGrid{}
	g.logE0 = math.Log(eMin)
	g.dLogE = (math.Log(eMax) - g.logE0) / float64(len(vals)-1)
	g.vals = vals
	return g
}

// TabulateLogGrid evaluates f at n log-spaced energies in [eMin, eMax].
func TabulateLogGrid(eMin, eMax float64, n int, f func(e float64) float64) *LogGrid {
	vals := make([]float64, n)
	logE0 := math.Log(eMin)
	dLogE := (math.Log(eMax) - logE0) / float64(n-1)
	for i := range vals {
		vals[i] = f(math.Exp(logE0 + float64(i)*dLogE))
	}
	return NewLogGrid(eMin, eMax, vals)
}

// Eval returns the interpolated value at energy e.
func (g *LogGrid) Eval(e float64) float64 {
	if e <= 0 { return g.vals[0] }
	u := (math.Log(e) - g.logE0) / g.dLogE

	i1 := int(math.Floor(u))
	if i1 < 0 { return g.vals[0] }
	if i1 >= len(g.vals)-1 { return g.vals[len(g.vals)-1] }

	v1, v2 := g.vals[i1], g.vals[i1+1]
	return (v2-v1)*(u-float64(i1)) + v1
}

// EvalAll evaluates the grid at all the given energies. If an output
// array is given, the output is written to that array (the array is still
// returned as a convenience).
func (g *LogGrid) EvalAll(es []float64, out ...[]float64) []float64 {
	if len(out) == 0 { out = [][]float64{ make([]float64, len(es)) } }
	for i, e := range es { out[0][i] = g.Eval(e) }
	return out[0]
}
