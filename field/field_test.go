package field

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gotrack/geom"
)

func cube(t *testing.T, width float64) *geom.Geometry {
	h := width / 2
	g, err := geom.NewGeometry(mgl64.Vec3{-h, -h, -h}, [3]int{1, 1, 1}, width, []int{0})
	require.NoError(t, err)
	return g
}

func TestNewParamsErrors(t *testing.T) {
	table := []Input{
		{MaxAngle: -1},
		{MaxAngle: 4},
		{MaxSubsteps: -2},
		{MinStep: -1},
	}
	for i, in := range table {
		if _, err := NewParams(in); err == nil {
			t.Errorf("%d) Expected error from NewParams(%+v).", i, in)
		}
	}
}

func TestLinear(t *testing.T) {
	g := cube(t, 2)
	dir := mgl64.Vec3{1, 0, 0}

	res := Linear(g, mgl64.Vec3{}, dir, 0, 0.25)
	assert.False(t, res.Boundary)
	assert.InDelta(t, 0.25, res.Distance, 1e-12)
	assert.InDelta(t, 0.25, res.Position[0], 1e-12)
	assert.Equal(t, geom.CellId(0), res.Next)

	res = Linear(g, mgl64.Vec3{}, dir, 0, 10)
	assert.True(t, res.Boundary)
	assert.InDelta(t, 1.0, res.Distance, 1e-12)
	assert.Equal(t, geom.Outside, res.Next)
}

func TestPropagateNeutralIsLinear(t *testing.T) {
	g := cube(t, 2)
	p, err := NewParams(Input{Field: mgl64.Vec3{0, 0, 1}})
	require.NoError(t, err)

	dir := mgl64.Vec3{0, 1, 0}
	assert.Equal(t,
		Linear(g, mgl64.Vec3{}, dir, 0, 10),
		p.Propagate(g, mgl64.Vec3{}, dir, 0, 0, 1, 10))

	var noField *Params
	assert.Equal(t,
		Linear(g, mgl64.Vec3{}, dir, 0, 10),
		noField.Propagate(g, mgl64.Vec3{}, dir, 0, -1, 1, 10))
}

func TestPropagateCircle(t *testing.T) {
	g := cube(t, 100)
	p, err := NewParams(Input{Field: mgl64.Vec3{0, 0, 1}})
	require.NoError(t, err)

	// Radius of 1 cm.
	momentum := curvature
	circumference := 2 * math.Pi
	dir := mgl64.Vec3{1, 0, 0}

	res := p.Propagate(g, mgl64.Vec3{}, dir, 0, -1, momentum, circumference)
	require.False(t, res.Boundary)
	require.False(t, res.Looping)
	assert.InDelta(t, circumference, res.Distance, 1e-9)
	assert.InDelta(t, 0.0, res.Position.Len(), 1e-9)
	assert.InDelta(t, 1.0, res.Direction.Dot(dir), 1e-9)

	half := p.Propagate(g, mgl64.Vec3{}, dir, 0, -1, momentum, circumference/2)
	assert.InDelta(t, 2.0, half.Position.Len(), 1e-9)
	assert.InDelta(t, -1.0, half.Direction.Dot(dir), 1e-9)

	// Opposite charges bend in opposite directions.
	pos := p.Propagate(g, mgl64.Vec3{}, dir, 0, +1, momentum, circumference/2)
	assert.InDelta(t, 0.0, pos.Position.Add(half.Position).Len(), 1e-9)
}

func TestPropagateBoundary(t *testing.T) {
	g := cube(t, 1)
	p, err := NewParams(Input{Field: mgl64.Vec3{0, 0, 1}})
	require.NoError(t, err)

	res := p.Propagate(g, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, -1, curvature, 10)
	require.True(t, res.Boundary)
	assert.Equal(t, geom.Outside, res.Next)
	assert.Greater(t, res.Distance, 0.5)
	onSurface := false
	for i := 0; i < 3; i++ {
		if math.Abs(math.Abs(res.Position[i])-0.5) < 1e-9 { onSurface = true }
	}
	assert.True(t, onSurface, "end point %v isn't on the surface", res.Position)
}

func TestPropagateLooping(t *testing.T) {
	g := cube(t, 100)
	p, err := NewParams(Input{Field: mgl64.Vec3{0, 0, 1}, MaxSubsteps: 5})
	require.NoError(t, err)

	res := p.Propagate(g, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, -1, curvature, 20)
	assert.True(t, res.Looping)
	assert.False(t, res.Boundary)
	assert.InDelta(t, 1.0, res.Distance, 1e-9)
}
