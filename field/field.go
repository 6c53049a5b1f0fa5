// Package field moves tracks through the geometry, either along straight
// lines or along helices in a uniform magnetic field.
package field

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phil-mansfield/gotrack/geom"
)

// curvature converts charge * field / momentum into a bending rate:
// 1/R [1/cm] = curvature * |q| * B [T] / p [MeV/c].
const curvature = 2.99792458

const (
	defaultMaxAngle    = 0.2
	defaultMaxSubsteps = 100
	defaultMinStep     = 1e-7
)

// Input describes a uniform magnetic field.
type Input struct {
	// Field vector in tesla.
	Field mgl64.Vec3
	// Largest angle (radians) a track may bend through in one substep.
	MaxAngle float64
	// Number of substeps a single propagation may take before the track is
	// flagged as looping.
	MaxSubsteps int
	// Steps shorter than this (cm) are not subdivided.
	MinStep float64
}

// Params is an immutable uniform field propagator.
type Params struct {
	field    mgl64.Vec3
	strength float64
	axis     mgl64.Vec3

	maxAngle    float64
	maxSubsteps int
	minStep     float64
}

// NewParams validates a field and fills in default propagation settings.
func NewParams(in Input) (*Params, error) {
	if in.MaxAngle == 0 { in.MaxAngle = defaultMaxAngle }
	if in.MaxSubsteps == 0 { in.MaxSubsteps = defaultMaxSubsteps }
	if in.MinStep == 0 { in.MinStep = defaultMinStep }

	switch {
	case !(in.MaxAngle > 0 && in.MaxAngle <= math.Pi):
		return nil, fmt.Errorf(
			"Field MaxAngle must be in (0, pi], but is %g.", in.MaxAngle,
		)
	case in.MaxSubsteps < 0:
		return nil, fmt.Errorf(
			"Field MaxSubsteps must be positive, but is %d.", in.MaxSubsteps,
		)
	case in.MinStep < 0:
		return nil, fmt.Errorf(
			"Field MinStep must be positive, but is %g.", in.MinStep,
		)
	}

	p := &Params{
		field: in.Field, strength: in.Field.Len(),
		maxAngle: in.MaxAngle, maxSubsteps: in.MaxSubsteps,
		minStep: in.MinStep,
	}
	if p.strength > 0 { p.axis = in.Field.Mul(1 / p.strength) }
	return p, nil
}

// Field returns the field vector in tesla.
func (p *Params) Field() mgl64.Vec3 { return p.field }

// Result is the end point of a propagation.
type Result struct {
	// Path length travelled.
	Distance  float64
	Position  mgl64.Vec3
	Direction mgl64.Vec3
	// Boundary is set if the track stopped on the surface of its cell, in
	// which case Next is the cell on the other side.
	Boundary bool
	Next     geom.CellId
	// Looping is set if the propagator gave up before reaching either the
	// requested distance or a boundary.
	Looping bool
}

// Linear moves a track along a straight line for at most maxStep, stopping
// at the boundary of its cell.
func Linear(
	geo *geom.Geometry, pos, dir mgl64.Vec3, cell geom.CellId, maxStep float64,
) Result {
	dist, next := geo.DistanceToBoundary(pos, dir, cell)
	if dist > maxStep {
		return Result{
			Distance: maxStep, Position: pos.Add(dir.Mul(maxStep)),
			Direction: dir, Next: cell,
		}
	}
	return Result{
		Distance: dist, Position: pos.Add(dir.Mul(dist)), Direction: dir,
		Boundary: true, Next: next,
	}
}

// Propagate moves a track with the given charge and momentum (MeV/c)
// through the field for at most maxStep, stopping at the boundary of its
// cell. The helix is split into substeps and each substep's chord is
// checked against the cell boundary.
func (p *Params) Propagate(
	geo *geom.Geometry, pos, dir mgl64.Vec3, cell geom.CellId,
	charge, momentum, maxStep float64,
) Result {
	if p == nil || p.strength == 0 || charge == 0 || momentum <= 0 {
		return Linear(geo, pos, dir, cell, maxStep)
	}

	// Signed bending angle per unit length.
	rate := -curvature * charge * p.strength / momentum
	hMax := p.maxAngle / math.Abs(rate)

	res := Result{Position: pos, Direction: dir, Next: cell}
	for i := 0; i < p.maxSubsteps; i++ {
		remaining := maxStep - res.Distance
		if remaining <= 0 { return res }

		h := math.Min(remaining, math.Max(hMax, p.minStep))
		end, endDir := p.helix(res.Position, res.Direction, rate*h, h)

		chord := end.Sub(res.Position)
		chordLen := chord.Len()
		if chordLen == 0 {
			res.Distance += h
			res.Direction = endDir
			continue
		}
		chordDir := chord.Mul(1 / chordLen)

		dist, next := geo.DistanceToBoundary(res.Position, chordDir, cell)
		if dist < chordLen {
			frac := dist / chordLen
			res.Position = res.Position.Add(chordDir.Mul(dist))
			res.Direction = rotate(res.Direction, p.axis, rate*h*frac)
			res.Distance += h * frac
			res.Boundary = true
			res.Next = next
			return res
		}

		res.Position, res.Direction = end, endDir
		res.Distance += h
	}

	if res.Distance < maxStep { res.Looping = true }
	return res
}

// helix returns the exact end point and direction of a helical path of
// length h which bends by theta about the field axis.
func (p *Params) helix(
	pos, dir mgl64.Vec3, theta, h float64,
) (mgl64.Vec3, mgl64.Vec3) {
	par := p.axis.Mul(dir.Dot(p.axis))
	perp := dir.Sub(par)

	var a, b float64
	if math.Abs(theta) < 1e-8 {
		a, b = 1, theta/2
	} else {
		sin, cos := math.Sincos(theta)
		a, b = sin/theta, (1-cos)/theta
	}

	disp := par.Add(perp.Mul(a)).Add(p.axis.Cross(perp).Mul(b)).Mul(h)
	return pos.Add(disp), rotate(dir, p.axis, theta)
}

// rotate rotates v about the unit vector axis by theta.
func rotate(v, axis mgl64.Vec3, theta float64) mgl64.Vec3 {
	out := mgl64.QuatRotate(theta, axis).Rotate(v)
	return out.Normalize()
}
