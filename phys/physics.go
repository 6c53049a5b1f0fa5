package phys

import (
	"fmt"
	"math"
)

// Material is a homogeneous substance filling geometry cells.
type Material struct {
	Name string
	// Mass density in g/cm^3.
	Density float64
}

// PhysicsInput holds everything needed to tabulate the physics of a
// simulation.
type PhysicsInput struct {
	Particles *Particles
	Materials []Material

	// Energy range (MeV) and number of points of the cross section tables.
	// Zero values are replaced with defaults.
	EMin, EMax float64
	GridPoints int
}

const (
	defaultEMin       = 1e-4
	defaultEMax       = 1e4
	defaultGridPoints = 256

	// Mass stopping power of charged leptons, MeV cm^2 / g.
	massStoppingPower = 2.0
)

// Physics contains immutable macroscopic cross section and energy loss
// tables for each particle/material pair.
type Physics struct {
	particles *Particles
	materials []Material

	gamma, electron, positron ParticleId

	// Indexed by material*numParticles + particle.
	xs   []*LogGrid
	dedx []float64
}

// NewPhysics tabulates the physics tables for the given particles and
// materials.
func NewPhysics(in PhysicsInput) (*Physics, error) {
	if in.Particles == nil {
		return nil, fmt.Errorf("No particle table given to physics.")
	} else if len(in.Materials) == 0 {
		return nil, fmt.Errorf("No materials given to physics.")
	}
	if in.EMin == 0 { in.EMin = defaultEMin }
	if in.EMax == 0 { in.EMax = defaultEMax }
	if in.GridPoints == 0 { in.GridPoints = defaultGridPoints }
	if !(in.EMin > 0 && in.EMax > in.EMin) || in.GridPoints < 2 {
		return nil, fmt.Errorf(
			"Invalid physics grid: [%g, %g] MeV with %d points.",
			in.EMin, in.EMax, in.GridPoints,
		)
	}

	for i, mat := range in.Materials {
		if mat.Density < 0 {
			return nil, fmt.Errorf(
				"Material %d ('%s') has negative density %g.",
				i, mat.Name, mat.Density,
			)
		}
	}

	phys := &Physics{
		particles: in.Particles,
		materials: append([]Material(nil), in.Materials...),
		gamma:     in.Particles.Find(22),
		electron:  in.Particles.Find(11),
		positron:  in.Particles.Find(-11),
	}

	np := in.Particles.Size()
	phys.xs = make([]*LogGrid, np*len(in.Materials))
	phys.dedx = make([]float64, np*len(in.Materials))
	for m, mat := range phys.materials {
		rho := mat.Density
		for p := 0; p < np; p++ {
			pid := ParticleId(p)
			idx := m*np + p
			switch {
			case pid == phys.gamma:
				phys.xs[idx] = TabulateLogGrid(
					in.EMin, in.EMax, in.GridPoints,
					func(e float64) float64 { return rho * (0.06/math.Sqrt(e) + 0.02) },
				)
			case !in.Particles.Get(pid).Neutral():
				phys.xs[idx] = TabulateLogGrid(
					in.EMin, in.EMax, in.GridPoints,
					func(e float64) float64 { return rho * 0.02 * math.Log1p(e) },
				)
				phys.dedx[idx] = rho * massStoppingPower
			default:
				phys.xs[idx] = NewLogGrid(in.EMin, in.EMax, []float64{0, 0})
			}
		}
	}

	return phys, nil
}

// Particles returns the particle table the physics was built from.
func (phys *Physics) Particles() *Particles { return phys.particles }

// NumMaterials returns the number of materials.
func (phys *Physics) NumMaterials() int { return len(phys.materials) }

// Material returns the definition of a material.
func (phys *Physics) Material(mat int) *Material { return &phys.materials[mat] }

// MacroXs returns the total macroscopic cross section (1/cm) of the discrete
// process of a particle.
func (phys *Physics) MacroXs(p ParticleId, mat int, energy float64) float64 {
	return phys.xs[mat*phys.particles.Size()+int(p)].Eval(energy)
}

// StoppingPower returns the continuous energy loss (MeV/cm) of a particle.
// It is zero for neutral particles.
func (phys *Physics) StoppingPower(p ParticleId, mat int) float64 {
	return phys.dedx[mat*phys.particles.Size()+int(p)]
}

// Range returns the distance a charged particle can travel before losing all
// its energy. It is infinite for neutral particles.
func (phys *Physics) Range(p ParticleId, mat int, energy float64) float64 {
	dedx := phys.StoppingPower(p, mat)
	if dedx <= 0 { return math.Inf(1) }
	return energy / dedx
}
