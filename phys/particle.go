package phys

import (
	"fmt"
	"math"
)

const (
	// CLight is the speed of light in cm/s.
	CLight = 2.99792458e10
	// ElectronMass is the electron rest mass in MeV.
	ElectronMass = 0.51099895
)

// ParticleId is an index into a Particles table.
type ParticleId int32

// NoParticle is the ParticleId of an unset particle.
const NoParticle ParticleId = -1

// Valid returns true if the id refers to a particle.
func (id ParticleId) Valid() bool { return id >= 0 }

// Particle describes a single particle species.
type Particle struct {
	Label string
	// PDG Monte Carlo number.
	PDG int
	// Rest mass in MeV.
	Mass float64
	// Charge in units of the elementary charge.
	Charge float64
	// Tracks with kinetic energies below this value (in MeV) are killed and
	// their remaining energy is deposited locally.
	Cutoff float64
}

// Neutral returns true if the particle carries no charge.
func (p *Particle) Neutral() bool { return p.Charge == 0 }

// Momentum returns the momentum in MeV/c of a particle with the given kinetic
// energy.
func (p *Particle) Momentum(energy float64) float64 {
	return math.Sqrt(energy * (energy + 2*p.Mass))
}

// Speed returns the speed in cm/s of a particle with the given kinetic
// energy.
func (p *Particle) Speed(energy float64) float64 {
	if p.Mass == 0 { return CLight }
	gamma := 1 + energy/p.Mass
	return CLight * math.Sqrt(1-1/(gamma*gamma))
}

// Particles is an immutable table of the particle species known to a
// simulation.
type Particles struct {
	defs  []Particle
	byPDG map[int]ParticleId
}

// DefaultParticles returns the photon, electron, and positron definitions.
func DefaultParticles() []Particle {
	return []Particle{
		{Label: "gamma", PDG: 22, Mass: 0, Charge: 0, Cutoff: 1e-3},
		{Label: "e-", PDG: 11, Mass: ElectronMass, Charge: -1, Cutoff: 1e-2},
		{Label: "e+", PDG: -11, Mass: ElectronMass, Charge: +1, Cutoff: 1e-2},
	}
}

// NewParticles creates a particle table. PDG numbers and labels must be
// unique.
func NewParticles(defs []Particle) (*Particles, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("No particles were defined.")
	}

	p := &Particles{
		defs:  append([]Particle(nil), defs...),
		byPDG: map[int]ParticleId{},
	}
	labels := map[string]bool{}
	for i, def := range p.defs {
		switch {
		case def.Label == "":
			return nil, fmt.Errorf("Particle %d has no label.", i)
		case labels[def.Label]:
			return nil, fmt.Errorf("Particle label '%s' is repeated.", def.Label)
		case def.Mass < 0:
			return nil, fmt.Errorf(
				"Particle '%s' has negative mass %g.", def.Label, def.Mass,
			)
		case def.Cutoff < 0:
			return nil, fmt.Errorf(
				"Particle '%s' has negative cutoff %g.", def.Label, def.Cutoff,
			)
		}
		if _, ok := p.byPDG[def.PDG]; ok {
			return nil, fmt.Errorf("PDG number %d is repeated.", def.PDG)
		}
		labels[def.Label] = true
		p.byPDG[def.PDG] = ParticleId(i)
	}

	return p, nil
}

// Size returns the number of particle species.
func (p *Particles) Size() int { return len(p.defs) }

// Get returns the definition of a particle.
func (p *Particles) Get(id ParticleId) *Particle { return &p.defs[id] }

// Charge returns the charge of a particle.
func (p *Particles) Charge(id ParticleId) float64 { return p.defs[id].Charge }

// Find returns the id of the particle with the given PDG number, or
// NoParticle.
func (p *Particles) Find(pdg int) ParticleId {
	id, ok := p.byPDG[pdg]
	if !ok { return NoParticle }
	return id
}

// FindLabel returns the id of the particle with the given label, or
// NoParticle.
func (p *Particles) FindLabel(label string) ParticleId {
	for i := range p.defs {
		if p.defs[i].Label == label { return ParticleId(i) }
	}
	return NoParticle
}
