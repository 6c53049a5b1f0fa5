package phys

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phil-mansfield/gotrack/rand"
)

// MaxSecondaries is the largest number of secondaries a single interaction
// can produce.
const MaxSecondaries = 2

// Action describes what happened to the incident particle of an
// interaction.
type Action int8

const (
	// Unchanged means the interaction did nothing.
	Unchanged Action = iota
	// Scattered means the particle survived with a new energy and direction.
	Scattered
	// Absorbed means the particle was destroyed.
	Absorbed
)

// Secondary is a particle produced by an interaction. It starts at the
// position and time of its parent.
type Secondary struct {
	Particle  ParticleId
	Energy    float64
	Direction mgl64.Vec3
}

// Interaction is the outcome of sampling a discrete process.
type Interaction struct {
	Action        Action
	Energy        float64
	Direction     mgl64.Vec3
	EnergyDeposit float64

	Secondaries    [MaxSecondaries]Secondary
	NumSecondaries int
}

func (in *Interaction) addSecondary(p ParticleId, e float64, dir mgl64.Vec3) {
	if !p.Valid() {
		in.EnergyDeposit += e
		return
	}
	in.Secondaries[in.NumSecondaries] = Secondary{p, e, dir}
	in.NumSecondaries++
}

// Interact samples the discrete interaction of a particle with the given
// kinetic energy and direction.
func (phys *Physics) Interact(
	p ParticleId, energy float64, dir mgl64.Vec3, rng *rand.Stream,
) Interaction {
	switch p {
	case phys.gamma:
		return phys.scatterPhoton(energy, dir, rng)
	case phys.electron, phys.positron:
		return phys.radiate(energy, dir, rng)
	}
	return Interaction{Action: Unchanged, Energy: energy, Direction: dir}
}

// scatterPhoton is a Compton-like scatter off a free electron. Low energy
// photons are instead absorbed, transferring all their energy to an
// electron.
func (phys *Physics) scatterPhoton(
	energy float64, dir mgl64.Vec3, rng *rand.Stream,
) Interaction {
	in := Interaction{}
	absorbProb := 1 / (1 + math.Pow(energy/0.05, 3))
	if rng.Float64() < absorbProb {
		in.Action = Absorbed
		in.addSecondary(phys.electron, energy, rng.Isotropic())
		return in
	}

	k := energy / ElectronMass
	eps0 := 1 / (1 + 2*k)
	eps := eps0 + (1-eps0)*rng.Float64()
	mu := 1 - (1/eps-1)/k
	mu = math.Max(-1, math.Min(1, mu))

	in.Action = Scattered
	in.Energy = eps * energy
	in.Direction = rng.Rotate(dir, mu)

	eElec := energy - in.Energy
	pElec := in.Direction.Mul(-in.Energy).Add(dir.Mul(energy))
	if pElec.Len() > 0 {
		pElec = pElec.Normalize()
	} else {
		pElec = dir
	}
	in.addSecondary(phys.electron, eElec, pElec)
	return in
}

// radiate is a bremsstrahlung-like emission of a forward photon.
func (phys *Physics) radiate(
	energy float64, dir mgl64.Vec3, rng *rand.Stream,
) Interaction {
	u := rng.Float64()
	k := energy * (0.05 + 0.45*u*u)

	in := Interaction{Action: Scattered, Energy: energy - k, Direction: dir}
	in.addSecondary(phys.gamma, k, dir)
	return in
}

// AtRest returns the outcome of a particle which has lost all its kinetic
// energy. Positrons annihilate into two back-to-back photons.
func (phys *Physics) AtRest(p ParticleId, rng *rand.Stream) Interaction {
	in := Interaction{Action: Absorbed}
	if p != phys.positron { return in }

	dir := rng.Isotropic()
	in.addSecondary(phys.gamma, ElectronMass, dir)
	in.addSecondary(phys.gamma, ElectronMass, dir.Mul(-1))
	return in
}
