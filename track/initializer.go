package track

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/phil-mansfield/gotrack/phys"
)

// Primary is an input particle. It is consumed exactly once, when it is
// turned into an Initializer.
type Primary struct {
	Particle  phys.ParticleId
	Energy    float64
	Position  mgl64.Vec3
	Direction mgl64.Vec3
	Time      float64
	Weight    float64
	Event     EventId
}

// Initializer is a pending request to fill an empty slot with a new track. It
// is made either from a Primary or from a secondary produced by an
// interaction.
type Initializer struct {
	// Sim data
	Track   TrackId
	Parent  TrackId
	Primary PrimaryId
	Event   EventId
	Time    float64
	Weight  float64

	// Particle data
	Particle phys.ParticleId
	Energy   float64

	// Geometry data
	Position  mgl64.Vec3
	Direction mgl64.Vec3
}

// IsPrimary returns true if the initializer has no parent.
func (init *Initializer) IsPrimary() bool { return !init.Parent.Valid() }

// PrimaryInitializer converts a primary into an initializer for the given
// track.
func PrimaryInitializer(p *Primary, id TrackId, primary PrimaryId) Initializer {
	weight := p.Weight
	if weight == 0 { weight = 1 }
	return Initializer{
		Track: id, Parent: NoTrack, Primary: primary, Event: p.Event,
		Time: p.Time, Weight: weight,
		Particle: p.Particle, Energy: p.Energy,
		Position: p.Position, Direction: p.Direction,
	}
}
