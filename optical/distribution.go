// Package optical transports optical photons in a small stepping loop of its
// own, fed by photon distributions buffered from the core loop.
package optical

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/phil-mansfield/gotrack/track"
)

// StepPoint is one end of the step which emitted a distribution.
type StepPoint struct {
	Position mgl64.Vec3
	Time     float64
	// cm/s
	Speed float64
}

// Distribution describes a batch of optical photons emitted uniformly along
// a single step of a charged track. Photons are only created from it when
// the buffer it sits in is flushed.
type Distribution struct {
	NumPhotons int

	Track    track.TrackId
	Event    track.EventId
	Step     int32
	Material int
	Charge   float64
	// Energy of each photon in MeV.
	PhotonEnergy float64

	Pre, Post StepPoint
}

// Valid returns true if the distribution describes at least one photon.
func (d *Distribution) Valid() bool {
	return d.NumPhotons > 0 && d.Event.Valid() && d.Material >= 0 &&
		d.PhotonEnergy > 0
}

// at returns the point a fraction u of the way along the step.
func (d *Distribution) at(u float64) (mgl64.Vec3, float64) {
	pos := d.Pre.Position.Add(d.Post.Position.Sub(d.Pre.Position).Mul(u))
	t := d.Pre.Time + u*(d.Post.Time-d.Pre.Time)
	return pos, t
}
