package optical

import (
	"math"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/field"
	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/rand"
	"github.com/phil-mansfield/gotrack/track"
)

// Labels of the optical step actions, in execution order.
const (
	GenerateLabel   = "optical-generate"
	InitializeLabel = "optical-initialize"
	PreStepLabel    = "optical-pre-step"
	AlongStepLabel  = "optical-along-step"
	BoundaryLabel   = "optical-boundary"
	AbsorptionLabel = "optical-absorption"
	CleanupLabel    = "optical-cleanup"
)

func (p *Params) registerActions() error {
	defs := []struct {
		label, desc string
		order       action.Order
		step        func(*Params, *State) error
	}{
		{GenerateLabel, "generate photons from buffered distributions",
			action.OrderStart, generate},
		{InitializeLabel, "initialize photons from the initializer queue",
			action.OrderStart, initialize},
		{PreStepLabel, "sample the absorption step limit",
			action.OrderPre, preStep},
		{AlongStepLabel, "move photons in straight lines",
			action.OrderAlong, alongStep},
		{BoundaryLabel, "cross a geometry boundary",
			action.OrderPost, boundary},
		{AbsorptionLabel, "absorb photons",
			action.OrderPost, absorb},
		{CleanupLabel, "release dead photons",
			action.OrderEnd, cleanup},
	}

	for _, d := range defs {
		a := action.NewStaticStep(p.actions.NextId(), d.label, d.desc, d.order, d.step)
		if err := p.actions.Insert(a); err != nil { return err }
	}
	return nil
}

// generate turns as many buffered photons into initializers as the queue
// can hold. A photon's random stream, and its id, are derived from the step
// which emitted it and its index in that step's distribution, so they don't
// depend on how photons were batched into flushes.
func generate(p *Params, s *State) error {
	s.step.BeginStep()

	n := s.queue.Free()
	if pending := s.buffer.NumPhotons(); pending < n { n = pending }

	s.buffer.Take(n, func(d *Distribution, k int) {
		rng := rand.NewStream(p.seed^generateSalt, int64(d.Event), int64(d.Track))
		rng = rng.Split(int64(d.Step)).Split(int64(k))
		id := track.TrackId(rng.Uint64() >> 1)

		pos, t := d.at(rng.Float64())
		s.queue.Push(track.Initializer{
			Track: id, Parent: d.Track, Primary: track.NoPrimary,
			Event: d.Event, Time: t, Weight: 1,
			Particle: phys.NoParticle, Energy: d.PhotonEnergy,
			Position: pos, Direction: rng.Isotropic(),
		})
	})

	s.step.NumGenerated = n
	s.counters.NumGenerated += n
	s.updateCounters()
	return nil
}

func initialize(p *Params, s *State) error {
	a := s.arena
	for _, slot := range s.queue.DrainInto(a, track.OrderNone, nil) {
		a.Rng[slot] = rand.NewStream(
			p.seed^transportSalt, int64(a.Event[slot]), int64(a.Track[slot]),
		)
		a.Cell[slot] = p.geo.Locate(a.Position[slot])
		if !a.Cell[slot].Valid() { a.Kill(slot, false) }
	}

	s.step.NumActive = a.Size()
	s.step.NumVacancies = a.NumVacancies()
	return nil
}

func preStep(p *Params, s *State) error {
	a := s.arena
	return s.launcher.Run(a, PreStepLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Alive { return nil }

		a.EnergyDeposit[slot] = 0
		if a.Mfp[slot] <= 0 { a.Mfp[slot] = a.Rng[slot].Exponential() }

		a.StepLength[slot] = a.Mfp[slot] * p.absLen[p.geo.Material(a.Cell[slot])]
		a.Limit[slot] = track.DiscreteLimit
		return nil
	})
}

func alongStep(p *Params, s *State) error {
	a := s.arena
	return s.launcher.Run(a, AlongStepLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Alive { return nil }

		cell := a.Cell[slot]
		absLen := p.absLen[p.geo.Material(cell)]
		res := field.Linear(p.geo, a.Position[slot], a.Direction[slot],
			cell, a.StepLength[slot])

		a.Position[slot] = res.Position
		a.StepLength[slot] = res.Distance
		a.Time[slot] += res.Distance / phys.CLight
		a.NumSteps[slot]++

		if res.Boundary {
			a.Mfp[slot] -= res.Distance / absLen
			a.Next[slot] = res.Next
			a.Limit[slot] = track.GeoLimit
			a.Status[slot] = track.Boundary
		} else if !math.IsInf(res.Distance, 1) {
			a.Mfp[slot] = 0
			a.Status[slot] = track.Interacting
		}
		return nil
	})
}

func boundary(p *Params, s *State) error {
	a := s.arena
	return s.launcher.Run(a, BoundaryLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Boundary { return nil }

		a.Cell[slot] = a.Next[slot]
		if a.Cell[slot].Valid() {
			a.Status[slot] = track.Alive
		} else {
			a.Kill(slot, false)
		}
		return nil
	})
}

// absorb kills interacting photons. Photons absorbed in a detector deposit
// their energy there.
func absorb(p *Params, s *State) error {
	a := s.arena
	return s.launcher.Run(a, AbsorptionLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Interacting { return nil }

		if p.geo.Detector(a.Cell[slot]) {
			a.EnergyDeposit[slot] = a.Energy[slot]
		}
		a.Energy[slot] = 0
		a.Kill(slot, false)
		return nil
	})
}

func cleanup(p *Params, s *State) error {
	a := s.arena
	s.slots = a.Occupants(s.slots)
	for _, slot := range s.slots {
		if !a.Status[slot].Dead() { continue }
		if a.EnergyDeposit[slot] > 0 { s.counters.NumDetected++ }
		a.Release(slot)
	}

	s.step.NumAlive = a.Size()
	s.step.NumInitializers = s.queue.Len()
	s.step.Check(a.Capacity())
	return nil
}
