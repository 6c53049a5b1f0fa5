package core

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/field"
	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/rand"
	"github.com/phil-mansfield/gotrack/track"
)

// Labels of the core step actions, in execution order.
const (
	ExtendFromPrimariesLabel   = "extend-from-primaries"
	InitializeTracksLabel      = "initialize-tracks"
	PreStepLabel               = "pre-step"
	AlongStepLabel             = "along-step"
	GeoBoundaryLabel           = "geo-boundary"
	PhysicsDiscreteLabel       = "physics-discrete"
	TrackingCutLabel           = "tracking-cut"
	ExtendFromSecondariesLabel = "extend-from-secondaries"
)

// StepAction is a step action over the core state.
type StepAction = action.StepAction[*Params, *State]

// Sequence is the action sequence of the core state.
type Sequence = action.Sequence[*Params, *State]

type coreActionIds struct {
	extendPrimaries, initialize, preStep, alongStep    action.ActionId
	boundary, discrete, trackingCut, extendSecondaries action.ActionId
}

func (p *Params) registerActions() error {
	type def struct {
		id          *action.ActionId
		label, desc string
		order       action.Order
		step        func(*Params, *State) error
	}

	defs := []def{
		{&p.ids.extendPrimaries, ExtendFromPrimariesLabel,
			"create track initializers from primaries",
			action.OrderStart, extendFromPrimaries},
		{&p.ids.initialize, InitializeTracksLabel,
			"initialize track states from the initializer queue",
			action.OrderStart, initializeTracks},
		{&p.ids.preStep, PreStepLabel,
			"sample the physics step limit",
			action.OrderPre, preStep},
		{&p.ids.alongStep, AlongStepLabel,
			"propagate and apply continuous energy loss",
			action.OrderAlong, alongStep},
		{&p.ids.boundary, GeoBoundaryLabel,
			"cross a geometry boundary",
			action.OrderPost, geoBoundary},
		{&p.ids.discrete, PhysicsDiscreteLabel,
			"sample and apply a discrete interaction",
			action.OrderPost, physicsDiscrete},
		{&p.ids.trackingCut, TrackingCutLabel,
			"kill tracks below their energy cutoff",
			action.OrderPostPost, trackingCut},
		{&p.ids.extendSecondaries, ExtendFromSecondariesLabel,
			"release dead tracks and queue secondaries",
			action.OrderEnd, extendFromSecondaries},
	}

	for _, d := range defs {
		*d.id = p.actions.NextId()
		a := action.NewStaticStep(*d.id, d.label, d.desc, d.order, d.step)
		if err := p.actions.Insert(a); err != nil { return err }
	}
	return nil
}

func extendFromPrimaries(p *Params, s *State) error {
	if s.warming || len(s.primaries) == 0 { return nil }

	s.inits = s.inits[:0]
	for i := range s.primaries {
		prim := &s.primaries[i]
		id := s.NextTrackId(prim.Event)
		pid := s.nextPrimary[prim.Event]
		s.nextPrimary[prim.Event]++
		s.inits = append(s.inits, track.PrimaryInitializer(prim, id, pid))
	}

	if err := s.queue.PushAll(s.inits); err != nil { return err }
	s.counters.NumGenerated += len(s.inits)
	s.primaries = s.primaries[:0]
	return nil
}

func initializeTracks(p *Params, s *State) error {
	a := s.arena
	if !s.warming {
		filled := s.queue.DrainInto(a, p.init.TrackOrder, p.particles)
		for _, slot := range filled {
			a.Rng[slot] = rand.NewStream(
				p.seed, int64(a.Event[slot]), int64(a.Track[slot]),
			)
			a.Cell[slot] = p.geo.Locate(a.Position[slot])
			// Tracks starting outside the world are never transported.
			if !a.Cell[slot].Valid() { a.Kill(slot, false) }
		}
	}

	s.counters.NumActive = a.Size()
	s.counters.NumVacancies = a.NumVacancies()
	return nil
}

func preStep(p *Params, s *State) error {
	a := s.arena
	return Launch(s, PreStepLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Alive { return nil }

		a.EnergyDeposit[slot] = 0
		a.StepLength[slot] = 0

		e := a.Energy[slot]
		if math.IsNaN(e) || e < 0 {
			return fmt.Errorf("invalid kinetic energy %g", e)
		}
		if int(a.NumSteps[slot]) >= p.sim.MaxSteps {
			a.Kill(slot, true)
			return nil
		}

		pid := a.Particle[slot]
		mat := p.geo.Material(a.Cell[slot])

		a.PrePosition[slot] = a.Position[slot]
		a.PreTime[slot] = a.Time[slot]
		a.PreSpeed[slot] = p.particles.Get(pid).Speed(e)

		if a.Mfp[slot] <= 0 { a.Mfp[slot] = a.Rng[slot].Exponential() }

		step, limit := math.Inf(1), track.NoLimit
		if xs := p.physics.MacroXs(pid, mat, e); xs > 0 {
			step, limit = a.Mfp[slot]/xs, track.DiscreteLimit
		}
		if r := p.physics.Range(pid, mat, e); r <= step {
			step, limit = r, track.RangeLimit
		}

		a.StepLength[slot] = step
		a.Limit[slot] = limit
		return nil
	})
}

func alongStep(p *Params, s *State) error {
	a := s.arena
	return Launch(s, AlongStepLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Alive { return nil }

		pid := a.Particle[slot]
		pdef := p.particles.Get(pid)
		cell := a.Cell[slot]
		mat := p.geo.Material(cell)
		e := a.Energy[slot]
		limit := a.Limit[slot]

		var res field.Result
		if pdef.Neutral() || p.field == nil {
			res = field.Linear(p.geo, a.Position[slot], a.Direction[slot],
				cell, a.StepLength[slot])
		} else {
			res = p.field.Propagate(p.geo, a.Position[slot], a.Direction[slot],
				cell, pdef.Charge, pdef.Momentum(e), a.StepLength[slot])
		}
		completed := !res.Boundary && !res.Looping

		dist := res.Distance
		a.Position[slot] = res.Position
		a.Direction[slot] = res.Direction
		a.StepLength[slot] = dist
		a.Time[slot] += dist / a.PreSpeed[slot]
		a.NumSteps[slot]++

		if limit == track.DiscreteLimit && completed {
			a.Mfp[slot] = 0
		} else {
			a.Mfp[slot] -= dist * p.physics.MacroXs(pid, mat, e)
		}

		if dedx := p.physics.StoppingPower(pid, mat); dedx > 0 {
			loss := dedx * dist
			if loss >= e || (limit == track.RangeLimit && completed) { loss = e }
			a.Energy[slot] = e - loss
			a.EnergyDeposit[slot] += loss
		}

		switch {
		case res.Looping:
			a.Limit[slot] = track.FieldLimit
			a.LoopingSteps[slot]++
			threshold := p.sim.Looping.Threshold
			if a.Energy[slot] >= p.sim.Looping.ImportantEnergy {
				threshold = p.sim.Looping.ImportantThreshold
			}
			if int(a.LoopingSteps[slot]) > threshold {
				a.EnergyDeposit[slot] += a.Energy[slot]
				a.Energy[slot] = 0
				a.Kill(slot, false)
			}
		case res.Boundary:
			a.Limit[slot] = track.GeoLimit
			a.Next[slot] = res.Next
			a.Status[slot] = track.Boundary
			a.LoopingSteps[slot] = 0
		case limit == track.DiscreteLimit || limit == track.RangeLimit:
			a.Status[slot] = track.Interacting
			a.LoopingSteps[slot] = 0
		}
		return nil
	})
}

func geoBoundary(p *Params, s *State) error {
	a := s.arena
	return Launch(s, GeoBoundaryLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Boundary { return nil }

		// Escaping tracks keep their last cell.
		if !a.Next[slot].Valid() {
			a.Kill(slot, false)
			return nil
		}
		a.Cell[slot] = a.Next[slot]
		a.Status[slot] = track.Alive
		return nil
	})
}

func physicsDiscrete(p *Params, s *State) error {
	a := s.arena
	return Launch(s, PhysicsDiscreteLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Interacting { return nil }

		pid := a.Particle[slot]
		var in phys.Interaction
		if a.Limit[slot] == track.RangeLimit || a.Energy[slot] <= 0 {
			in = p.physics.AtRest(pid, &a.Rng[slot])
		} else {
			in = p.physics.Interact(pid, a.Energy[slot], a.Direction[slot],
				&a.Rng[slot])
		}
		a.Mfp[slot] = 0
		applyInteraction(p, s, slot, &in)
		return nil
	})
}

func trackingCut(p *Params, s *State) error {
	a := s.arena
	return Launch(s, TrackingCutLabel, func(slot track.TrackSlotId) error {
		if a.Status[slot] != track.Alive { return nil }

		pid := a.Particle[slot]
		if a.Energy[slot] >= p.particles.Get(pid).Cutoff { return nil }

		in := p.physics.AtRest(pid, &a.Rng[slot])
		in.EnergyDeposit += a.Energy[slot]
		applyInteraction(p, s, slot, &in)
		return nil
	})
}

// applyInteraction updates a track with the outcome of an interaction and
// stores its secondaries. Secondaries below their production cutoff are
// deposited locally.
func applyInteraction(
	p *Params, s *State, slot track.TrackSlotId, in *phys.Interaction,
) {
	a := s.arena

	kept := 0
	for i := 0; i < in.NumSecondaries; i++ {
		sec := in.Secondaries[i]
		if sec.Energy < p.particles.Get(sec.Particle).Cutoff {
			in.EnergyDeposit += sec.Energy
			continue
		}
		in.Secondaries[kept] = sec
		kept++
	}
	in.NumSecondaries = kept
	s.addSecondaries(slot, in)

	a.EnergyDeposit[slot] += in.EnergyDeposit
	switch in.Action {
	case phys.Absorbed:
		a.Energy[slot] = 0
		a.Kill(slot, false)
	case phys.Scattered:
		a.Energy[slot] = in.Energy
		a.Direction[slot] = in.Direction
		a.Status[slot] = track.Alive
	default:
		a.Status[slot] = track.Alive
	}
}

func extendFromSecondaries(p *Params, s *State) error {
	a := s.arena
	if s.warming {
		s.counters.NumAlive = a.Size()
		s.counters.NumInitializers = s.NumQueued()
		return nil
	}

	slots := a.Occupants(s.slots)
	s.slots = slots

	n := 0
	for _, slot := range slots { n += s.numSecondaries[slot] }

	var err error
	if n > s.queue.Free() {
		err = &track.CapacityError{
			Err: track.ErrQueueOverflow, Capacity: s.queue.Capacity(),
			Size: s.queue.Len(), Request: n,
		}
	} else {
		// Slot order makes the queue, and so every later step, deterministic.
		for _, slot := range slots {
			for _, sec := range s.Secondaries(slot) {
				ev := a.Event[slot]
				s.queue.Push(track.Initializer{
					Track: s.NextTrackId(ev), Parent: a.Track[slot],
					Primary: a.Primary[slot], Event: ev,
					Time: a.Time[slot], Weight: a.Weight[slot],
					Particle: sec.Particle, Energy: sec.Energy,
					Position: a.Position[slot], Direction: sec.Direction,
				})
			}
		}
		s.counters.NumSecondaries = n
		s.counters.NumGenerated += n
	}

	for _, slot := range slots {
		s.numSecondaries[slot] = 0
		if !a.Status[slot].Dead() { continue }
		if a.Aborted[slot] { s.counters.NumAborted++ }
		a.Release(slot)
	}

	s.counters.NumAlive = a.Size()
	s.counters.NumInitializers = s.NumQueued()
	s.counters.Check(a.Capacity())
	return err
}
