package optical

import (
	"errors"
	"fmt"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/track"
)

// OffloadLabel is the label of the core action which buffers photon
// distributions from charged tracks.
const OffloadLabel = "optical-offload"

// Collector connects the core stepping loop to the optical loop. It
// registers an action on the core params which turns the energy deposited
// by charged tracks into photon distributions, and aux data which gives
// every core state its own optical state.
type Collector struct {
	params   *Params
	auxId    core.AuxId
	actionId action.ActionId
}

// NewCollector builds the optical params and registers the collector with
// the core params. It must be called before any core state is created.
func NewCollector(cp *core.Params, in ParamsInput) (*Collector, error) {
	if cp.Frozen() {
		return nil, fmt.Errorf("optical collector: %w", action.ErrFrozen)
	}
	params, err := NewParams(cp, in)
	if err != nil { return nil, err }

	c := &Collector{params: params}
	if c.auxId, err = cp.Aux().Insert(c); err != nil { return nil, err }

	c.actionId = cp.Actions().NextId()
	a := action.NewStaticStep(
		c.actionId, OffloadLabel, "buffer optical photon distributions",
		action.OrderPostPost, c.offload,
	)
	if err := cp.Actions().Insert(a); err != nil { return nil, err }

	return c, nil
}

// Params returns the optical params.
func (c *Collector) Params() *Params { return c.params }

// Label implements core.AuxParams.
func (c *Collector) Label() string { return "optical" }

// CreateState implements core.AuxParams.
func (c *Collector) CreateState(
	_ *core.Params, stream track.StreamId, _ int,
) (interface{}, error) {
	return newState(c.params, stream)
}

// State returns the optical state stored in a core state.
func (c *Collector) State(s *core.State) *State {
	return s.Aux(c.auxId).(*State)
}

// Push buffers a distribution. If the buffered photon count reaches the
// auto-flush threshold, the optical loop runs to completion before Push
// returns.
func (c *Collector) Push(s *core.State, d Distribution) error {
	if !d.Valid() {
		return track.InvalidConfig("invalid optical distribution %+v", d)
	}

	os := c.State(s)
	if err := os.buffer.Push(d); err != nil { return err }
	os.updateCounters()

	if os.buffer.NumPhotons() >= c.params.in.AutoFlush {
		return c.Flush(s)
	}
	return nil
}

// Pending implements core.Flusher. It counts buffered, queued and active
// photons.
func (c *Collector) Pending(s *core.State) int {
	os := c.State(s)
	return os.arena.Size() + os.queue.Len() + os.buffer.NumPhotons()
}

// Flush runs the optical loop until every buffered photon has been
// generated and transported. If that takes more than MaxStepIters
// iterations, the remaining photons are dropped, logged as an error and
// reported by TakeDropped.
func (c *Collector) Flush(s *core.State) error {
	os := c.State(s)
	if os.done() { return nil }

	os.counters.Flushes++
	c.params.logger.Debug("flushing optical photons",
		"stream", s.Stream(), "photons", os.buffer.NumPhotons(),
		"distributions", os.buffer.Len())

	for iter := 0; !os.done(); iter++ {
		if iter == c.params.in.MaxStepIters {
			c.params.logger.Error("optical loop exceeded its iteration limit",
				"stream", s.Stream(), "max_step_iters", iter,
				"active", os.arena.Size(), "queued", os.queue.Len(),
				"pending", os.buffer.NumPhotons(),
				"generators", os.buffer.Len())
			lost := os.reset()
			os.dropped += lost
			return nil
		}

		if err := os.seq.Step(c.params, os); err != nil {
			return fmt.Errorf("optical loop: %w", err)
		}
		os.counters.StepIters++
		os.counters.Steps += os.step.NumActive
	}
	return nil
}

// Counters returns the optical counters of a stream.
func (c *Collector) Counters(s *core.State) Counters {
	return c.State(s).counters
}

// Reset implements core.Flusher. It drops every photon and returns the
// number lost.
func (c *Collector) Reset(s *core.State) int {
	return c.State(s).reset()
}

// TakeDropped implements core.Flusher. It returns the photons dropped since
// the last call by buffer overflow or by the iteration limit of Flush.
func (c *Collector) TakeDropped(s *core.State) int {
	os := c.State(s)
	n := os.dropped
	os.dropped = 0
	return n
}

// Finalize checks that all optical work is done at the end of a run.
// Photons still buffered are lost: they are logged as a warning and
// counted.
func (c *Collector) Finalize(s *core.State) int {
	os := c.State(s)
	if os.done() { return 0 }

	pending, generators := os.buffer.NumPhotons(), os.buffer.Len()
	lost := os.reset()
	c.params.logger.Warn("optical photons were never tracked",
		"stream", s.Stream(), "lost", lost, "pending", pending,
		"generators", generators)
	return lost
}

// offload is the core step action which turns the energy deposited by
// charged tracks this step into photon distributions. Slots are visited in
// order and each track's own random stream samples its photon count, so
// the buffer contents are reproducible.
//
// Once a distribution doesn't fit, it and every later distribution of the
// step are dropped, but every slot is still visited so that the dropped
// photons are counted. The overflow error is returned at the end.
func (c *Collector) offload(p *core.Params, s *core.State) error {
	yield := c.params.in.YieldPerMeV
	if s.WarmingUp() || yield <= 0 { return nil }

	os := c.State(s)
	a := s.Arena()
	particles := p.Particles()

	var overflow error
	dropped := 0
	os.offloadSlots = a.Occupants(os.offloadSlots)
	for _, slot := range os.offloadSlots {
		pdef := particles.Get(a.Particle[slot])
		edep := a.EnergyDeposit[slot]
		if pdef.Neutral() || edep <= 0 || a.StepLength[slot] <= 0 { continue }

		mean := yield * edep
		n := int(mean)
		if a.Rng[slot].Float64() < mean-float64(n) { n++ }
		if n == 0 { continue }

		d := Distribution{
			NumPhotons:   n,
			Track:        a.Track[slot],
			Event:        a.Event[slot],
			Step:         a.NumSteps[slot],
			Material:     p.Geometry().Material(a.Cell[slot]),
			Charge:       pdef.Charge,
			PhotonEnergy: c.params.in.PhotonEnergy,
			Pre: StepPoint{
				a.PrePosition[slot], a.PreTime[slot], a.PreSpeed[slot],
			},
			Post: StepPoint{
				a.Position[slot], a.Time[slot], pdef.Speed(a.Energy[slot]),
			},
		}
		if overflow != nil {
			dropped += n
			continue
		}
		if err := c.Push(s, d); err != nil {
			if !errors.Is(err, ErrBufferOverflow) {
				return fmt.Errorf("offloading track %d of event %d: %w",
					a.Track[slot], a.Event[slot], err)
			}
			overflow = err
			dropped += n
		}
	}

	if overflow == nil { return nil }
	os.drop(dropped)
	c.params.logger.Warn("optical buffer overflowed",
		"stream", s.Stream(), "dropped", dropped)
	return fmt.Errorf("offloading %d photons: %w", dropped, overflow)
}
