package core

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/track"
)

// SecondariesPerSlot is the most secondaries a single track can produce in
// one step: one discrete interaction followed by an at-rest process.
const SecondariesPerSlot = 2 * phys.MaxSecondaries

// State is the mutable track state of one stream. It is owned by a single
// goroutine; only the slot-parallel work inside Launch touches it
// concurrently, and then each goroutine writes only its own slots.
type State struct {
	params *Params
	stream track.StreamId

	arena *track.Arena
	queue *track.Queue

	// Primaries which have been pushed but not yet turned into
	// initializers.
	primaries []track.Primary
	inits     []track.Initializer

	secondaries    []phys.Secondary
	numSecondaries []int

	counters track.Counters
	warming  bool

	aux []interface{}

	// Next track and primary ids of each event.
	nextTrack   []track.TrackId
	nextPrimary []track.PrimaryId

	launcher Launcher
	slots    []track.TrackSlotId
}

// NewState creates the state of a stream with size track slots. The first
// call freezes the params.
func NewState(p *Params, stream track.StreamId, size int) (*State, error) {
	if !stream.Valid() || int(stream) >= p.maxStreams {
		return nil, track.InvalidConfig(
			"stream %d is outside the range [0, %d)", stream, p.maxStreams,
		)
	}

	arena, err := track.NewArena(size)
	if err != nil { return nil, err }
	queue, err := track.NewQueue(p.init.Capacity)
	if err != nil { return nil, err }

	p.freeze()

	s := &State{
		params: p, stream: stream, arena: arena, queue: queue,
		secondaries:    make([]phys.Secondary, size*SecondariesPerSlot),
		numSecondaries: make([]int, size),
		nextTrack:      make([]track.TrackId, p.init.MaxEvents),
		nextPrimary:    make([]track.PrimaryId, p.init.MaxEvents),
		slots:          make([]track.TrackSlotId, 0, size),
	}
	s.launcher = Launcher{
		Threads: p.kernelThreads, Stream: stream, Logger: p.logger,
		slots: make([]track.TrackSlotId, 0, size),
	}
	s.counters.NumVacancies = size

	for _, a := range p.aux.All() {
		st, err := a.CreateState(p, stream, size)
		if err != nil {
			return nil, fmt.Errorf("creating aux state '%s': %w", a.Label(), err)
		}
		s.aux = append(s.aux, st)
	}

	return s, nil
}

func (s *State) Params() *Params           { return s.params }
func (s *State) Stream() track.StreamId    { return s.stream }
func (s *State) Arena() *track.Arena       { return s.arena }
func (s *State) Queue() *track.Queue       { return s.queue }
func (s *State) Counters() *track.Counters { return &s.counters }

// Size returns the number of track slots.
func (s *State) Size() int { return s.arena.Capacity() }

// WarmingUp returns true while the state is running a warm-up iteration.
func (s *State) WarmingUp() bool { return s.warming }

// SetWarmingUp enters or leaves warm-up mode.
func (s *State) SetWarmingUp(w bool) { s.warming = w }

// Aux returns the auxiliary state with the given id.
func (s *State) Aux(id AuxId) interface{} { return s.aux[id] }

// NumPending returns the number of pushed primaries which have not yet been
// turned into initializers.
func (s *State) NumPending() int { return len(s.primaries) }

// NumQueued returns the number of tracks waiting for a slot.
func (s *State) NumQueued() int { return s.queue.Len() + len(s.primaries) }

// NumUnfinished counts the tracks which haven't finished transport: live
// tracks, tracks aborted this step which cleanup hasn't released yet,
// secondaries waiting in slot storage, and queued initializers and
// primaries. Tracks which finished normally this step aren't counted even
// if their slots haven't been released.
func (s *State) NumUnfinished() int {
	a := s.arena
	n := s.NumQueued()
	s.slots = a.Occupants(s.slots)
	for _, slot := range s.slots {
		if !a.Status[slot].Dead() || a.Aborted[slot] { n++ }
		n += s.numSecondaries[slot]
	}
	return n
}

// PushPrimaries stages primaries to be turned into initializers at the
// start of the next iteration. Either all primaries are accepted or none
// are.
func (s *State) PushPrimaries(primaries []track.Primary) error {
	for i := range primaries {
		if err := s.checkPrimary(&primaries[i]); err != nil {
			return fmt.Errorf("primary %d: %w", i, err)
		}
	}

	if free := s.queue.Free() - len(s.primaries); len(primaries) > free {
		return &track.CapacityError{
			Err: track.ErrQueueOverflow, Capacity: s.queue.Capacity(),
			Size: s.queue.Len() + len(s.primaries), Request: len(primaries),
		}
	}

	for _, prim := range primaries {
		prim.Direction = prim.Direction.Normalize()
		s.primaries = append(s.primaries, prim)
	}
	return nil
}

func (s *State) checkPrimary(p *track.Primary) error {
	switch {
	case !p.Event.Valid() || int(p.Event) >= len(s.nextTrack):
		return track.InvalidConfig(
			"event %d is outside the range [0, %d)", p.Event, len(s.nextTrack),
		)
	case !p.Particle.Valid() || int(p.Particle) >= s.params.particles.Size():
		return track.InvalidConfig("unknown particle %d", p.Particle)
	case !(p.Energy > 0) || math.IsInf(p.Energy, 0):
		return track.InvalidConfig("energy must be positive, got %g", p.Energy)
	case p.Direction.Len() == 0:
		return track.InvalidConfig("direction has zero length")
	case p.Weight < 0:
		return track.InvalidConfig("weight must be positive, got %g", p.Weight)
	}
	return nil
}

// Secondaries returns the secondaries produced by a slot during this step.
func (s *State) Secondaries(slot track.TrackSlotId) []phys.Secondary {
	start := int(slot) * SecondariesPerSlot
	return s.secondaries[start : start+s.numSecondaries[slot]]
}

// addSecondaries stores the products of an interaction in a slot's
// secondary storage.
func (s *State) addSecondaries(slot track.TrackSlotId, in *phys.Interaction) {
	n := s.numSecondaries[slot]
	if n+in.NumSecondaries > SecondariesPerSlot {
		panic(fmt.Sprintf(
			"Slot %d produced more than %d secondaries in one step.",
			slot, SecondariesPerSlot,
		))
	}
	start := int(slot) * SecondariesPerSlot
	copy(s.secondaries[start+n:], in.Secondaries[:in.NumSecondaries])
	s.numSecondaries[slot] = n + in.NumSecondaries
}

// NextTrackId returns a fresh track id within an event. Ids depend only on
// the order in which tracks are created, so they are reproducible.
func (s *State) NextTrackId(event track.EventId) track.TrackId {
	id := s.nextTrack[event]
	s.nextTrack[event]++
	return id
}

// ResetEvent restarts the track and primary numbering of an event.
func (s *State) ResetEvent(event track.EventId) {
	s.nextTrack[event] = 0
	s.nextPrimary[event] = 0
}

// Reset empties every slot and buffer of the state, including aux state.
// It returns the number of deferred items which were dropped from aux
// state.
func (s *State) Reset() int {
	s.arena.Reset()
	s.queue.Clear()
	s.primaries = s.primaries[:0]
	for i := range s.numSecondaries { s.numSecondaries[i] = 0 }
	for i := range s.nextTrack {
		s.nextTrack[i] = 0
		s.nextPrimary[i] = 0
	}
	s.counters = track.Counters{NumVacancies: s.arena.Capacity()}
	s.warming = false

	lost := 0
	for _, f := range s.params.Flushers() { lost += f.Reset(s) }
	return lost
}
