package optical

import (
	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/track"
)

// Counters summarize the work done by the optical loop of one stream.
type Counters struct {
	// Photon steps taken, summed over iterations.
	Steps int
	// Optical loop iterations.
	StepIters int
	// Number of times the buffer was flushed.
	Flushes int
	// Distributions with photons still to generate.
	Generators int
	// Photons created from distributions.
	NumGenerated int
	// Buffered photons still to generate.
	NumPending int
	// Photons absorbed in detector cells.
	NumDetected int
	// Photons dropped because the buffer was full, the loop was reset, or
	// the loop gave up.
	NumLost int
}

// State is the optical state of one stream. It lives in the aux data of
// the core state.
type State struct {
	stream track.StreamId

	arena  *track.Arena
	queue  *track.Queue
	buffer *Buffer
	seq    *action.Sequence[*Params, *State]

	counters Counters
	step     track.Counters
	launcher core.Launcher
	slots    []track.TrackSlotId

	offloadSlots []track.TrackSlotId
	// Photons dropped since the last TakeDropped.
	dropped int
}

func newState(p *Params, stream track.StreamId) (*State, error) {
	arena, err := track.NewArena(p.in.NumTrackSlots)
	if err != nil { return nil, err }
	queue, err := track.NewQueue(p.in.InitializerCapacity)
	if err != nil { return nil, err }
	buffer, err := NewBuffer(p.in.DistributionCapacity, p.in.BufferCapacity)
	if err != nil { return nil, err }
	seq, err := action.NewSequence[*Params, *State](p.actions, action.Options{})
	if err != nil { return nil, err }

	s := &State{
		stream: stream, arena: arena, queue: queue, buffer: buffer, seq: seq,
		launcher: core.Launcher{Threads: 1, Stream: stream, Logger: p.logger},
	}
	s.step.NumVacancies = arena.Capacity()
	return s, nil
}

func (s *State) Arena() *track.Arena { return s.arena }
func (s *State) Queue() *track.Queue { return s.queue }
func (s *State) Buffer() *Buffer     { return s.buffer }

// done returns true if every photon has been generated and transported.
func (s *State) done() bool {
	return s.arena.Size() == 0 && s.queue.Len() == 0 && s.buffer.NumPhotons() == 0
}

// reset drops all photons and returns how many were lost.
func (s *State) reset() int {
	lost := s.arena.Size() + s.queue.Len() + s.buffer.Clear()
	s.arena.Reset()
	s.queue.Clear()
	s.step = track.Counters{NumVacancies: s.arena.Capacity()}
	s.counters.NumLost += lost
	s.updateCounters()
	return lost
}

// drop counts photons which were never buffered or were abandoned by the
// loop.
func (s *State) drop(n int) {
	s.dropped += n
	s.counters.NumLost += n
}

func (s *State) updateCounters() {
	s.counters.Generators = s.buffer.Len()
	s.counters.NumPending = s.buffer.NumPhotons()
}
