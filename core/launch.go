package core

import (
	"log/slog"

	"github.com/phil-mansfield/gotrack/track"
)

// minChunk is the smallest number of slots worth handing to a goroutine.
const minChunk = 64

// Launcher runs a function over the occupied slots of an arena.
type Launcher struct {
	Threads int
	Stream  track.StreamId
	Logger  *slog.Logger

	slots []track.TrackSlotId
}

// Launch calls fn on every occupied slot of s. See Launcher.Run.
func Launch(s *State, label string, fn func(slot track.TrackSlotId) error) error {
	return s.launcher.Run(s.arena, label, fn)
}

// Run calls fn on every occupied slot of a. If more than one thread is
// allowed, the slots are split into contiguous chunks which run
// concurrently. Run returns only after every slot has been processed.
//
// fn may only write to the row of the slot it was given. Slots whose call
// fails are marked as errored, and every failure is logged. The first is
// returned as a *KernelError.
func (l *Launcher) Run(
	a *track.Arena, label string, fn func(slot track.TrackSlotId) error,
) error {
	slots := a.Occupants(l.slots)
	l.slots = slots
	if len(slots) == 0 { return nil }

	h := &MultiErrorHandler{}
	run := func(chunk []track.TrackSlotId) {
		for _, slot := range chunk {
			if err := fn(slot); err != nil {
				h.Add(&KernelError{
					Action: label, Stream: l.Stream, Slot: slot,
					Track: a.Track[slot], Event: a.Event[slot], Err: err,
				})
				a.Status[slot] = track.Errored
			}
		}
	}

	workers := l.Threads
	if max := (len(slots) + minChunk - 1) / minChunk; workers > max {
		workers = max
	}

	if workers <= 1 {
		run(slots)
	} else {
		out := make(chan int, workers)
		for id := 0; id < workers-1; id++ {
			go launchChunk(id, workers, slots, run, out)
		}
		launchChunk(workers-1, workers, slots, run, out)

		for i := 0; i < workers; i++ { <-out }
	}

	logger := l.Logger
	if logger == nil { logger = slog.Default() }
	return h.Result(logger)
}

func launchChunk(
	id, workers int, slots []track.TrackSlotId,
	run func([]track.TrackSlotId), out chan<- int,
) {
	lo := id * len(slots) / workers
	hi := (id + 1) * len(slots) / workers
	run(slots[lo:hi])
	out <- id
}
